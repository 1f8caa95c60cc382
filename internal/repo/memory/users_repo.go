package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/staffauth/internal/domain/user"
)

// UsersRepo keeps users in process memory. It enforces the same unique
// email/phone constraints as the Postgres schema.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User
	now   func() time.Time
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
		now:   time.Now,
	}
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findBy(func(u user.User) bool { return u.Email == email })
}

func (r *UsersRepo) GetByPhone(ctx context.Context, phone string) (user.User, error) {
	return r.findBy(func(u user.User) bool { return u.Phone == phone })
}

func (r *UsersRepo) findBy(match func(user.User) bool) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if match(u) {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUniqueLocked(u.ID, u.Email, u.Phone); err != nil {
		return user.User{}, err
	}

	now := r.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	r.items[u.ID] = u
	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, id string, p user.Patch) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	next := u
	p.Apply(&next)

	if err := r.checkUniqueLocked(id, next.Email, next.Phone); err != nil {
		return user.User{}, err
	}

	next.UpdatedAt = r.now().UTC()
	r.items[id] = next
	return next, nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}

	u.PasswordHash = passwordHash
	u.UpdatedAt = r.now().UTC()
	r.items[id] = u
	return nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	return true, nil
}

func (r *UsersRepo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, id := range ids {
		if _, ok := r.items[id]; ok {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}

func (r *UsersRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items), nil
}

func (r *UsersRepo) List(ctx context.Context, c user.Criteria) ([]user.User, int, error) {
	c = c.Normalize()

	r.mu.RLock()
	matched := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		if matches(u, c) {
			matched = append(matched, u)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		cmp := compare(matched[i], matched[j], c.SortField)
		if cmp == 0 {
			return matched[i].ID < matched[j].ID
		}
		if c.SortOrder == user.SortDesc {
			return cmp > 0
		}
		return cmp < 0
	})

	total := len(matched)
	start := c.Offset()
	if start >= total {
		return []user.User{}, total, nil
	}
	end := start + c.Limit
	if end > total {
		end = total
	}

	return matched[start:end], total, nil
}

func (r *UsersRepo) checkUniqueLocked(id, email, phone string) error {
	for _, other := range r.items {
		if other.ID == id {
			continue
		}
		if other.Email == email {
			return user.ErrDuplicateEmail
		}
	}
	for _, other := range r.items {
		if other.ID == id {
			continue
		}
		if other.Phone == phone {
			return user.ErrDuplicatePhone
		}
	}
	return nil
}

func matches(u user.User, c user.Criteria) bool {
	if c.Search != nil {
		needle := strings.ToLower(*c.Search)
		haystack := strings.ToLower(strings.Join([]string{u.Email, u.Phone, u.FirstName, u.LastName, u.Address}, " "))
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	if c.Role != nil && u.Role != *c.Role {
		return false
	}
	if c.IsActive != nil && u.IsActive != *c.IsActive {
		return false
	}
	if c.HasDateRange() && (u.CreatedAt.Before(*c.StartDate) || u.CreatedAt.After(*c.EndDate)) {
		return false
	}
	return true
}

func compare(a, b user.User, field user.SortField) int {
	switch field {
	case user.SortByID:
		return strings.Compare(a.ID, b.ID)
	case user.SortByEmail:
		return strings.Compare(a.Email, b.Email)
	case user.SortByPhone:
		return strings.Compare(a.Phone, b.Phone)
	case user.SortByFirstName:
		return strings.Compare(a.FirstName, b.FirstName)
	case user.SortByLastName:
		return strings.Compare(a.LastName, b.LastName)
	case user.SortByAddress:
		return strings.Compare(a.Address, b.Address)
	case user.SortByImageURL:
		return strings.Compare(deref(a.ImageURL), deref(b.ImageURL))
	case user.SortByRole:
		return strings.Compare(string(a.Role), string(b.Role))
	case user.SortByIsActive:
		return boolRank(a.IsActive) - boolRank(b.IsActive)
	case user.SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
