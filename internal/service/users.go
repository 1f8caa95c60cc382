package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/geocoder89/staffauth/internal/validation"
	"github.com/google/uuid"
)

type Page struct {
	Users []user.User `json:"users"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportResult struct {
	Success []user.User `json:"success"`
	Errors  []RowError  `json:"errors"`
}

type Users struct {
	store      UserStore
	hasher     PasswordHasher
	invalidate Invalidator
	log        *slog.Logger
	nowFunc    func() time.Time
}

// NewUsers builds the user lifecycle service. inv may be nil when nothing
// caches users.
func NewUsers(store UserStore, hasher PasswordHasher, inv Invalidator, log *slog.Logger) *Users {
	if inv == nil {
		inv = noopInvalidator{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Users{
		store:      store,
		hasher:     hasher,
		invalidate: inv,
		log:        log,
		nowFunc:    time.Now,
	}
}

func (s *Users) Create(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
	email := user.NormalizeEmail(req.Email)
	phone := validation.NormalizePhone(req.Phone)

	if err := s.ensureUnique(ctx, "", &email, &phone); err != nil {
		return user.User{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = user.DefaultRole
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	now := s.nowFunc().UTC()

	return s.store.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Address:      strings.TrimSpace(req.Address),
		ImageURL:     imageURL(req.ImageURL),
		Role:         role,
		IsActive:     active,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (s *Users) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Users) List(ctx context.Context, c user.Criteria) (Page, error) {
	c = c.Normalize()

	users, total, err := s.store.List(ctx, c)
	if err != nil {
		return Page{}, err
	}

	return Page{Users: users, Total: total, Page: c.Page, Limit: c.Limit}, nil
}

// Update applies the supplied fields only. Email and phone stay unique across
// other users; a user may keep its own values.
func (s *Users) Update(ctx context.Context, id string, req user.UpdateUserRequest) (user.User, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	p := req.Patch()

	if p.Email != nil {
		email := user.NormalizeEmail(*p.Email)
		p.Email = &email
		if email == current.Email {
			p.Email = nil
		}
	}
	if p.Phone != nil {
		phone := validation.NormalizePhone(*p.Phone)
		p.Phone = &phone
		if phone == current.Phone {
			p.Phone = nil
		}
	}
	p.FirstName = trimmed(p.FirstName)
	p.LastName = trimmed(p.LastName)
	p.Address = trimmed(p.Address)
	p.ImageURL = trimmed(p.ImageURL)

	if err := s.ensureUnique(ctx, id, p.Email, p.Phone); err != nil {
		return user.User{}, err
	}

	updated, err := s.store.Update(ctx, id, p)
	if err != nil {
		return user.User{}, err
	}

	s.invalidate.Invalidate(ctx, id)
	return updated, nil
}

func (s *Users) UpdatePassword(ctx context.Context, id string, req user.UpdatePasswordRequest) error {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(req.CurrentPassword, current.PasswordHash) {
		return user.ErrWrongCurrentPassword
	}
	if req.NewPassword == req.CurrentPassword {
		return user.ErrSamePassword
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}

	s.invalidate.Invalidate(ctx, id)
	return nil
}

// Delete reports whether a row was removed; a missing id is not an error.
func (s *Users) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}

	if deleted {
		s.invalidate.Invalidate(ctx, id)
	}
	return deleted, nil
}

// DeleteMany reports whether at least one of ids was removed.
func (s *Users) DeleteMany(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return false, user.ErrEmptyInput
	}

	n, err := s.store.DeleteMany(ctx, ids)
	if err != nil {
		return false, err
	}

	for _, id := range ids {
		s.invalidate.Invalidate(ctx, id)
	}
	return n > 0, nil
}

// ImportMany creates each row independently. A failed row does not stop the
// batch; it is reported by its spreadsheet row number (header is row 1).
func (s *Users) ImportMany(ctx context.Context, rows []user.CreateUserRequest) ImportResult {
	result := ImportResult{
		Success: make([]user.User, 0, len(rows)),
		Errors:  []RowError{},
	}

	for i := range rows {
		rowNumber := i + 2

		if err := validation.Struct(&rows[i]); err != nil {
			msg := validation.Summary(validation.Fields(err))
			if msg == "" {
				msg = err.Error()
			}
			result.Errors = append(result.Errors, RowError{Row: rowNumber, Error: msg})
			continue
		}

		created, err := s.Create(ctx, rows[i])
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNumber, Error: s.rowMessage(ctx, rowNumber, err)})
			continue
		}

		result.Success = append(result.Success, created)
	}

	s.log.InfoContext(ctx, "users imported",
		"rows", len(rows),
		"created", len(result.Success),
		"failed", len(result.Errors),
	)

	return result
}

// ExportAll walks every page matching c. Page and limit on c are ignored.
func (s *Users) ExportAll(ctx context.Context, c user.Criteria) ([]user.User, error) {
	c.Page = 1
	c.Limit = user.MaxLimit
	c = c.Normalize()

	var out []user.User

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, total, err := s.store.List(ctx, c)
		if err != nil {
			return nil, err
		}

		out = append(out, batch...)

		if len(batch) < c.Limit || len(out) >= total {
			break
		}
		c.Page++
	}

	if out == nil {
		out = []user.User{}
	}
	return out, nil
}

// ensureUnique checks email first, then phone. selfID is excluded so an
// update may keep its own values. Nil values are skipped.
func (s *Users) ensureUnique(ctx context.Context, selfID string, email, phone *string) error {
	if email != nil {
		other, err := s.store.GetByEmail(ctx, *email)
		switch {
		case err == nil && other.ID != selfID:
			return user.ErrDuplicateEmail
		case err != nil && !errors.Is(err, user.ErrNotFound):
			return fmt.Errorf("check email: %w", err)
		}
	}

	if phone != nil {
		other, err := s.store.GetByPhone(ctx, *phone)
		switch {
		case err == nil && other.ID != selfID:
			return user.ErrDuplicatePhone
		case err != nil && !errors.Is(err, user.ErrNotFound):
			return fmt.Errorf("check phone: %w", err)
		}
	}

	return nil
}

func (s *Users) rowMessage(ctx context.Context, row int, err error) string {
	for _, known := range []error{user.ErrDuplicateEmail, user.ErrDuplicatePhone} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	s.log.ErrorContext(ctx, "import row failed", "row", row, "err", err)
	return "could not create user"
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func imageURL(v *string) *string {
	if v == nil {
		return nil
	}
	url := strings.TrimSpace(*v)
	if url == "" {
		return nil
	}
	return &url
}
