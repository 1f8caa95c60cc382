package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/staffauth/internal/auth"
	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/geocoder89/staffauth/internal/repo/memory"
	"github.com/geocoder89/staffauth/internal/security"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Password123!"

func ptr[T any](v T) *T { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingHasher records Verify calls on top of a real bcrypt hasher.
type countingHasher struct {
	*security.Hasher
	mu       sync.Mutex
	verifies int
}

func newCountingHasher() *countingHasher {
	return &countingHasher{Hasher: security.NewHasher(bcrypt.MinCost)}
}

func (h *countingHasher) Verify(plain, digest string) bool {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return h.Hasher.Verify(plain, digest)
}

type recordingInvalidator struct {
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, id string) {
	r.ids = append(r.ids, id)
}

type fakeLookup struct {
	getByEmail func(ctx context.Context, email string) (user.User, error)
}

func (f fakeLookup) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return f.getByEmail(ctx, email)
}

func newUsersService(t *testing.T) (*Users, *memory.UsersRepo, *recordingInvalidator) {
	t.Helper()
	store := memory.NewUsersRepo()
	inv := &recordingInvalidator{}
	return NewUsers(store, security.NewHasher(bcrypt.MinCost), inv, discardLogger()), store, inv
}

func createRequest(email, phone string) user.CreateUserRequest {
	return user.CreateUserRequest{
		Email:     email,
		Phone:     phone,
		Password:  testPassword,
		FirstName: "John",
		LastName:  "Doe",
		Address:   "Ho Chi Minh City",
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newUsersService(t)

	active, err := svc.Create(ctx, createRequest("admin@restaurant.com", "+84901234561"))
	if err != nil {
		t.Fatal(err)
	}
	inactiveReq := createRequest("off@restaurant.com", "+84901234562")
	inactiveReq.IsActive = ptr(false)
	if _, err := svc.Create(ctx, inactiveReq); err != nil {
		t.Fatal(err)
	}

	tokens := auth.NewManager("test-secret", auth.LoginTokenTTL)
	hasher := newCountingHasher()
	a, err := NewAuth(store, hasher, tokens)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("valid credentials issue a token for the subject", func(t *testing.T) {
		res, err := a.Login(ctx, "  ADMIN@Restaurant.com ", testPassword)
		if err != nil {
			t.Fatal(err)
		}
		claims, err := tokens.Verify(res.Token)
		if err != nil {
			t.Fatalf("issued token does not verify: %v", err)
		}
		if claims.Subject != active.ID || claims.Role != string(user.RoleWaiter) {
			t.Fatalf("unexpected claims %+v", claims)
		}

		body, _ := json.Marshal(res)
		if strings.Contains(string(body), "$2a$") || strings.Contains(string(body), "password") {
			t.Fatalf("login result leaks the digest: %s", body)
		}
	})

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"wrong password", "admin@restaurant.com", "Wrong123!", user.ErrInvalidCredentials},
		{"unknown email", "ghost@restaurant.com", testPassword, user.ErrInvalidCredentials},
		{"inactive with right password", "off@restaurant.com", testPassword, user.ErrAccountInactive},
		{"inactive with wrong password", "off@restaurant.com", "Wrong123!", user.ErrAccountInactive},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := a.Login(ctx, tc.email, tc.password)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if res.Token != "" {
				t.Fatalf("no token expected on failure")
			}
		})
	}
}

func TestLoginUnknownEmailStillVerifies(t *testing.T) {
	hasher := newCountingHasher()
	a, err := NewAuth(memory.NewUsersRepo(), hasher, auth.NewManager("s", time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	_, _ = a.Login(context.Background(), "ghost@restaurant.com", testPassword)
	if hasher.verifies != 1 {
		t.Fatalf("expected one dummy verify, got %d", hasher.verifies)
	}
}

func TestLoginLookupFailureIsNotCredentials(t *testing.T) {
	boom := errors.New("db down")
	a, err := NewAuth(fakeLookup{getByEmail: func(context.Context, string) (user.User, error) {
		return user.User{}, boom
	}}, newCountingHasher(), auth.NewManager("s", time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.Login(context.Background(), "a@b.co", testPassword)
	if !errors.Is(err, boom) || errors.Is(err, user.ErrInvalidCredentials) {
		t.Fatalf("expected wrapped infra error, got %v", err)
	}
}

func TestCreateDefaultsAndHashes(t *testing.T) {
	svc, _, _ := newUsersService(t)

	u, err := svc.Create(context.Background(), createRequest(" John@Restaurant.COM ", "0912345678"))
	if err != nil {
		t.Fatal(err)
	}

	if u.ID == "" || u.Email != "john@restaurant.com" || u.Phone != "+84912345678" {
		t.Fatalf("unexpected normalization: %+v", u)
	}
	if u.Role != user.RoleWaiter || !u.IsActive {
		t.Fatalf("expected default Waiter/active, got %s/%v", u.Role, u.IsActive)
	}
	if u.PasswordHash == testPassword || !security.CheckPassword(u.PasswordHash, testPassword) {
		t.Fatalf("password not hashed")
	}
	if u.CreatedAt.IsZero() || !u.CreatedAt.Equal(u.UpdatedAt) {
		t.Fatalf("timestamps not set: %v %v", u.CreatedAt, u.UpdatedAt)
	}
}

func TestCreateUniqueness(t *testing.T) {
	svc, _, _ := newUsersService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, createRequest("a@restaurant.com", "+84912345678")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		email string
		phone string
		want  error
	}{
		{"email differs only by case", "A@Restaurant.com", "+84912345679", user.ErrDuplicateEmail},
		{"phone in national format", "b@restaurant.com", "0912345678", user.ErrDuplicatePhone},
		{"both taken reports email", "a@restaurant.com", "+84912345678", user.ErrDuplicateEmail},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, createRequest(tc.email, tc.phone)); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	svc, _, inv := newUsersService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, createRequest("a@restaurant.com", "+84912345671"))
	b, _ := svc.Create(ctx, createRequest("b@restaurant.com", "+84912345672"))

	if _, err := svc.Update(ctx, "missing", user.UpdateUserRequest{FirstName: ptr("X")}); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := svc.Update(ctx, b.ID, user.UpdateUserRequest{Email: ptr("A@restaurant.com")}); !errors.Is(err, user.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if _, err := svc.Update(ctx, b.ID, user.UpdateUserRequest{Phone: ptr("0912345671")}); !errors.Is(err, user.ErrDuplicatePhone) {
		t.Fatalf("expected ErrDuplicatePhone, got %v", err)
	}

	got, err := svc.Update(ctx, a.ID, user.UpdateUserRequest{
		Email:     ptr("a@restaurant.com"),
		FirstName: ptr("Jane"),
		Role:      ptr(user.RoleKitchen),
	})
	if err != nil {
		t.Fatalf("self-email update: %v", err)
	}
	if got.FirstName != "Jane" || got.Role != user.RoleKitchen {
		t.Fatalf("supplied fields not applied: %+v", got)
	}
	if got.LastName != a.LastName || got.Phone != a.Phone || got.IsActive != a.IsActive {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	if got.UpdatedAt.Before(a.UpdatedAt) {
		t.Fatalf("updatedAt went backwards")
	}

	if len(inv.ids) != 1 || inv.ids[0] != a.ID {
		t.Fatalf("expected one invalidation for %s, got %v", a.ID, inv.ids)
	}
}

func TestUpdateTrimsText(t *testing.T) {
	svc, _, _ := newUsersService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, createRequest("trim@restaurant.com", "+84912345679"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := svc.Update(ctx, a.ID, user.UpdateUserRequest{
		FirstName: ptr("  Jane "),
		LastName:  ptr("Doe\t"),
		Address:   ptr(" 12 Le Loi, Da Nang "),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.FirstName != "Jane" || got.LastName != "Doe" || got.Address != "12 Le Loi, Da Nang" {
		t.Fatalf("update must trim like create: %+v", got)
	}
}

func TestUpdatePassword(t *testing.T) {
	svc, store, inv := newUsersService(t)
	ctx := context.Background()
	u, _ := svc.Create(ctx, createRequest("a@restaurant.com", "+84912345671"))

	req := func(current, next string) user.UpdatePasswordRequest {
		return user.UpdatePasswordRequest{CurrentPassword: current, NewPassword: next, ConfirmPassword: next}
	}

	if err := svc.UpdatePassword(ctx, "missing", req(testPassword, "Password456!")); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.UpdatePassword(ctx, u.ID, req("Nope1234!", "Password456!")); !errors.Is(err, user.ErrWrongCurrentPassword) {
		t.Fatalf("expected ErrWrongCurrentPassword, got %v", err)
	}
	if err := svc.UpdatePassword(ctx, u.ID, req(testPassword, testPassword)); !errors.Is(err, user.ErrSamePassword) {
		t.Fatalf("expected ErrSamePassword, got %v", err)
	}

	if err := svc.UpdatePassword(ctx, u.ID, req(testPassword, "Password456!")); err != nil {
		t.Fatal(err)
	}

	stored, _ := store.GetByID(ctx, u.ID)
	if security.CheckPassword(stored.PasswordHash, testPassword) || !security.CheckPassword(stored.PasswordHash, "Password456!") {
		t.Fatalf("password not rotated")
	}
	if len(inv.ids) != 1 {
		t.Fatalf("expected invalidation after password change, got %v", inv.ids)
	}
}

func TestDelete(t *testing.T) {
	svc, _, inv := newUsersService(t)
	ctx := context.Background()
	a, _ := svc.Create(ctx, createRequest("a@restaurant.com", "+84912345671"))
	b, _ := svc.Create(ctx, createRequest("b@restaurant.com", "+84912345672"))

	if ok, err := svc.Delete(ctx, "missing"); ok || err != nil {
		t.Fatalf("missing id: got %v %v", ok, err)
	}
	if ok, err := svc.Delete(ctx, a.ID); !ok || err != nil {
		t.Fatalf("delete: got %v %v", ok, err)
	}

	if _, err := svc.DeleteMany(ctx, nil); !errors.Is(err, user.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if ok, _ := svc.DeleteMany(ctx, []string{"missing-1", "missing-2"}); ok {
		t.Fatalf("nothing should have been deleted")
	}
	if ok, err := svc.DeleteMany(ctx, []string{b.ID, "missing"}); !ok || err != nil {
		t.Fatalf("bulk delete: got %v %v", ok, err)
	}

	if _, err := svc.Get(ctx, b.ID); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected b to be gone, got %v", err)
	}
	if inv.ids[0] != a.ID {
		t.Fatalf("expected invalidation for deleted user, got %v", inv.ids)
	}
}

func TestImportManyReportsRowNumbers(t *testing.T) {
	svc, _, _ := newUsersService(t)
	ctx := context.Background()

	bad := createRequest("not-an-email", "+84912345672")
	rows := []user.CreateUserRequest{
		createRequest("a@restaurant.com", "+84912345671"),
		bad,
		createRequest("a@restaurant.com", "+84912345673"),
		createRequest("c@restaurant.com", "+84912345674"),
	}

	res := svc.ImportMany(ctx, rows)

	if len(res.Success) != 2 {
		t.Fatalf("expected 2 created, got %d (%+v)", len(res.Success), res.Errors)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 row errors, got %+v", res.Errors)
	}
	if res.Errors[0].Row != 3 || !strings.Contains(res.Errors[0].Error, "email") {
		t.Fatalf("unexpected first error %+v", res.Errors[0])
	}
	if res.Errors[1].Row != 4 || res.Errors[1].Error != user.ErrDuplicateEmail.Error() {
		t.Fatalf("unexpected second error %+v", res.Errors[1])
	}
}

func TestListNormalizesCriteria(t *testing.T) {
	svc, _, _ := newUsersService(t)

	page, err := svc.List(context.Background(), user.Criteria{Limit: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if page.Page != user.DefaultPage || page.Limit != user.MaxLimit || page.Users == nil {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestExportAllWalksPages(t *testing.T) {
	svc, store, _ := newUsersService(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		_, err := store.Create(ctx, user.User{
			ID:       fmt.Sprintf("u-%03d", i),
			Email:    fmt.Sprintf("u%03d@restaurant.com", i),
			Phone:    fmt.Sprintf("+849123%05d", i),
			Role:     user.RoleWaiter,
			IsActive: i%2 == 0,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	all, err := svc.ExportAll(ctx, user.Criteria{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 250 {
		t.Fatalf("exported %d, want 250", len(all))
	}

	active, _ := svc.ExportAll(ctx, user.Criteria{IsActive: ptr(true), Page: 7, Limit: 3})
	if len(active) != 125 {
		t.Fatalf("exported %d active, want 125", len(active))
	}
}
