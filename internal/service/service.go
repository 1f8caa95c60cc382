// Package service holds the authentication and user lifecycle use cases. It
// depends on narrow interfaces so the Postgres and memory stores, and the
// handler tests' fakes, all plug in the same way.
package service

import (
	"context"

	"github.com/geocoder89/staffauth/internal/auth"
	"github.com/geocoder89/staffauth/internal/domain/user"
)

type UserStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByPhone(ctx context.Context, phone string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	Update(ctx context.Context, id string, p user.Patch) (user.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	List(ctx context.Context, c user.Criteria) ([]user.User, int, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

// Invalidator drops whatever is cached for a user after it changes.
type Invalidator interface {
	Invalidate(ctx context.Context, id string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, string) {}
