package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/staffauth/internal/auth"
	"github.com/geocoder89/staffauth/internal/domain/user"
)

// dummyPassword feeds the verify on the unknown-email path so it costs the
// same as a wrong password.
const dummyPassword = "staffauth-timing-equalizer"

type CredentialLookup interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type LoginResult struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

type Auth struct {
	users     CredentialLookup
	hasher    PasswordHasher
	tokens    TokenIssuer
	dummyHash string
}

func NewAuth(users CredentialLookup, hasher PasswordHasher, tokens TokenIssuer) (*Auth, error) {
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Auth{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		dummyHash: dummy,
	}, nil
}

// Login checks credentials and issues a bearer token. Unknown email and wrong
// password are indistinguishable; an inactive account is reported before the
// password is checked.
func (a *Auth) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = user.NormalizeEmail(email)

	found, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			a.hasher.Verify(password, a.dummyHash)
			return LoginResult{}, user.ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("lookup user by email: %w", err)
	}

	if !found.IsActive {
		return LoginResult{}, user.ErrAccountInactive
	}

	if !a.hasher.Verify(password, found.PasswordHash) {
		return LoginResult{}, user.ErrInvalidCredentials
	}

	token, err := a.tokens.Issue(auth.Identity{
		SubjectID: found.ID,
		Email:     found.Email,
		Role:      string(found.Role),
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	return LoginResult{Token: token, User: found}, nil
}
