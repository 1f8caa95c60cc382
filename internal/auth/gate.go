package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/staffauth/internal/domain/user"
)

var (
	ErrTokenRequired  = errors.New("access token is required")
	ErrInvalidToken   = errors.New("invalid access token")
	ErrUnknownSubject = errors.New("token subject not found")
	ErrForbidden      = errors.New("role not allowed")
)

type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// IdentityLookup resolves the live record behind a token subject.
type IdentityLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// Gate authenticates bearer tokens against the live user record and checks
// role allow-lists.
type Gate struct {
	tokens TokenVerifier
	users  IdentityLookup
}

func NewGate(tokens TokenVerifier, users IdentityLookup) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authenticate resolves the Authorization header value to an active user.
func (g *Gate) Authenticate(ctx context.Context, authHeader string) (user.User, error) {
	raw, ok := BearerToken(authHeader)
	if !ok {
		return user.User{}, ErrTokenRequired
	}

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return user.User{}, ErrTokenExpired
		}
		return user.User{}, ErrInvalidToken
	}

	u, err := g.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUnknownSubject
		}
		return user.User{}, fmt.Errorf("resolve token subject: %w", err)
	}

	if !u.IsActive {
		return user.User{}, user.ErrAccountInactive
	}

	return u, nil
}

// Authorize checks the live role, not the role claim baked into the token.
func (g *Gate) Authorize(u user.User, allowed user.RoleSet) error {
	if !allowed.Allows(u.Role) {
		return ErrForbidden
	}
	return nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	return raw, true
}
