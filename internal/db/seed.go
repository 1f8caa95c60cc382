package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/google/uuid"
)

// Seeder is the slice of a user store that seeding needs. Both the Postgres
// and the memory repositories satisfy it.
type Seeder interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

type seedAccount struct {
	email, phone, first, last string
	role                      user.Role
}

var seedAccounts = []seedAccount{
	{"admin@restaurant.com", "+84901234561", "Admin", "User", user.RoleAdmin},
	{"cashier@restaurant.com", "+84901234562", "Cashier", "User", user.RoleCashier},
	{"kitchen@restaurant.com", "+84901234563", "Kitchen", "User", user.RoleKitchen},
	{"waiter1@restaurant.com", "+84901234564", "Waiter", "One", user.RoleWaiter},
	{"waiter2@restaurant.com", "+84901234565", "Waiter", "Two", user.RoleWaiter},
}

// SeedUsers creates one staff account per role when the store is empty. It
// returns the number of accounts created.
func SeedUsers(ctx context.Context, store Seeder, hash func(string) (string, error), password string, log *slog.Logger) (int, error) {
	existing, err := store.Count(ctx)
	if err != nil {
		return 0, err
	}

	if existing > 0 {
		log.Info("users already seeded", "count", existing)
		return 0, nil
	}

	now := time.Now().UTC()
	created := 0

	for _, a := range seedAccounts {
		// hashed per account so every seed gets its own salt
		digest, err := hash(password)
		if err != nil {
			return created, fmt.Errorf("hash seed password for %s: %w", a.email, err)
		}

		image := "https://example.com/" + strings.TrimSuffix(a.email, "@restaurant.com") + ".jpg"

		_, err = store.Create(ctx, user.User{
			ID:           uuid.NewString(),
			Email:        a.email,
			Phone:        a.phone,
			PasswordHash: digest,
			FirstName:    a.first,
			LastName:     a.last,
			Address:      "Ho Chi Minh City",
			ImageURL:     &image,
			Role:         a.role,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return created, err
		}
		created++
	}

	log.Info("users seeded", "count", created)
	return created, nil
}
