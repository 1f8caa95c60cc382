package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/geocoder89/staffauth/internal/domain/user"
)

const identityKeyPrefix = "staffauth:identity:v1:"

type IdentityLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// UserLookup caches the record behind a token subject for a short TTL. The
// password digest never reaches the cache since User drops it from JSON.
// Store failures degrade to a direct lookup.
type UserLookup struct {
	next  IdentityLookup
	store Store
	ttl   time.Duration
	log   *slog.Logger
}

func NewUserLookup(next IdentityLookup, store Store, ttl time.Duration, log *slog.Logger) *UserLookup {
	if log == nil {
		log = slog.Default()
	}
	return &UserLookup{next: next, store: store, ttl: ttl, log: log}
}

func IdentityKey(id string) string {
	return identityKeyPrefix + id
}

func (l *UserLookup) GetByID(ctx context.Context, id string) (user.User, error) {
	key := IdentityKey(id)

	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.log.WarnContext(ctx, "identity cache get failed", "err", err)
	}
	if ok {
		var u user.User
		if err := json.Unmarshal(raw, &u); err == nil {
			return u, nil
		}
		_ = l.store.Delete(ctx, key)
	}

	u, err := l.next.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if raw, err := json.Marshal(u); err == nil {
		if err := l.store.Set(ctx, key, raw, l.ttl); err != nil {
			l.log.WarnContext(ctx, "identity cache set failed", "err", err)
		}
	}

	return u, nil
}

func (l *UserLookup) Invalidate(ctx context.Context, id string) {
	if err := l.store.Delete(ctx, IdentityKey(id)); err != nil {
		l.log.WarnContext(ctx, "identity cache invalidate failed", "user_id", id, "err", err)
	}
}
