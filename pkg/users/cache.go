package users

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/badge/pkg/auth"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = time.Minute
)

// CachedStore adds a read-through LRU in front of Store for ID lookups.
// Entries are copies; callers may not mutate what the cache holds.
type CachedStore struct {
	*Store
	byID *expirable.LRU[string, auth.UserIdentity]
}

// NewCachedStore wraps store with an expiring LRU of size entries
func NewCachedStore(store *Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{
		Store: store,
		byID:  expirable.NewLRU[string, auth.UserIdentity](size, nil, ttl),
	}
}

// FindByID serves from cache when possible
func (c *CachedStore) FindByID(ctx context.Context, id string) (*auth.UserIdentity, error) {
	if user, ok := c.byID.Get(id); ok {
		return &user, nil
	}

	user, err := c.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.byID.Add(id, *user)
	return user, nil
}

// CreateExternalUser updates the mirror and drops any stale cached copy
func (c *CachedStore) CreateExternalUser(ctx context.Context, id, email, displayName, provider string) (*auth.UserIdentity, error) {
	user, err := c.Store.CreateExternalUser(ctx, id, email, displayName, provider)
	c.byID.Remove(id)
	return user, err
}

// Len returns the number of cached entries
func (c *CachedStore) Len() int {
	return c.byID.Len()
}
