package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/spec-kit/contacts-service/internal/domain"
)

// MemoryIdentityCache is an in-process cache for single instance
// deployments or when Redis is not configured.
type MemoryIdentityCache struct {
	lru *expirable.LRU[string, domain.User]
}

// NewMemoryIdentityCache holds at most size snapshots for ttl each.
func NewMemoryIdentityCache(size int, ttl time.Duration) *MemoryIdentityCache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	return &MemoryIdentityCache{lru: expirable.NewLRU[string, domain.User](size, nil, ttl)}
}

func (c *MemoryIdentityCache) Get(_ context.Context, username string) (*domain.User, bool, error) {
	user, ok := c.lru.Get(UserKey(username))
	if !ok {
		return nil, false, nil
	}
	return &user, true, nil
}

func (c *MemoryIdentityCache) Put(_ context.Context, user *domain.User) error {
	c.lru.Add(UserKey(user.Username), snapshot(user))
	return nil
}

func (c *MemoryIdentityCache) Invalidate(_ context.Context, username string) error {
	c.lru.Remove(UserKey(username))
	return nil
}
