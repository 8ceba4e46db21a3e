package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/contacts-service/internal/domain"
)

// RedisIdentityCache stores snapshots as Redis hashes with a key TTL.
type RedisIdentityCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisIdentityCache wraps client. A non-positive ttl uses DefaultUserTTL.
func NewRedisIdentityCache(client redis.Cmdable, ttl time.Duration) *RedisIdentityCache {
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	return &RedisIdentityCache{client: client, ttl: ttl}
}

// Get returns the cached snapshot for username, if present.
func (c *RedisIdentityCache) Get(ctx context.Context, username string) (*domain.User, bool, error) {
	fields, err := c.client.HGetAll(ctx, UserKey(username)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	user, err := decodeSnapshot(fields)
	if errors.Is(err, errIncompleteSnapshot) {
		_ = c.client.Del(ctx, UserKey(username)).Err()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// Put writes the snapshot and its TTL in one MULTI/EXEC.
func (c *RedisIdentityCache) Put(ctx context.Context, user *domain.User) error {
	snap := snapshot(user)
	key := UserKey(user.Username)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, encodeSnapshot(&snap))
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

// Invalidate drops the snapshot for username.
func (c *RedisIdentityCache) Invalidate(ctx context.Context, username string) error {
	return c.client.Del(ctx, UserKey(username)).Err()
}
