// Package cache holds the identity snapshot cache consulted on every
// authenticated request.
package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/spec-kit/contacts-service/internal/domain"
)

// DefaultUserTTL bounds how long a snapshot may lag behind the store.
const DefaultUserTTL = time.Hour

// IdentityCache maps a username to a denormalized user snapshot.
// Implementations must expire entries on their own once the TTL elapses.
type IdentityCache interface {
	Get(ctx context.Context, username string) (*domain.User, bool, error)
	Put(ctx context.Context, user *domain.User) error
	Invalidate(ctx context.Context, username string) error
}

var errIncompleteSnapshot = errors.New("incomplete identity snapshot")

// UserKey is the storage key for username.
func UserKey(username string) string {
	return "user:" + username
}

func encodeSnapshot(u *domain.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"role":       string(u.Role),
		"confirmed":  strconv.FormatBool(u.Confirmed),
		"avatar_url": u.AvatarURL,
		"created_at": u.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeSnapshot(fields map[string]string) (*domain.User, error) {
	for _, key := range []string{"id", "username", "email", "role", "confirmed", "created_at"} {
		if _, ok := fields[key]; !ok {
			return nil, errIncompleteSnapshot
		}
	}
	confirmed, err := strconv.ParseBool(fields["confirmed"])
	if err != nil {
		return nil, errIncompleteSnapshot
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, errIncompleteSnapshot
	}
	user := &domain.User{
		ID:        fields["id"],
		Username:  fields["username"],
		Email:     fields["email"],
		Role:      domain.Role(fields["role"]),
		Confirmed: confirmed,
		AvatarURL: fields["avatar_url"],
		CreatedAt: createdAt,
	}
	if raw, ok := fields["updated_at"]; ok {
		if updatedAt, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			user.UpdatedAt = updatedAt
		}
	}
	return user, nil
}

// snapshot strips secrets before a user leaves the store boundary.
func snapshot(u *domain.User) domain.User {
	cp := *u
	cp.PasswordHash = ""
	return cp
}
