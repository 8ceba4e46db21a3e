package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the coarse permission tier attached to a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole normalizes a client supplied role. Empty input yields RoleUser.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// User is the authentication record for an account holder.
// PasswordHash is never serialized to clients or the identity cache.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Confirmed    bool
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
