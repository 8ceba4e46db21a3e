package dto

import (
	"time"

	"github.com/spec-kit/contacts-service/internal/domain"
)

// RegisterRequest payload for new users.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginForm is the form-encoded password grant.
type LoginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// TokenResponse is returned by login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// EmailRequest carries a single address, used by request_email and
// forgot-password.
type EmailRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest redeems a password reset token.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// MessageResponse wraps a display message.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse is the public view of an identity.
type UserResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Avatar    string      `json:"avatar"`
	Role      domain.Role `json:"role"`
	Confirmed bool        `json:"confirmed"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewUserResponse maps a domain user. The password hash never leaves here.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Avatar:    u.AvatarURL,
		Role:      u.Role,
		Confirmed: u.Confirmed,
		CreatedAt: u.CreatedAt,
	}
}
