package handlers

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/contacts-service/internal/api/dto"
	"github.com/spec-kit/contacts-service/internal/auth"
	"github.com/spec-kit/contacts-service/internal/service"
	apperrors "github.com/spec-kit/contacts-service/pkg/util/errorutil"
)

var passwordTooLong = fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes)

// AuthHandler exposes the account lifecycle endpoints.
type AuthHandler struct {
	auth      *service.AuthService
	publicURL string
}

// NewAuthHandler constructs handler. Confirmation links point at publicURL,
// or at the request's own origin when it is empty.
func NewAuthHandler(authService *service.AuthService, publicURL string) *AuthHandler {
	return &AuthHandler{auth: authService, publicURL: publicURL}
}

func (h *AuthHandler) baseURL(c *fiber.Ctx) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	return c.BaseURL()
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := map[string]any{}
	if strings.TrimSpace(req.Username) == "" {
		details["username"] = "required"
	}
	if !validEmail(req.Email) {
		details["email"] = "invalid email"
	}
	switch {
	case req.Password == "":
		details["password"] = "required"
	case len(req.Password) > auth.MaxPasswordBytes:
		details["password"] = passwordTooLong
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("username, email, password required", details)
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		BaseURL:  h.baseURL(c),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewUserResponse(user))
}

// Login handles POST /auth/login with a form-encoded username and password.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var form dto.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if form.Username == "" || form.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	token, err := h.auth.Login(c.UserContext(), form.Username, form.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// ConfirmedEmail handles GET /auth/confirmed_email/:token.
func (h *AuthHandler) ConfirmedEmail(c *fiber.Ctx) error {
	msg, err := h.auth.ConfirmEmail(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: msg})
}

// RequestEmail handles POST /auth/request_email.
func (h *AuthHandler) RequestEmail(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := c.BodyParser(&req); err != nil || !validEmail(req.Email) {
		return apperrors.NewValidationError("valid email required", nil)
	}
	msg, err := h.auth.RequestConfirmationEmail(c.UserContext(), req.Email, h.baseURL(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: msg})
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := c.BodyParser(&req); err != nil || !validEmail(req.Email) {
		return apperrors.NewValidationError("valid email required", nil)
	}
	msg, err := h.auth.ForgotPassword(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: msg})
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Token == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("token and new_password required", nil)
	}
	if len(req.NewPassword) > auth.MaxPasswordBytes {
		return apperrors.NewValidationError("invalid new_password", map[string]any{"new_password": passwordTooLong})
	}
	msg, err := h.auth.ResetPassword(c.UserContext(), req.Token, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: msg})
}

// Admin handles GET /auth/admin. Only reachable through auth.AdminOnly.
func (h *AuthHandler) Admin(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Not authenticated")
	}
	return c.JSON(dto.MessageResponse{
		Message: fmt.Sprintf("Вітаємо, %s! Це адміністративна панель", user.Username),
	})
}

func validEmail(raw string) bool {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	return err == nil && addr.Address == raw
}
