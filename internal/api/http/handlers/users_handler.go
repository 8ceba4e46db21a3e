package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/contacts-service/internal/api/dto"
	"github.com/spec-kit/contacts-service/internal/auth"
	"github.com/spec-kit/contacts-service/internal/service"
	apperrors "github.com/spec-kit/contacts-service/pkg/util/errorutil"
)

// MaxAvatarBytes bounds avatar uploads.
const MaxAvatarBytes = 5 << 20

// UsersHandler exposes profile endpoints for the authenticated caller.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// Me handles GET /users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Not authenticated")
	}
	return c.JSON(dto.NewUserResponse(user))
}

// UpdateAvatar handles PATCH /users/avatar with a multipart "file" field.
func (h *UsersHandler) UpdateAvatar(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Not authenticated")
	}

	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", nil)
	}
	if header.Size > MaxAvatarBytes {
		return apperrors.NewDomainError("PAYLOAD_TOO_LARGE", "avatar must not exceed 5 MiB", fiber.StatusRequestEntityTooLarge, nil)
	}
	contentType := header.Header.Get(fiber.HeaderContentType)
	if !strings.HasPrefix(contentType, "image/") {
		return apperrors.NewValidationError("avatar must be an image", map[string]any{"content_type": contentType})
	}

	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	updated, err := h.users.UpdateAvatar(c.UserContext(), user, service.AvatarUpload{
		Body:        file,
		Size:        header.Size,
		ContentType: contentType,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(updated))
}
