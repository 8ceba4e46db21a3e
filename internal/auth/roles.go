package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/contacts-service/internal/domain"
	apperrors "github.com/spec-kit/contacts-service/pkg/util/errorutil"
)

// ForbiddenMessage is returned when the caller lacks the admin role.
const ForbiddenMessage = "Недостатньо прав доступу"

// RequireAdmin passes user through unchanged when it holds the admin role.
// Any other role, including unknown values, is forbidden.
func RequireAdmin(user *domain.User) (*domain.User, error) {
	if user == nil || !user.IsAdmin() {
		return nil, apperrors.NewForbidden(ForbiddenMessage)
	}
	return user, nil
}

// AdminOnly guards a route. It must run after AuthMiddleware.Handle.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("Not authenticated")
		}
		if _, err := RequireAdmin(user); err != nil {
			return err
		}
		return c.Next()
	}
}
