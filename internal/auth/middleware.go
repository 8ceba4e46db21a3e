package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/contacts-service/internal/domain"
	apperrors "github.com/spec-kit/contacts-service/pkg/util/errorutil"
)

const identityKey = "auth_identity"

// CredentialsMessage is shown for every authentication failure.
const CredentialsMessage = "Could not validate credentials"

// Resolver maps a bearer token to the caller.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*domain.User, error)
}

// AuthMiddleware validates bearer tokens and loads the caller's identity.
type AuthMiddleware struct {
	resolver Resolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(resolver Resolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("Not authenticated")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return apperrors.NewUnauthorized("Not authenticated")
	}

	user, err := m.resolver.Resolve(c.UserContext(), strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized(CredentialsMessage)
	}

	c.Locals(identityKey, user)
	return c.Next()
}

// UserFromContext retrieves the authenticated identity.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	user, ok := c.Locals(identityKey).(*domain.User)
	return user, ok && user != nil
}
