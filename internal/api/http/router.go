package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/contacts-service/internal/api/http/handlers"
	"github.com/spec-kit/contacts-service/internal/auth"
	"github.com/spec-kit/contacts-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Auth            *handlers.AuthHandler
	Users           *handlers.UsersHandler
	Contacts        *handlers.ContactsHandler
	AuthMiddleware  *auth.AuthMiddleware
	MeRateLimit     *RateLimiter
	AvatarAdminOnly bool
	Metrics         *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authenticated := cfg.AuthMiddleware.Handle

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/confirmed_email/:token", cfg.Auth.ConfirmedEmail)
	authGroup.Post("/request_email", cfg.Auth.RequestEmail)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Get("/admin", authenticated, auth.AdminOnly(), cfg.Auth.Admin)

	users := app.Group("/users", authenticated)
	users.Get("/me", cfg.MeRateLimit.Handle, cfg.Users.Me)
	avatar := []fiber.Handler{}
	if cfg.AvatarAdminOnly {
		avatar = append(avatar, auth.AdminOnly())
	}
	users.Patch("/avatar", append(avatar, cfg.Users.UpdateAvatar)...)

	contacts := app.Group("/contacts", authenticated)
	contacts.Get("/", cfg.Contacts.List)
	contacts.Post("/", cfg.Contacts.Create)
	contacts.Get("/birthdays", cfg.Contacts.Birthdays)
	contacts.Get("/search", cfg.Contacts.Search)
	contacts.Get("/:id", cfg.Contacts.Get)
	contacts.Put("/:id", cfg.Contacts.Update)
	contacts.Delete("/:id", cfg.Contacts.Delete)
}
