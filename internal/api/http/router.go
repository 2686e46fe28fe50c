package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/party-admin-service/internal/api/http/handlers"
	"github.com/spec-kit/party-admin-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	History        *handlers.HistoryHandler
	Profile        *handlers.ProfileHandler
	Push           *handlers.PushHandler
	Assets         *handlers.AssetsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/confirm-email", cfg.Auth.ConfirmEmail)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	profile := api.Group("/profile", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	profile.Get("/", cfg.Profile.Get)
	profile.Put("/", cfg.Profile.Update)
	profile.Put("/password", cfg.Profile.ChangePassword)

	admin := api.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/users", cfg.Users.List)
	admin.Post("/users", cfg.Users.Create)
	admin.Put("/users/:id", cfg.Users.Update)
	admin.Delete("/users/:id", cfg.Users.Delete)
	admin.Get("/history", cfg.History.List)

	push := api.Group("/push")
	push.Post("/subscribe", cfg.Push.Subscribe)
	push.Delete("/subscribe", cfg.Push.Unsubscribe)
	push.Post("/broadcast", cfg.AuthMiddleware.Handle, auth.RequireAdmin(), cfg.Push.Broadcast)

	if cfg.Assets != nil {
		api.Get("/cache/status", cfg.Assets.Status)
		api.Get("/cache/updates", cfg.Assets.WaitForUpdate)
		// Asset fallback: anything the API did not claim is served from
		// the offline cache.
		app.Get("/*", cfg.Assets.Serve)
	}
}
