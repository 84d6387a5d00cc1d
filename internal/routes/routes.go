package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/whisperwall/secrets-backend/internal/config"
	"github.com/whisperwall/secrets-backend/internal/handlers"
	"github.com/whisperwall/secrets-backend/internal/middleware"
	"github.com/whisperwall/secrets-backend/internal/services"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	sessions *services.SessionManager,
	authHandler *handlers.AuthHandler,
	secretHandler *handlers.SecretHandler,
	healthHandler *handlers.HealthHandler,
) {
	api := app.Group("/api")

	api.Get("/health", healthHandler.Check)

	// The shared listing is public on purpose; only submitting requires a
	// session.
	api.Get("/secrets", secretHandler.List)

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/:provider", authHandler.OAuthBegin)
	auth.Get("/:provider/callback", authHandler.OAuthCallback)

	protected := api.Group("", middleware.JWTProtected(cfg), middleware.RequireUser(sessions))
	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/secret", secretHandler.Mine)
	protected.Post("/secret", secretHandler.Submit)
	protected.Delete("/secret", secretHandler.Clear)
}
