package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/velora-im/velora-chat-api/internal/config"
	"github.com/velora-im/velora-chat-api/internal/handler"
	"github.com/velora-im/velora-chat-api/internal/middleware"
	"github.com/velora-im/velora-chat-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler   *handler.AuthHandler
	ChatHandler   *handler.ChatHandler
	AdminHandler  *handler.AdminHandler
	EmbedHandler  *handler.EmbedHandler
	JWTMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		auth := app.Group("/api/v1/auth")
		deps.AuthHandler.Register(auth)
	}

	if deps.EmbedHandler != nil {
		embed := app.Group("/api/v1/embed")
		deps.EmbedHandler.Register(embed)
	}

	// Chat requires an authenticated, approved account.
	if deps.ChatHandler != nil {
		chat := app.Group("/api/v1/chat", jwtMiddleware, middleware.RequireApproved())
		deps.ChatHandler.Register(chat)
	}

	// Admin surface is gated on the global admin flag.
	if deps.AdminHandler != nil {
		admin := app.Group("/api/admin", jwtMiddleware, middleware.RequireAdmin())
		deps.AdminHandler.Register(admin)
	}
}
