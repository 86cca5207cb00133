package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ezelpc/aurontek-routing/internal/api/http/handlers"
	"github.com/ezelpc/aurontek-routing/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Routing        *handlers.RoutingHandler
	AuthMiddleware *auth.ServiceAuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", cfg.Health.Root)
	app.Get("/health", cfg.Health.Ready)
	app.Get("/health/live", cfg.Health.Live)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/classify", cfg.Routing.Classify)
	protected.Post("/assign", cfg.Routing.Assign)
}
