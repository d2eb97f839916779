package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/visionops/ticket-service/internal/api/http/handlers"
	"github.com/visionops/ticket-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Stats          *handlers.StatsHandler
	AuthMiddleware *auth.AuthMiddleware
	ProviderAuth   *auth.ProviderAuth
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	// Alert ingestion is authenticated by provider API key, everything
	// else by operator bearer token. Auth attaches per route so the
	// provider POST is not shadowed by the bearer middleware.
	bearer := cfg.AuthMiddleware.Handle
	api.Post("/tickets", cfg.ProviderAuth.Handle, cfg.Tickets.CreateTicket)
	api.Get("/tickets", bearer, cfg.Tickets.ListTickets)
	// Registered before :id so "stats" is not captured as a ticket ID.
	api.Get("/tickets/stats", bearer, cfg.Stats.GetStats)
	api.Get("/tickets/:id", bearer, cfg.Tickets.GetTicket)
	api.Patch("/tickets/:id/status", bearer, cfg.Tickets.UpdateStatus)
	api.Post("/tickets/:id/assignee", bearer, cfg.Tickets.AssignTicket)
	api.Post("/tickets/:id/comments", bearer, cfg.Tickets.AddComment)
	api.Post("/tickets/:id/sla/refresh", bearer, cfg.Tickets.RefreshSLA)
}
