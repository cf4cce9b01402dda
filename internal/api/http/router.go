package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Authz          *handlers.AuthzHandler
	Metrics        fiber.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	protected.Get("/users/me", cfg.Users.Me)
	protected.Post("/users/me/password", cfg.Users.ChangePassword)
	protected.Post("/users", cfg.Users.CreateAccount)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/transitions", cfg.Tickets.Transition)
	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Delete("/:id/comments/:commentId", cfg.Tickets.DeleteComment)
	tickets.Get("/:id/history", cfg.Tickets.History)

	protected.Post("/authz/check", cfg.Authz.Check)
}
