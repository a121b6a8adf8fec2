package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unionhall/triage-service/internal/api/http/handlers"
	"github.com/unionhall/triage-service/internal/auth"
	"github.com/unionhall/triage-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Tasks          *handlers.TasksHandler
	Audit          *handlers.AuditHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Ticket submission is the only open
// write; everything else sits behind bearer auth.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	app.Post("/tickets", cfg.Tickets.Create)

	staff := []domain.ActorType{domain.ActorAdmin, domain.ActorProponent}

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Get("", auth.RequireAdmin(), cfg.Tickets.List)
	tickets.Get("/:id", auth.RequireActor(staff...), cfg.Tickets.Get)
	tickets.Get("/:id/original", auth.RequireAnyActor(), cfg.Tickets.GetOriginal)
	tickets.Get("/:id/audit", auth.RequireAdmin(), cfg.Tickets.Audit)
	tickets.Get("/:id/task", auth.RequireActor(staff...), cfg.Tasks.GetForTicket)
	tickets.Post("/:id/override", auth.RequireAdmin(), cfg.Tickets.Override)
	tickets.Post("/:id/progress", auth.RequireActor(staff...), cfg.Tickets.MarkInProgress)
	tickets.Post("/:id/resolve", auth.RequireActor(staff...), cfg.Tickets.Resolve)

	tasks := app.Group("/tasks", cfg.AuthMiddleware.Handle)
	tasks.Post("", auth.RequireAdmin(), cfg.Tasks.Create)
	tasks.Get("/:id", auth.RequireActor(staff...), cfg.Tasks.Get)
	tasks.Get("/:id/diff", auth.RequireActor(staff...), cfg.Tasks.Diff)
	tasks.Post("/:id/edit", auth.RequireProponent(), cfg.Tasks.StartEditing)
	tasks.Post("/:id/resubmit", auth.RequireProponent(), cfg.Tasks.Resubmit)
	tasks.Post("/:id/approve", auth.RequireAdmin(), cfg.Tasks.Approve)
	tasks.Post("/:id/reject", auth.RequireAdmin(), cfg.Tasks.Reject)

	app.Get("/audit", cfg.AuthMiddleware.Handle, auth.RequireAdmin(), cfg.Audit.Query)
}
