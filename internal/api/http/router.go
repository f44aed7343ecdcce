package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/bugsage-dev/bugsage/internal/api/http/handlers"
	"github.com/bugsage-dev/bugsage/internal/auth"
	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Bugs           *handlers.BugsHandler
	Attachments    *handlers.AttachmentsHandler
	Admin          *handlers.AdminHandler
	Dashboard      *handlers.DashboardHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/check", cfg.Auth.Check)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	bugs := api.Group("/bugs")
	bugs.Get("/", cfg.Bugs.List)
	bugs.Post("/", cfg.Bugs.Create)
	bugs.Get("/search", cfg.Bugs.Search)
	bugs.Get("/:id", cfg.Bugs.Get)
	bugs.Put("/:id", cfg.Bugs.Update)
	bugs.Post("/:id/status", cfg.Bugs.UpdateStatus)
	bugs.Post("/:id/comments", cfg.Bugs.AddComment)
	bugs.Get("/:id/history", cfg.Bugs.History)
	bugs.Post("/:id/attachments", cfg.Attachments.Upload)
	api.Get("/attachments/:id", cfg.Attachments.Download)

	api.Get("/projects", cfg.Admin.ListProjects)
	api.Post("/projects", auth.RequireRole(domain.UserRoleAdmin), cfg.Admin.CreateProject)
	api.Get("/users", cfg.Admin.ListUsers)
	api.Put("/users/:id/role", auth.RequireRole(domain.UserRoleAdmin), cfg.Admin.UpdateRole)

	dashboard := api.Group("/dashboard")
	dashboard.Get("/stats", cfg.Dashboard.Stats)
	dashboard.Get("/recent", cfg.Dashboard.Recent)
	dashboard.Get("/charts", cfg.Dashboard.Charts)

	api.Get("/notifications", cfg.Notifications.List)
	api.Post("/notifications/:id/read", cfg.Notifications.MarkRead)
}
