package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/concerttix/console/internal/api/http/handlers"
	"github.com/concerttix/console/internal/guard"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Auth          *handlers.AuthHandler
	Concerts      *handlers.ConcertsHandler
	Orders        *handlers.OrdersHandler
	Admin         *handlers.AdminHandler
	Notifications *handlers.NotificationsHandler
	Sessions      guard.SessionSource
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	protected := guard.Require(cfg.Sessions, guard.Protected)
	customerOnly := guard.Require(cfg.Sessions, guard.CustomerOnly)
	adminOnly := guard.Require(cfg.Sessions, guard.AdminOnly)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Get("/session", cfg.Auth.Session)
	authGroup.Put("/profile", protected, cfg.Auth.UpdateProfile)

	concerts := app.Group("/concerts")
	concerts.Get("", cfg.Concerts.List)
	concerts.Get("/:id", cfg.Concerts.Get)
	concerts.Get("/:id/tickets", cfg.Concerts.TicketTypes)

	orders := app.Group("/orders", customerOnly)
	orders.Get("", cfg.Orders.List)
	orders.Post("", cfg.Orders.Create)
	orders.Get("/:id", cfg.Orders.Get)
	orders.Put("/:id/pay", cfg.Orders.Pay)
	orders.Put("/:id/cancel", cfg.Orders.Cancel)
	orders.Get("/:id/ticket", cfg.Orders.Ticket)
	orders.Get("/:id/ticket/preview", cfg.Orders.Preview)

	admin := app.Group("/admin", adminOnly)
	admin.Get("/dashboard", cfg.Admin.Dashboard)
	admin.Get("/orders", cfg.Admin.Orders)
	admin.Put("/orders/:id/verify", cfg.Admin.Verify)
	admin.Get("/users", cfg.Admin.Users)
	admin.Get("/users/:id", cfg.Admin.User)
	admin.Put("/users/:id", cfg.Admin.UpdateUser)
	admin.Get("/reports/sales", cfg.Admin.SalesReport)
	admin.Post("/concerts", cfg.Concerts.Create)
	admin.Put("/concerts/:id", cfg.Concerts.Update)
	admin.Delete("/concerts/:id", cfg.Concerts.Delete)
	admin.Post("/concerts/:id/tickets", cfg.Concerts.CreateTicketType)
	admin.Get("/tickets/:id", cfg.Concerts.TicketType)
	admin.Put("/tickets/:id", cfg.Concerts.UpdateTicketType)
	admin.Delete("/tickets/:id", cfg.Concerts.DeleteTicketType)

	app.Get("/notifications", protected, cfg.Notifications.Drain)
}
