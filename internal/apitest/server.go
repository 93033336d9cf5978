// Package apitest runs an in-process stand-in for the ticketing REST API.
// It speaks the same envelope, issues real HS256 tokens and keeps its
// fixtures in memory so tests can drive every client path.
package apitest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/concerttix/console/internal/auth"
	"github.com/concerttix/console/internal/domain"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

// Fixture credentials.
const (
	AdminEmail    = "admin@example.com"
	CustomerEmail = "customer@example.com"
	Password      = "password"
)

type account struct {
	user domain.User
	hash string
}

type failure struct {
	status    int
	remaining int
}

// Server is the fake API. BaseURL ends in /api like the real deployment.
type Server struct {
	*httptest.Server
	BaseURL string

	tokens *auth.TokenManager

	mu          sync.Mutex
	nextID      int64
	accounts    map[int64]*account
	concerts    map[int64]*domain.Concert
	ticketTypes map[int64]*domain.TicketType
	orders      map[int64]*domain.Order
	revoked     map[string]bool
	calls       map[string]int
	failures    map[string]*failure
	hook        func(route string)
}

// NewServer starts a fake API seeded with one admin, one customer and one
// concert. It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		tokens:      auth.NewTokenManager("apitest-secret", time.Hour),
		nextID:      100,
		accounts:    map[int64]*account{},
		concerts:    map[int64]*domain.Concert{},
		ticketTypes: map[int64]*domain.TicketType{},
		orders:      map[int64]*domain.Order{},
		revoked:     map[string]bool{},
		calls:       map[string]int{},
		failures:    map[string]*failure{},
	}
	s.seed(t)

	s.Server = httptest.NewServer(adaptor.FiberApp(s.newApp()))
	s.BaseURL = s.Server.URL + "/api"
	t.Cleanup(s.Server.Close)
	return s
}

func (s *Server) seed(t testing.TB) {
	t.Helper()
	hash, err := auth.HashPassword(Password, 0)
	if err != nil {
		t.Fatalf("hash fixture password: %v", err)
	}
	phone := "+62 812 0000 0000"
	s.accounts[1] = &account{user: domain.User{ID: 1, Name: "Admin", Email: AdminEmail, Role: domain.RoleAdmin}, hash: hash}
	s.accounts[2] = &account{user: domain.User{ID: 2, Name: "Customer", Email: CustomerEmail, Role: domain.RoleUser, Phone: &phone}, hash: hash}

	s.concerts[1] = &domain.Concert{
		ID: 1, Title: "Summer Sound", Venue: "Jakarta Arena",
		Date: "2026-12-20", Time: "19:00", Status: domain.ConcertUpcoming,
	}
	s.ticketTypes[1] = &domain.TicketType{ID: 1, ConcertID: 1, Name: "VIP", Price: 150.50, QuantityTotal: 100, QuantityAvailable: 100}
	s.ticketTypes[2] = &domain.TicketType{ID: 2, ConcertID: 1, Name: "Regular", Price: 49.99, QuantityTotal: 500, QuantityAvailable: 500}
}

// IssueToken signs a token for a fixture user with the given lifetime.
func (s *Server) IssueToken(t testing.TB, email string, ttl time.Duration) string {
	t.Helper()
	s.mu.Lock()
	acc := s.accountByEmail(email)
	s.mu.Unlock()
	if acc == nil {
		t.Fatalf("no fixture account %q", email)
	}
	token, _, err := s.tokens.GenerateTokenTTL(&acc.user, ttl)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// User returns a copy of a fixture user.
func (s *Server) User(email string) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accountByEmail(email)
	if acc == nil {
		return nil
	}
	return acc.user.Clone()
}

// Revoke makes every later request bearing token answer 401.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// FailNext makes the next n calls to route ("GET /auth/profile") answer status.
func (s *Server) FailNext(route string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &failure{status: status, remaining: n}
}

// OnRequest installs a hook that runs at the start of every request.
func (s *Server) OnRequest(hook func(route string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Calls reports how many requests hit route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// SeedOrder stores an order for the fixture user with the given status.
func (s *Server) SeedOrder(email string, status domain.OrderStatus) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accountByEmail(email)
	if acc == nil {
		return nil
	}
	tt := s.ticketTypes[1]
	order := s.newOrder(acc.user.ID, []domain.OrderLine{{TicketTypeID: tt.ID, Quantity: 2}})
	order.Status = status
	now := domain.NewTimestamp(time.Now())
	if status != domain.OrderStatusPending && status != domain.OrderStatusCancelled {
		m := domain.PaymentBankTransfer
		order.PaymentMethod = &m
		order.PaymentSubmittedAt = now
	}
	if status == domain.OrderStatusPaid {
		order.PaymentVerifiedAt = now
	}
	return cloneOrder(order)
}

// Order returns the stored copy of an order.
func (s *Server) Order(id int64) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	return cloneOrder(o)
}

func (s *Server) accountByEmail(email string) *account {
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.user.Email, email) {
			return acc
		}
	}
	return nil
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(s.intercept)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	bearer := auth.NewBearerMiddleware(s.tokens, s.lookupUser, s.isRevoked)
	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", s.login)
	authGroup.Post("/register", s.register)
	authGroup.Get("/profile", bearer.Handle, s.profile)
	authGroup.Put("/profile", bearer.Handle, s.updateProfile)

	concerts := api.Group("/concerts")
	concerts.Get("", s.listConcerts)
	concerts.Get("/:id", s.getConcert)
	concerts.Get("/:id/tickets", s.concertTickets)
	concerts.Post("", bearer.Handle, auth.RequireAdmin(), s.createConcert)
	concerts.Put("/:id", bearer.Handle, auth.RequireAdmin(), s.updateConcert)
	concerts.Delete("/:id", bearer.Handle, auth.RequireAdmin(), s.deleteConcert)
	concerts.Post("/:id/tickets", bearer.Handle, auth.RequireAdmin(), s.createTicketType)

	tickets := api.Group("/tickets", bearer.Handle)
	tickets.Get("/download/:id", s.downloadTicket)
	tickets.Get("/preview/:id", s.downloadTicket)
	tickets.Get("/:id", s.getTicketType)
	tickets.Put("/:id", auth.RequireAdmin(), s.updateTicketType)
	tickets.Delete("/:id", auth.RequireAdmin(), s.deleteTicketType)

	orders := api.Group("/orders", bearer.Handle)
	orders.Get("", s.listOrders)
	orders.Get("/:id", s.getOrder)
	orders.Post("", s.createOrder)
	orders.Put("/:id/pay", s.payOrder)
	orders.Put("/:id/cancel", s.cancelOrder)

	admin := api.Group("/admin", bearer.Handle, auth.RequireAdmin())
	admin.Get("/dashboard", s.dashboard)
	admin.Get("/users", s.listUsers)
	admin.Get("/users/:id", s.getUser)
	admin.Put("/users/:id", s.updateUser)
	admin.Get("/orders", s.listAllOrders)
	admin.Put("/orders/:id/verify", s.verifyOrder)
	admin.Get("/sales-report", s.salesReport)

	return app
}

// intercept counts calls per route and serves injected failures.
func (s *Server) intercept(c *fiber.Ctx) error {
	route := c.Method() + " " + strings.TrimPrefix(c.Path(), "/api")

	s.mu.Lock()
	s.calls[route]++
	hook := s.hook
	var status int
	if f, ok := s.failures[route]; ok && f.remaining > 0 {
		f.remaining--
		status = f.status
	}
	s.mu.Unlock()

	if hook != nil {
		hook(route)
	}
	if status != 0 {
		return c.Status(status).JSON(fiber.Map{"success": false, "message": http.StatusText(status), "data": nil})
	}
	return c.Next()
}

func (s *Server) lookupUser(id int64) (*domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	return acc.user.Clone(), true
}

func (s *Server) isRevoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[token]
}

func ok(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "message": message, "data": data})
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	message := err.Error()
	var domainErr *apperrors.DomainError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &domainErr):
		status = domainErr.HTTPStatus
		message = domainErr.Message
	case errors.As(err, &fiberErr):
		status = fiberErr.Code
		message = fiberErr.Message
	}
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message, "data": nil})
}

func paramID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(fmt.Sprintf("invalid id %q", c.Params("id")), nil)
	}
	return int64(id), nil
}

func principal(c *fiber.Ctx) *domain.User {
	p, found := auth.PrincipalFromContext(c)
	if !found {
		return nil
	}
	return p.User
}
