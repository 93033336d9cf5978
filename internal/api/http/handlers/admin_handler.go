package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/concerttix/console/internal/api/dto"
	"github.com/concerttix/console/internal/apiclient"
	"github.com/concerttix/console/internal/domain"
	"github.com/concerttix/console/internal/guard"
	"github.com/concerttix/console/internal/orderflow"
	"github.com/concerttix/console/internal/service"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

// AdminHandler serves the admin dashboard, payment verification and user
// management pages.
type AdminHandler struct {
	client *apiclient.Client
	orders *service.OrderService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(client *apiclient.Client, orders *service.OrderService) *AdminHandler {
	return &AdminHandler{client: client, orders: orders}
}

// Dashboard handles GET /admin/dashboard.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	stats, err := h.client.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, stats)
}

// Orders handles GET /admin/orders.
func (h *AdminHandler) Orders(c *fiber.Ctx) error {
	var q dto.OrderListQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	page, err := h.client.ListAllOrders(c.UserContext(), q.Filter())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, views(page, guard.UserFrom(c)))
}

// Verify handles PUT /admin/orders/:id/verify.
func (h *AdminHandler) Verify(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.VerifyOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	action := orderflow.Action(req.Action)
	if _, ok := orderflow.VerificationFor(action); !ok {
		return apperrors.NewValidationError("action must be approve or reject", map[string]any{"action": req.Action})
	}

	user := guard.UserFrom(c)
	order, err := h.orders.Perform(c.UserContext(), user, id, action, service.OrderActionInput{Note: req.Note})
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, service.View(order, user))
}

// Users handles GET /admin/users.
func (h *AdminHandler) Users(c *fiber.Ctx) error {
	var q dto.UserListQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	page, err := h.client.ListUsers(c.UserContext(), q.Filter())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, page)
}

// User handles GET /admin/users/:id.
func (h *AdminHandler) User(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.client.GetUser(c.UserContext(), id)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, user)
}

// UpdateUser handles PUT /admin/users/:id.
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var upd domain.UserUpdate
	if err := c.BodyParser(&upd); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if upd.Role != nil && *upd.Role != domain.RoleUser && *upd.Role != domain.RoleAdmin {
		return apperrors.NewValidationError("unknown role", map[string]any{"role": *upd.Role})
	}
	user, err := h.client.UpdateUser(c.UserContext(), id, upd)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, user)
}

// SalesReport handles GET /admin/reports/sales.
func (h *AdminHandler) SalesReport(c *fiber.Ctx) error {
	var q dto.SalesReportQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	report, err := h.client.SalesReport(c.UserContext(), domain.SalesReportFilter{
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		ConcertID: q.ConcertID,
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, report)
}
