package handlers

import (
	"fmt"
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

// OrdersHandler serves the customer's order pages.
type OrdersHandler struct {
	client *apiclient.Client
	orders *service.OrderService
}

// NewOrdersHandler constructs handler.
func NewOrdersHandler(client *apiclient.Client, orders *service.OrderService) *OrdersHandler {
	return &OrdersHandler{client: client, orders: orders}
}

// List handles GET /orders.
func (h *OrdersHandler) List(c *fiber.Ctx) error {
	var q dto.OrderListQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if q.Status != "" && !q.Status.Valid() {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": q.Status})
	}
	page, err := h.client.ListOrders(c.UserContext(), q.Filter())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, views(page, guard.UserFrom(c)))
}

// Get handles GET /orders/:id.
func (h *OrdersHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user := guard.UserFrom(c)
	order, err := h.orders.Get(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, service.View(order, user))
}

// Create handles POST /orders.
func (h *OrdersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user := guard.UserFrom(c)
	order, err := h.orders.Create(c.UserContext(), user, domain.NewOrder{Items: req.Items})
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, service.View(order, user))
}

// Pay handles PUT /orders/:id/pay.
func (h *OrdersHandler) Pay(c *fiber.Ctx) error {
	var req dto.PayOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if !req.PaymentMethod.Valid() {
		return apperrors.NewValidationError("valid payment method is required", map[string]any{"payment_method": req.PaymentMethod})
	}
	return h.perform(c, orderflow.ActionSubmitPayment, service.OrderActionInput{PaymentMethod: req.PaymentMethod})
}

// Cancel handles PUT /orders/:id/cancel.
func (h *OrdersHandler) Cancel(c *fiber.Ctx) error {
	return h.perform(c, orderflow.ActionCancel, service.OrderActionInput{})
}

// Ticket handles GET /orders/:id/ticket and streams the PDF.
func (h *OrdersHandler) Ticket(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.orders.Ticket(c.UserContext(), guard.UserFrom(c), id)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, ticket.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", ticket.Filename))
	return c.Status(http.StatusOK).Send(ticket.Content)
}

// Preview handles GET /orders/:id/ticket/preview and shows the PDF inline.
func (h *OrdersHandler) Preview(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.orders.PreviewTicket(c.UserContext(), guard.UserFrom(c), id)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, ticket.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", ticket.Filename))
	return c.Status(http.StatusOK).Send(ticket.Content)
}

func (h *OrdersHandler) perform(c *fiber.Ctx, action orderflow.Action, in service.OrderActionInput) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user := guard.UserFrom(c)
	order, err := h.orders.Perform(c.UserContext(), user, id, action, in)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, service.View(order, user))
}

func views(page *domain.Page[domain.Order], user *domain.User) fiber.Map {
	items := make([]service.OrderView, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, service.View(&page.Items[i], user))
	}
	return fiber.Map{"items": items, "pagination": page.Pagination}
}
