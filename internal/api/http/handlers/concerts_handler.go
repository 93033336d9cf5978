package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/concerttix/console/internal/api/dto"
	"github.com/concerttix/console/internal/apiclient"
	"github.com/concerttix/console/internal/domain"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

// ConcertsHandler serves the public catalogue and its admin upkeep.
type ConcertsHandler struct {
	client *apiclient.Client
}

// NewConcertsHandler constructs handler.
func NewConcertsHandler(client *apiclient.Client) *ConcertsHandler {
	return &ConcertsHandler{client: client}
}

// List handles GET /concerts.
func (h *ConcertsHandler) List(c *fiber.Ctx) error {
	var q dto.ConcertListQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	page, err := h.client.ListConcerts(c.UserContext(), q.Filter())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, page)
}

// Get handles GET /concerts/:id.
func (h *ConcertsHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	concert, err := h.client.GetConcert(c.UserContext(), id)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, concert)
}

// TicketTypes handles GET /concerts/:id/tickets.
func (h *ConcertsHandler) TicketTypes(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	types, err := h.client.ConcertTicketTypes(c.UserContext(), id)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, types)
}

// Create handles POST /admin/concerts.
func (h *ConcertsHandler) Create(c *fiber.Ctx) error {
	var in domain.ConcertInput
	if err := c.BodyParser(&in); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if in.Title == "" || in.Venue == "" || in.Date == "" {
		return apperrors.NewValidationError("title, venue, date required", nil)
	}
	concert, err := h.client.CreateConcert(c.UserContext(), in)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, concert)
}

// Update handles PUT /admin/concerts/:id.
func (h *ConcertsHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in domain.ConcertInput
	if err := c.BodyParser(&in); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	concert, err := h.client.UpdateConcert(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, concert)
}

// Delete handles DELETE /admin/concerts/:id.
func (h *ConcertsHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.client.DeleteConcert(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// CreateTicketType handles POST /admin/concerts/:id/tickets.
func (h *ConcertsHandler) CreateTicketType(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in domain.TicketTypeInput
	if err := c.BodyParser(&in); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if in.Name == "" || in.Price <= 0 || in.QuantityTotal <= 0 {
		return apperrors.NewValidationError("name, positive price and quantity required", nil)
	}
	tt, err := h.client.CreateTicketType(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, tt)
}

// TicketType handles GET /admin/tickets/:id.
func (h *ConcertsHandler) TicketType(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	tt, err := h.client.GetTicketType(c.UserContext(), id)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, tt)
}

// UpdateTicketType handles PUT /admin/tickets/:id. Omitted fields keep
// their current values.
func (h *ConcertsHandler) UpdateTicketType(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in domain.TicketTypeInput
	if err := c.BodyParser(&in); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if in.Price < 0 || in.QuantityTotal < 0 {
		return apperrors.NewValidationError("price and quantity cannot be negative", nil)
	}
	tt, err := h.client.UpdateTicketType(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, tt)
}

// DeleteTicketType handles DELETE /admin/tickets/:id.
func (h *ConcertsHandler) DeleteTicketType(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.client.DeleteTicketType(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
