package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/concerttix/console/internal/domain"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

// ListConcerts pages through concerts.
func (c *Client) ListConcerts(ctx context.Context, f domain.ConcertFilter) (*domain.Page[domain.Concert], error) {
	q := pageQuery(f.Page, f.PerPage)
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	var out domain.Page[domain.Concert]
	if err := c.getJSON(ctx, "/concerts", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConcert fetches one concert with its ticket types.
func (c *Client) GetConcert(ctx context.Context, id int64) (*domain.Concert, error) {
	var out domain.Concert
	if err := c.getJSON(ctx, fmt.Sprintf("/concerts/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConcertTicketTypes lists the ticket types of a concert.
func (c *Client) ConcertTicketTypes(ctx context.Context, concertID int64) ([]domain.TicketType, error) {
	var out []domain.TicketType
	if err := c.getJSON(ctx, fmt.Sprintf("/concerts/%d/tickets", concertID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConcert adds a concert.
func (c *Client) CreateConcert(ctx context.Context, in domain.ConcertInput) (*domain.Concert, error) {
	if in.Title == "" || in.Venue == "" || in.Date == "" {
		return nil, apperrors.NewValidationError("title, venue and date are required", nil)
	}
	var out domain.Concert
	if err := c.sendJSON(ctx, http.MethodPost, "/concerts", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConcert edits a concert.
func (c *Client) UpdateConcert(ctx context.Context, id int64, in domain.ConcertInput) (*domain.Concert, error) {
	var out domain.Concert
	if err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/concerts/%d", id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConcert removes a concert.
func (c *Client) DeleteConcert(ctx context.Context, id int64) error {
	return c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/concerts/%d", id), nil, nil)
}

// CreateTicketType adds a ticket type to a concert.
func (c *Client) CreateTicketType(ctx context.Context, concertID int64, in domain.TicketTypeInput) (*domain.TicketType, error) {
	if in.Name == "" || in.Price < 0 || in.QuantityTotal <= 0 {
		return nil, apperrors.NewValidationError("ticket type needs a name, a price and a positive quantity", nil)
	}
	var out domain.TicketType
	if err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/concerts/%d/tickets", concertID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
