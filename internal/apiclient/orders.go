package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/concerttix/console/internal/domain"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

// ListOrders returns the current user's orders.
func (c *Client) ListOrders(ctx context.Context, f domain.OrderFilter) (*domain.Page[domain.Order], error) {
	var out domain.Page[domain.Order]
	if err := c.getJSON(ctx, "/orders", orderQuery(f), &out); err != nil {
		return nil, err
	}
	if err := validateOrders(out.Items); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrder fetches one order of the current user.
func (c *Client) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return c.orderCall(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), nil)
}

// CreateOrder books tickets. The order starts pending.
func (c *Client) CreateOrder(ctx context.Context, in domain.NewOrder) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, apperrors.NewValidationError("order needs at least one item", nil)
	}
	for _, line := range in.Items {
		if line.Quantity <= 0 {
			return nil, apperrors.NewValidationError("quantity must be positive",
				map[string]any{"ticket_type_id": line.TicketTypeID})
		}
	}
	return c.orderCall(ctx, http.MethodPost, "/orders", in)
}

// PayOrder submits payment for a pending order.
func (c *Client) PayOrder(ctx context.Context, id int64, method domain.PaymentMethod) (*domain.Order, error) {
	if !method.Valid() {
		return nil, apperrors.NewValidationError("unknown payment method", map[string]any{"payment_method": method})
	}
	body := map[string]string{"payment_method": string(method)}
	return c.orderCall(ctx, http.MethodPut, fmt.Sprintf("/orders/%d/pay", id), body)
}

// CancelOrder cancels a pending order.
func (c *Client) CancelOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return c.orderCall(ctx, http.MethodPut, fmt.Sprintf("/orders/%d/cancel", id), nil)
}

func (c *Client) orderCall(ctx context.Context, method, path string, body any) (*domain.Order, error) {
	var out domain.Order
	var err error
	if method == http.MethodGet {
		err = c.getJSON(ctx, path, nil, &out)
	} else {
		err = c.sendJSON(ctx, method, path, body, &out)
	}
	if err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, apperrors.NewInvalidResponse("invalid order", err)
	}
	return &out, nil
}

func validateOrders(orders []domain.Order) error {
	for i := range orders {
		if err := orders[i].Validate(); err != nil {
			return apperrors.NewInvalidResponse("invalid order in listing", err)
		}
	}
	return nil
}

func orderQuery(f domain.OrderFilter) url.Values {
	q := pageQuery(f.Page, f.PerPage)
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	return q
}

func pageQuery(page, perPage int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	return q
}
