package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/concerttix/console/internal/domain"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

// Dashboard returns the admin overview.
func (c *Client) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	var out domain.DashboardStats
	if err := c.getJSON(ctx, "/admin/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers pages through all accounts.
func (c *Client) ListUsers(ctx context.Context, f domain.UserFilter) (*domain.Page[domain.User], error) {
	q := pageQuery(f.Page, f.PerPage)
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Role != "" {
		q.Set("role", string(f.Role))
	}
	var out domain.Page[domain.User]
	if err := c.getJSON(ctx, "/admin/users", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUser fetches one account.
func (c *Client) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var out domain.User
	if err := c.getJSON(ctx, fmt.Sprintf("/admin/users/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser edits an account.
func (c *Client) UpdateUser(ctx context.Context, id int64, upd domain.UserUpdate) (*domain.User, error) {
	if upd.Role != nil && *upd.Role != domain.RoleUser && *upd.Role != domain.RoleAdmin {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": *upd.Role})
	}
	var out domain.User
	if err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/admin/users/%d", id), upd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAllOrders pages through every customer's orders.
func (c *Client) ListAllOrders(ctx context.Context, f domain.OrderFilter) (*domain.Page[domain.Order], error) {
	var out domain.Page[domain.Order]
	if err := c.getJSON(ctx, "/admin/orders", orderQuery(f), &out); err != nil {
		return nil, err
	}
	if err := validateOrders(out.Items); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPayment records the admin decision on a submitted payment.
func (c *Client) VerifyPayment(ctx context.Context, id int64, v domain.Verification) (*domain.Order, error) {
	if v.Status != domain.OrderStatusPaid && v.Status != domain.OrderStatusCancelled {
		return nil, apperrors.NewValidationError("verification must approve or reject",
			map[string]any{"status": v.Status})
	}
	return c.orderCall(ctx, http.MethodPut, fmt.Sprintf("/admin/orders/%d/verify", id), v)
}

// SalesReport returns the server's sales aggregation unchanged.
func (c *Client) SalesReport(ctx context.Context, f domain.SalesReportFilter) (map[string]any, error) {
	q := pageQuery(0, 0)
	if f.StartDate != "" {
		q.Set("start_date", f.StartDate)
	}
	if f.EndDate != "" {
		q.Set("end_date", f.EndDate)
	}
	if f.ConcertID > 0 {
		q.Set("concert_id", strconv.FormatInt(f.ConcertID, 10))
	}
	out := map[string]any{}
	if err := c.getJSON(ctx, "/admin/sales-report", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
