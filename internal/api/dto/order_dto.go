package dto

import "github.com/concerttix/console/internal/domain"

// CreateOrderRequest books tickets.
type CreateOrderRequest struct {
	Items []domain.OrderLine `json:"items"`
}

// PayOrderRequest submits payment for a pending order.
type PayOrderRequest struct {
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
}

// VerifyOrderRequest is the admin decision on a submitted payment.
type VerifyOrderRequest struct {
	Action string `json:"action"`
	Note   string `json:"admin_notes"`
}

// OrderListQuery captures listing filters.
type OrderListQuery struct {
	Status  domain.OrderStatus `query:"status"`
	Page    int                `query:"page"`
	PerPage int                `query:"per_page"`
}

// Filter converts the query into a client filter.
func (q OrderListQuery) Filter() domain.OrderFilter {
	return domain.OrderFilter{Status: q.Status, Page: q.Page, PerPage: q.PerPage}
}
