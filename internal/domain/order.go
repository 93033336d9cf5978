package domain

import (
	"fmt"
)

// OrderStatus enumerates the payment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"
	OrderStatusPaymentSubmitted OrderStatus = "payment_submitted"
	OrderStatusPaid             OrderStatus = "paid"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

// OrderStatuses lists every valid status.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaymentSubmitted,
	OrderStatusPaid,
	OrderStatusCancelled,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

// PaymentMethod as accepted by the pay endpoint.
type PaymentMethod string

const (
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentEWallet      PaymentMethod = "e_wallet"
	PaymentCash         PaymentMethod = "cash"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentBankTransfer, PaymentCreditCard, PaymentEWallet, PaymentCash:
		return true
	}
	return false
}

// Order is a purchase of one or more ticket types.
type Order struct {
	ID                 int64          `json:"order_id"`
	UserID             int64          `json:"user_id"`
	Status             OrderStatus    `json:"status"`
	TotalAmount        float64        `json:"total_amount"`
	PaymentMethod      *PaymentMethod `json:"payment_method"`
	CreatedAt          *Timestamp     `json:"created_at"`
	UpdatedAt          *Timestamp     `json:"updated_at,omitempty"`
	PaymentSubmittedAt *Timestamp     `json:"payment_submitted_at"`
	PaymentVerifiedAt  *Timestamp     `json:"payment_verified_at"`
	AdminNotes         *string        `json:"admin_notes"`
	Items              []OrderItem    `json:"order_items"`
	User               *User          `json:"user,omitempty"`
}

// OrderItem is one ticket-type line of an order.
type OrderItem struct {
	ID           int64       `json:"order_item_id"`
	TicketTypeID int64       `json:"ticket_type_id"`
	Quantity     int         `json:"quantity"`
	PricePerUnit float64     `json:"price_per_unit"`
	Subtotal     float64     `json:"subtotal"`
	TicketType   *TicketType `json:"ticket_type,omitempty"`
}

// Validate checks the order's status and amount invariants to the cent.
func (o *Order) Validate() error {
	if o == nil {
		return fmt.Errorf("order missing")
	}
	if o.ID <= 0 {
		return fmt.Errorf("order_id missing")
	}
	if !o.Status.Valid() {
		return fmt.Errorf("order %d: unknown status %q", o.ID, o.Status)
	}
	var total int64
	for i, item := range o.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("order %d item %d: quantity %d", o.ID, i, item.Quantity)
		}
		want := int64(item.Quantity) * Cents(item.PricePerUnit)
		if Cents(item.Subtotal) != want {
			return fmt.Errorf("order %d item %d: subtotal %.2f != %d x %.2f", o.ID, i, item.Subtotal, item.Quantity, item.PricePerUnit)
		}
		total += Cents(item.Subtotal)
	}
	if Cents(o.TotalAmount) != total {
		return fmt.Errorf("order %d: total %.2f != sum of subtotals %.2f", o.ID, o.TotalAmount, float64(total)/100)
	}
	return nil
}

// OrderLine requests quantity tickets of one type when booking.
type OrderLine struct {
	TicketTypeID int64 `json:"ticket_type_id"`
	Quantity     int   `json:"quantity"`
}

// NewOrder is the booking payload.
type NewOrder struct {
	Items         []OrderLine   `json:"items"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status  OrderStatus
	Page    int
	PerPage int
}

// Verification is the admin decision on a submitted payment.
type Verification struct {
	Status     OrderStatus `json:"status"`
	AdminNotes string      `json:"admin_notes"`
}
