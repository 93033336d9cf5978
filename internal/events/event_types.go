package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/concerttix/console/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionAuthenticated  EventType = "session.authenticated"
	EventSessionCleared        EventType = "session.cleared"
	EventSessionExpired        EventType = "session.expired"
	EventSessionProfileUpdated EventType = "session.profile_updated"
	EventOrderCreated          EventType = "order.created"
	EventOrderStatusChanged    EventType = "order.status_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID int64       `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by the session and order services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	OrderID   int64       `json:"order_id,omitempty"`
	Actor     *Actor      `json:"actor,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh ID and the current time.
func New(eventType EventType, user *domain.User, payload interface{}) Event {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if user != nil {
		ev.Actor = &Actor{UserID: user.ID, Role: user.Role}
	}
	return ev
}

// SessionPayload describes a session transition.
type SessionPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
	Name   string `json:"name,omitempty"`
}

// OrderCreatedPayload payload.
type OrderCreatedPayload struct {
	TotalAmount float64 `json:"total_amount"`
	Items       int     `json:"items"`
}

// OrderStatusChangedPayload payload.
type OrderStatusChangedPayload struct {
	OldStatus domain.OrderStatus `json:"old_status"`
	NewStatus domain.OrderStatus `json:"new_status"`
	Action    string             `json:"action"`
	Note      string             `json:"note,omitempty"`
}
