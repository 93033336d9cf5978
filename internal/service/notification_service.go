package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/concerttix/console/internal/config"
	"github.com/concerttix/console/internal/events"
	"github.com/concerttix/console/internal/observability"
	"github.com/concerttix/console/internal/orderflow"
)

// Notification levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
)

// Notification is one toast shown to the operator.
type Notification struct {
	ID      string    `json:"id"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Event   string    `json:"event"`
	At      time.Time `json:"at"`
}

// NotificationService turns domain events into operator toasts. The feed
// keeps the most recent FeedSize entries.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig

	mu    sync.Mutex
	feed  []Notification
	start int
	size  int
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if cfg.FeedSize <= 0 {
		cfg.FeedSize = 50
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     observability.OrNop(logger).Named("notifications"),
		cfg:        cfg,
		feed:       make([]Notification, cfg.FeedSize),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSessionAuthenticated, n.handleAuthenticated)
	n.dispatcher.Subscribe(events.EventSessionCleared, n.handleCleared)
	n.dispatcher.Subscribe(events.EventSessionExpired, n.handleExpired)
	n.dispatcher.Subscribe(events.EventSessionProfileUpdated, n.handleProfileUpdated)
	n.dispatcher.Subscribe(events.EventOrderCreated, n.handleOrderCreated)
	n.dispatcher.Subscribe(events.EventOrderStatusChanged, n.handleOrderStatusChanged)
}

func (n *NotificationService) handleAuthenticated(_ context.Context, event events.Event) error {
	p, _ := event.Payload.(events.SessionPayload)
	msg := "Signed in"
	if p.Name != "" {
		msg = "Welcome back, " + p.Name
	}
	if p.Reason == "register" {
		msg = "Account created"
	}
	n.push(event, LevelSuccess, msg)
	return nil
}

func (n *NotificationService) handleCleared(_ context.Context, event events.Event) error {
	p, _ := event.Payload.(events.SessionPayload)
	if p.Reason != "logout" {
		return nil
	}
	n.push(event, LevelInfo, "Signed out")
	return nil
}

func (n *NotificationService) handleExpired(_ context.Context, event events.Event) error {
	n.push(event, LevelWarning, "Your session has expired, please sign in again")
	return nil
}

func (n *NotificationService) handleProfileUpdated(_ context.Context, event events.Event) error {
	n.push(event, LevelSuccess, "Profile updated")
	return nil
}

func (n *NotificationService) handleOrderCreated(_ context.Context, event events.Event) error {
	p, _ := event.Payload.(events.OrderCreatedPayload)
	n.push(event, LevelSuccess, fmt.Sprintf("Order #%d placed, total %.2f", event.OrderID, p.TotalAmount))
	return nil
}

func (n *NotificationService) handleOrderStatusChanged(_ context.Context, event events.Event) error {
	p, _ := event.Payload.(events.OrderStatusChangedPayload)
	n.push(event, LevelInfo, fmt.Sprintf("Order #%d is now %s", event.OrderID, orderflow.Label(p.NewStatus)))
	return nil
}

func (n *NotificationService) push(event events.Event, level, message string) {
	n.logger.Debug("notification",
		zap.String("event_type", string(event.Type)), zap.String("level", level), zap.String("message", message))

	note := Notification{
		ID:      event.ID,
		Level:   level,
		Message: message,
		Event:   string(event.Type),
		At:      event.Timestamp,
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	idx := (n.start + n.size) % len(n.feed)
	n.feed[idx] = note
	if n.size < len(n.feed) {
		n.size++
	} else {
		n.start = (n.start + 1) % len(n.feed)
	}
}

// Recent returns the buffered notifications, oldest first.
func (n *NotificationService) Recent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.copyLocked()
}

// Drain returns the buffered notifications and empties the feed.
func (n *NotificationService) Drain() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.copyLocked()
	n.start, n.size = 0, 0
	return out
}

func (n *NotificationService) copyLocked() []Notification {
	out := make([]Notification, 0, n.size)
	for i := 0; i < n.size; i++ {
		out = append(out, n.feed[(n.start+i)%len(n.feed)])
	}
	return out
}
