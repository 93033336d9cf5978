package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/concerttix/console/internal/service"
)

// NotificationsHandler exposes the toast feed.
type NotificationsHandler struct {
	feed *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(feed *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{feed: feed}
}

// Drain handles GET /notifications. Returned toasts are removed.
func (h *NotificationsHandler) Drain(c *fiber.Ctx) error {
	return data(c, http.StatusOK, h.feed.Drain())
}
