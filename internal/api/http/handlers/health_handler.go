package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/concerttix/console/internal/guard"
)

// Pinger checks that the remote API answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	sessions    guard.SessionSource
	api         Pinger
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, sessions guard.SessionSource, api Pinger) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, sessions: sessions, api: api}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports readiness: the session has settled and the API answers.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	snap := h.sessions.Snapshot()
	if snap.Loading || !snap.State.Settled() {
		depStatus["session"] = snap.State.String()
		ready = false
	} else {
		depStatus["session"] = "ok"
	}

	if err := h.api.Ping(ctx); err != nil {
		depStatus["api"] = err.Error()
		ready = false
	} else {
		depStatus["api"] = "ok"
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
