// Package guard decides whether the signed-in operator may open a console
// view, and enforces that decision as fiber middleware.
package guard

import (
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/concerttix/console/internal/domain"
	"github.com/concerttix/console/internal/session"
)

// Policy is the access rule of a view.
type Policy int

const (
	Public Policy = iota
	Protected
	AdminOnly
	// CustomerOnly admits signed-in users that are not admins.
	CustomerOnly
)

func (p Policy) String() string {
	switch p {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case AdminOnly:
		return "admin_only"
	case CustomerOnly:
		return "customer_only"
	}
	return "unknown"
}

// Decision is the outcome of a guard check.
type Decision int

const (
	Allow Decision = iota
	// Wait means the session has not settled yet.
	Wait
	RedirectLogin
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Wait:
		return "wait"
	case RedirectLogin:
		return "redirect_login"
	case Deny:
		return "deny"
	}
	return "unknown"
}

// Decide applies policy to a session snapshot. It never touches the
// network or storage.
func Decide(s session.Snapshot, p Policy) Decision {
	if p == Public {
		return Allow
	}
	if s.Loading || !s.State.Settled() {
		return Wait
	}
	if !s.IsAuthenticated() {
		return RedirectLogin
	}
	switch p {
	case AdminOnly:
		if !s.IsAdmin() {
			return Deny
		}
	case CustomerOnly:
		if s.IsAdmin() {
			return Deny
		}
	}
	return Allow
}

// LoginPath builds the login redirect that remembers the intended path.
func LoginPath(from string) string {
	if from == "" || from == "/login" {
		return "/login"
	}
	return "/login?from=" + url.QueryEscape(from)
}

// SessionSource exposes the current session.
type SessionSource interface {
	Snapshot() session.Snapshot
}

const userKey = "guard.user"

// RetryAfterSeconds is advertised while the session is still loading.
const RetryAfterSeconds = 1

var adminLinks = []fiber.Map{
	{"label": "Admin Dashboard", "href": "/admin/dashboard"},
	{"label": "Payment Verification", "href": "/admin/orders"},
	{"label": "Manage Users", "href": "/admin/users"},
	{"label": "Manage Concerts", "href": "/admin/concerts"},
}

// Require returns middleware enforcing policy. Allowed requests carry the
// snapshot's user, readable with UserFrom.
func Require(sessions SessionSource, policy Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := sessions.Snapshot()
		switch Decide(snap, policy) {
		case Allow:
			c.Locals(userKey, snap.User)
			return c.Next()
		case Wait:
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(RetryAfterSeconds))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": fiber.Map{
				"code":    "SESSION_LOADING",
				"message": "Checking authentication...",
			}})
		case RedirectLogin:
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    "UNAUTHENTICATED",
					"message": "Please sign in to continue",
				},
				"redirect": LoginPath(c.OriginalURL()),
			})
		default:
			body := fiber.Map{"error": fiber.Map{
				"code":    "FORBIDDEN",
				"message": "You need admin privileges to access this page.",
			}}
			if policy == CustomerOnly {
				body["error"] = fiber.Map{
					"code":    "FORBIDDEN",
					"message": "This page is not available for admin accounts.",
				}
				body["links"] = adminLinks
			}
			return c.Status(fiber.StatusForbidden).JSON(body)
		}
	}
}

// UserFrom returns the user stored by Require, or nil on public routes.
func UserFrom(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals(userKey).(*domain.User)
	return u
}
