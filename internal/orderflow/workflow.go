// Package orderflow defines which order actions each actor may take in
// each payment status, and applies them to a local copy of an order.
package orderflow

import (
	"time"

	"github.com/concerttix/console/internal/domain"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

// Actor is the party attempting an action.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorAdmin    Actor = "admin"
)

// Action is something an actor can do to an order.
type Action string

const (
	ActionSubmitPayment  Action = "submit_payment"
	ActionCancel         Action = "cancel"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionDownloadTicket Action = "download_ticket"
)

// Actions lists every action in a stable order.
var Actions = []Action{
	ActionSubmitPayment,
	ActionCancel,
	ActionApprove,
	ActionReject,
	ActionDownloadTicket,
}

type rule struct {
	actor Actor
	next  domain.OrderStatus // empty: action does not change status
}

var rules = map[domain.OrderStatus]map[Action]rule{
	domain.OrderStatusPending: {
		ActionSubmitPayment: {actor: ActorCustomer, next: domain.OrderStatusPaymentSubmitted},
		ActionCancel:        {actor: ActorCustomer, next: domain.OrderStatusCancelled},
	},
	domain.OrderStatusPaymentSubmitted: {
		ActionCancel:  {actor: ActorCustomer, next: domain.OrderStatusCancelled},
		ActionApprove: {actor: ActorAdmin, next: domain.OrderStatusPaid},
		ActionReject:  {actor: ActorAdmin, next: domain.OrderStatusCancelled},
	},
	domain.OrderStatusPaid: {
		ActionDownloadTicket: {actor: ActorCustomer},
	},
	domain.OrderStatusCancelled: {},
}

// ActorFor maps a user role to the workflow actor.
func ActorFor(u *domain.User) Actor {
	if u.IsAdmin() {
		return ActorAdmin
	}
	return ActorCustomer
}

// Can reports whether actor may perform action on an order in status.
func Can(status domain.OrderStatus, actor Actor, action Action) bool {
	r, ok := rules[status][action]
	return ok && r.actor == actor
}

// Allowed lists the actions actor may take in status.
func Allowed(status domain.OrderStatus, actor Actor) []Action {
	allowed := []Action{}
	for _, action := range Actions {
		if Can(status, actor, action) {
			allowed = append(allowed, action)
		}
	}
	return allowed
}

// Next returns the status an action leads to. Non-transitioning actions
// return the current status.
func Next(status domain.OrderStatus, actor Actor, action Action) (domain.OrderStatus, error) {
	if !Can(status, actor, action) {
		return "", transitionError(status, actor, action)
	}
	if next := rules[status][action].next; next != "" {
		return next, nil
	}
	return status, nil
}

// Check returns InvalidStateTransition when the action is illegal.
func Check(order *domain.Order, actor Actor, action Action) error {
	if order == nil {
		return apperrors.NewValidationError("order required", nil)
	}
	if !Can(order.Status, actor, action) {
		return transitionError(order.Status, actor, action)
	}
	return nil
}

// Apply performs action on a local copy of order. Entering
// payment_submitted stamps payment_submitted_at and entering paid stamps
// payment_verified_at; neither is ever overwritten once set.
func Apply(order *domain.Order, actor Actor, action Action, now time.Time, note string) error {
	if err := Check(order, actor, action); err != nil {
		return err
	}
	next, err := Next(order.Status, actor, action)
	if err != nil {
		return err
	}

	switch next {
	case domain.OrderStatusPaymentSubmitted:
		if order.PaymentSubmittedAt == nil {
			order.PaymentSubmittedAt = domain.NewTimestamp(now)
		}
	case domain.OrderStatusPaid:
		if order.PaymentVerifiedAt == nil {
			order.PaymentVerifiedAt = domain.NewTimestamp(now)
		}
	}
	if note != "" && actor == ActorAdmin {
		n := note
		order.AdminNotes = &n
	}
	order.Status = next
	return nil
}

// Label is the customer-facing status text.
func Label(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusPending:
		return "Pending Payment"
	case domain.OrderStatusPaymentSubmitted:
		return "Awaiting Verification"
	case domain.OrderStatusPaid:
		return "Confirmed"
	case domain.OrderStatusCancelled:
		return "Cancelled"
	}
	return string(status)
}

// VerificationFor maps an admin action to the verify payload status.
func VerificationFor(action Action) (domain.OrderStatus, bool) {
	switch action {
	case ActionApprove:
		return domain.OrderStatusPaid, true
	case ActionReject:
		return domain.OrderStatusCancelled, true
	}
	return "", false
}

func transitionError(status domain.OrderStatus, actor Actor, action Action) error {
	return apperrors.NewInvalidStateTransition(
		"cannot "+humanAction(action)+" an order that is "+Label(status),
		map[string]any{
			"status": status,
			"actor":  actor,
			"action": action,
		},
	)
}

func humanAction(action Action) string {
	switch action {
	case ActionSubmitPayment:
		return "submit payment for"
	case ActionDownloadTicket:
		return "download the ticket of"
	}
	return string(action)
}
