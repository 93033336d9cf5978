package orderflow

import (
	"errors"
	"testing"
	"time"

	"github.com/concerttix/console/internal/domain"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

var actors = []Actor{ActorCustomer, ActorAdmin}

func TestAllowed_Table(t *testing.T) {
	tests := []struct {
		status domain.OrderStatus
		actor  Actor
		want   []Action
	}{
		{domain.OrderStatusPending, ActorCustomer, []Action{ActionSubmitPayment, ActionCancel}},
		{domain.OrderStatusPending, ActorAdmin, []Action{}},
		{domain.OrderStatusPaymentSubmitted, ActorCustomer, []Action{ActionCancel}},
		{domain.OrderStatusPaymentSubmitted, ActorAdmin, []Action{ActionApprove, ActionReject}},
		{domain.OrderStatusPaid, ActorCustomer, []Action{ActionDownloadTicket}},
		{domain.OrderStatusPaid, ActorAdmin, []Action{}},
		{domain.OrderStatusCancelled, ActorCustomer, []Action{}},
		{domain.OrderStatusCancelled, ActorAdmin, []Action{}},
	}

	for _, tt := range tests {
		got := Allowed(tt.status, tt.actor)
		if len(got) != len(tt.want) {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tt.status, tt.actor, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Allowed(%s, %s) = %v, want %v", tt.status, tt.actor, got, tt.want)
				break
			}
		}
	}
}

func TestApply_TerminalStatesRejectEveryTransition(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, status := range []domain.OrderStatus{domain.OrderStatusPaid, domain.OrderStatusCancelled} {
		for _, actor := range actors {
			for _, action := range Actions {
				if action == ActionDownloadTicket {
					continue
				}
				order := &domain.Order{ID: 1, Status: status}
				err := Apply(order, actor, action, now, "")
				if !errors.Is(err, apperrors.ErrInvalidStateTransition) {
					t.Errorf("Apply(%s, %s, %s) err = %v, want InvalidStateTransition", status, actor, action, err)
				}
				if order.Status != status {
					t.Errorf("status changed from %s to %s", status, order.Status)
				}
			}
		}
	}
}

func TestApply_SubmitPayment(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	order := &domain.Order{ID: 1, Status: domain.OrderStatusPending}

	if err := Apply(order, ActorCustomer, ActionSubmitPayment, now, ""); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if order.Status != domain.OrderStatusPaymentSubmitted {
		t.Fatalf("status = %s", order.Status)
	}
	if order.PaymentSubmittedAt == nil || !order.PaymentSubmittedAt.Equal(now) {
		t.Fatalf("PaymentSubmittedAt = %v", order.PaymentSubmittedAt)
	}
	if !Can(order.Status, ActorCustomer, ActionCancel) {
		t.Error("cancel must remain legal after payment submission")
	}
}

func TestApply_ApproveThenSubmitRejected(t *testing.T) {
	submitted := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	verified := submitted.Add(time.Hour)
	order := &domain.Order{ID: 1, Status: domain.OrderStatusPaymentSubmitted, PaymentSubmittedAt: domain.NewTimestamp(submitted)}

	if err := Apply(order, ActorAdmin, ActionApprove, verified, "transfer received"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Fatalf("status = %s", order.Status)
	}
	if order.PaymentVerifiedAt == nil || !order.PaymentVerifiedAt.Equal(verified) {
		t.Fatalf("PaymentVerifiedAt = %v", order.PaymentVerifiedAt)
	}
	if !order.PaymentSubmittedAt.Equal(submitted) {
		t.Errorf("PaymentSubmittedAt overwritten: %v", order.PaymentSubmittedAt)
	}
	if order.AdminNotes == nil || *order.AdminNotes != "transfer received" {
		t.Errorf("AdminNotes = %v", order.AdminNotes)
	}

	err := Apply(order, ActorCustomer, ActionSubmitPayment, verified.Add(time.Minute), "")
	if !errors.Is(err, apperrors.ErrInvalidStateTransition) {
		t.Fatalf("submit after paid err = %v", err)
	}
}

func TestApply_AdminCannotVerifyPending(t *testing.T) {
	order := &domain.Order{ID: 1, Status: domain.OrderStatusPending}
	err := Apply(order, ActorAdmin, ActionApprove, time.Now(), "")
	if !errors.Is(err, apperrors.ErrInvalidStateTransition) {
		t.Fatalf("err = %v", err)
	}
}

func TestApply_RejectKeepsSubmittedAt(t *testing.T) {
	submitted := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	order := &domain.Order{ID: 1, Status: domain.OrderStatusPaymentSubmitted, PaymentSubmittedAt: domain.NewTimestamp(submitted)}

	if err := Apply(order, ActorAdmin, ActionReject, submitted.Add(time.Hour), "no transfer found"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("status = %s", order.Status)
	}
	if order.PaymentVerifiedAt != nil {
		t.Error("reject must not set PaymentVerifiedAt")
	}
	if !order.PaymentSubmittedAt.Equal(submitted) {
		t.Error("PaymentSubmittedAt must survive rejection")
	}
}

func TestDownloadTicket_DoesNotTransition(t *testing.T) {
	next, err := Next(domain.OrderStatusPaid, ActorCustomer, ActionDownloadTicket)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if next != domain.OrderStatusPaid {
		t.Errorf("next = %s", next)
	}
	if Can(domain.OrderStatusPending, ActorCustomer, ActionDownloadTicket) {
		t.Error("download must require paid status")
	}
}

func TestActorFor(t *testing.T) {
	if ActorFor(&domain.User{Role: domain.RoleAdmin}) != ActorAdmin {
		t.Error("admin role should map to admin actor")
	}
	if ActorFor(&domain.User{Role: domain.RoleUser}) != ActorCustomer {
		t.Error("user role should map to customer actor")
	}
}
