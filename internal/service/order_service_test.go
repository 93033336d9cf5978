package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/concerttix/console/internal/apiclient"
	"github.com/concerttix/console/internal/apitest"
	"github.com/concerttix/console/internal/domain"
	"github.com/concerttix/console/internal/events"
	"github.com/concerttix/console/internal/orderflow"
	"github.com/concerttix/console/internal/service"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

type staticToken string

func (s staticToken) CurrentToken(context.Context) string { return string(s) }

type captured struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captured) handle(_ context.Context, ev events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captured) list() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.events...)
}

type orderFixture struct {
	srv    *apitest.Server
	user   *domain.User
	svc    *service.OrderService
	events *captured
}

func newOrderFixture(t *testing.T, email string) *orderFixture {
	t.Helper()
	srv := apitest.NewServer(t)
	client := apiclient.New(apiclient.Options{
		BaseURL:      srv.BaseURL,
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	})
	client.SetTokenSource(staticToken(srv.IssueToken(t, email, time.Hour)))

	log := &captured{}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventOrderCreated, log.handle)
	dispatcher.Subscribe(events.EventOrderStatusChanged, log.handle)

	return &orderFixture{
		srv:    srv,
		user:   srv.User(email),
		svc:    service.NewOrderService(client, dispatcher, nil),
		events: log,
	}
}

func TestOrderService_SubmitPayment(t *testing.T) {
	f := newOrderFixture(t, apitest.CustomerEmail)
	seeded := f.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPending)

	order, err := f.svc.Perform(context.Background(), f.user, seeded.ID, orderflow.ActionSubmitPayment,
		service.OrderActionInput{PaymentMethod: domain.PaymentCreditCard})
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if order.Status != domain.OrderStatusPaymentSubmitted || order.PaymentSubmittedAt == nil {
		t.Fatalf("order = %+v", order)
	}
	if !orderflow.Can(order.Status, orderflow.ActorCustomer, orderflow.ActionCancel) {
		t.Error("cancel should stay legal while awaiting verification")
	}

	got := f.events.list()
	if len(got) != 1 || got[0].Type != events.EventOrderStatusChanged || got[0].OrderID != seeded.ID {
		t.Fatalf("events = %+v", got)
	}
	p := got[0].Payload.(events.OrderStatusChangedPayload)
	if p.OldStatus != domain.OrderStatusPending || p.NewStatus != domain.OrderStatusPaymentSubmitted {
		t.Errorf("payload = %+v", p)
	}
}

func TestOrderService_TerminalOrdersRejectEveryAction(t *testing.T) {
	for _, status := range []domain.OrderStatus{domain.OrderStatusPaid, domain.OrderStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			f := newOrderFixture(t, apitest.CustomerEmail)
			seeded := f.srv.SeedOrder(apitest.CustomerEmail, status)

			for _, action := range []orderflow.Action{orderflow.ActionSubmitPayment, orderflow.ActionCancel} {
				_, err := f.svc.Perform(context.Background(), f.user, seeded.ID, action,
					service.OrderActionInput{PaymentMethod: domain.PaymentCash})
				if !errors.Is(err, apperrors.ErrInvalidStateTransition) {
					t.Errorf("%s: err = %v, want invalid transition", action, err)
				}
			}
			for _, route := range []string{"PUT /orders/%d/pay", "PUT /orders/%d/cancel"} {
				if n := f.srv.Calls(fmt.Sprintf(route, seeded.ID)); n != 0 {
					t.Errorf("%s reached the server %d times", route, n)
				}
			}
			if len(f.events.list()) != 0 {
				t.Error("rejected action published an event")
			}
		})
	}
}

func TestOrderService_ServerRejectionWins(t *testing.T) {
	f := newOrderFixture(t, apitest.CustomerEmail)
	seeded := f.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPending)
	route := fmt.Sprintf("PUT /orders/%d/cancel", seeded.ID)
	f.srv.FailNext(route, http.StatusConflict, 1)

	_, err := f.svc.Perform(context.Background(), f.user, seeded.ID, orderflow.ActionCancel, service.OrderActionInput{})
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if n := f.srv.Calls(route); n != 1 {
		t.Errorf("cancel calls = %d, want 1", n)
	}
	if got := f.srv.Order(seeded.ID).Status; got != domain.OrderStatusPending {
		t.Errorf("server status = %s", got)
	}
	if len(f.events.list()) != 0 {
		t.Error("failed action published an event")
	}
}

func TestOrderService_AdminApproves(t *testing.T) {
	f := newOrderFixture(t, apitest.AdminEmail)
	seeded := f.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPaymentSubmitted)

	order, err := f.svc.Perform(context.Background(), f.user, seeded.ID, orderflow.ActionApprove,
		service.OrderActionInput{Note: "transfer received"})
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if order.Status != domain.OrderStatusPaid || order.PaymentVerifiedAt == nil {
		t.Fatalf("order = %+v", order)
	}
	if order.AdminNotes == nil || *order.AdminNotes != "transfer received" {
		t.Errorf("admin notes = %v", order.AdminNotes)
	}
	if orderflow.Can(order.Status, orderflow.ActorCustomer, orderflow.ActionSubmitPayment) {
		t.Error("submit_payment should be illegal after approval")
	}
}

func TestOrderService_AdminCannotActForCustomer(t *testing.T) {
	f := newOrderFixture(t, apitest.AdminEmail)
	seeded := f.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPending)

	_, err := f.svc.Perform(context.Background(), f.user, seeded.ID, orderflow.ActionSubmitPayment,
		service.OrderActionInput{PaymentMethod: domain.PaymentCash})
	if !errors.Is(err, apperrors.ErrInvalidStateTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
}

func TestOrderService_AdminLookupMissingOrder(t *testing.T) {
	f := newOrderFixture(t, apitest.AdminEmail)
	_, err := f.svc.Get(context.Background(), f.user, 9999)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestOrderService_Ticket(t *testing.T) {
	f := newOrderFixture(t, apitest.CustomerEmail)
	ctx := context.Background()

	paid := f.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPaid)
	ticket, err := f.svc.Ticket(ctx, f.user, paid.ID)
	if err != nil {
		t.Fatalf("Ticket: %v", err)
	}
	if !bytes.HasPrefix(ticket.Content, []byte("%PDF-")) {
		t.Errorf("content does not look like a PDF")
	}

	pending := f.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPending)
	if _, err := f.svc.Ticket(ctx, f.user, pending.ID); !errors.Is(err, apperrors.ErrInvalidStateTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
}

func TestOrderService_CreatePublishes(t *testing.T) {
	f := newOrderFixture(t, apitest.CustomerEmail)

	order, err := f.svc.Create(context.Background(), f.user, domain.NewOrder{
		Items: []domain.OrderLine{{TicketTypeID: 2, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("status = %s", order.Status)
	}
	got := f.events.list()
	if len(got) != 1 || got[0].Type != events.EventOrderCreated || got[0].OrderID != order.ID {
		t.Fatalf("events = %+v", got)
	}
}

func TestOrderService_AdminCannotCreate(t *testing.T) {
	f := newOrderFixture(t, apitest.AdminEmail)
	_, err := f.svc.Create(context.Background(), f.user, domain.NewOrder{
		Items: []domain.OrderLine{{TicketTypeID: 2, Quantity: 1}},
	})
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestView(t *testing.T) {
	customer := &domain.User{ID: 2, Email: "c@example.com", Role: domain.RoleUser}
	view := service.View(&domain.Order{ID: 1, Status: domain.OrderStatusPending}, customer)
	if view.StatusLabel != "Pending Payment" {
		t.Errorf("label = %q", view.StatusLabel)
	}
	if len(view.Actions) != 2 {
		t.Errorf("actions = %v", view.Actions)
	}
}

func TestOrderService_OrderMovedBeforePayReachedServer(t *testing.T) {
	f := newOrderFixture(t, apitest.CustomerEmail)
	seeded := f.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPending)

	other := apiclient.New(apiclient.Options{BaseURL: f.srv.BaseURL, Timeout: 5 * time.Second})
	other.SetTokenSource(staticToken(f.srv.IssueToken(t, apitest.CustomerEmail, time.Hour)))

	payRoute := fmt.Sprintf("PUT /orders/%d/pay", seeded.ID)
	var once sync.Once
	cancelled := make(chan error, 1)
	f.srv.OnRequest(func(route string) {
		if route != payRoute {
			return
		}
		once.Do(func() {
			_, err := other.CancelOrder(context.Background(), seeded.ID)
			cancelled <- err
		})
	})

	_, err := f.svc.Perform(context.Background(), f.user, seeded.ID, orderflow.ActionSubmitPayment,
		service.OrderActionInput{PaymentMethod: domain.PaymentBankTransfer})
	if cancelErr := <-cancelled; cancelErr != nil {
		t.Fatalf("concurrent cancel: %v", cancelErr)
	}
	if got := f.srv.Order(seeded.ID).Status; got != domain.OrderStatusCancelled {
		t.Fatalf("server status = %s", got)
	}
	if !errors.Is(err, apperrors.ErrInvalidStateTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("err = %v, want the server's rejection wrapped", err)
	}
	if n := f.srv.Calls(payRoute); n != 1 {
		t.Errorf("pay calls = %d, want 1", n)
	}
	if len(f.events.list()) != 0 {
		t.Error("rejected action published an event")
	}
}

// endlessPages keeps claiming another page without ever holding the order.
type endlessPages struct {
	service.OrderAPI
	calls int
}

func (e *endlessPages) ListAllOrders(_ context.Context, f domain.OrderFilter) (*domain.Page[domain.Order], error) {
	e.calls++
	return &domain.Page[domain.Order]{
		Items:      []domain.Order{{ID: int64(f.Page)*1000 + 1}},
		Pagination: domain.Pagination{Page: f.Page, Pages: 3, HasNext: true},
	}, nil
}

func TestOrderService_AdminLookupStopsAtLastPage(t *testing.T) {
	api := &endlessPages{}
	svc := service.NewOrderService(api, nil, nil)
	admin := &domain.User{ID: 1, Role: domain.RoleAdmin}

	_, err := svc.Get(context.Background(), admin, 42)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if api.calls != 3 {
		t.Errorf("pages fetched = %d, want 3", api.calls)
	}
}

func TestOrderService_PreviewTicket(t *testing.T) {
	f := newOrderFixture(t, apitest.CustomerEmail)
	ctx := context.Background()

	paid := f.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPaid)
	ticket, err := f.svc.PreviewTicket(ctx, f.user, paid.ID)
	if err != nil {
		t.Fatalf("PreviewTicket: %v", err)
	}
	if !bytes.HasPrefix(ticket.Content, []byte("%PDF-")) {
		t.Errorf("content does not look like a PDF")
	}

	submitted := f.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPaymentSubmitted)
	if _, err := f.svc.PreviewTicket(ctx, f.user, submitted.ID); !errors.Is(err, apperrors.ErrInvalidStateTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
	if n := f.srv.Calls(fmt.Sprintf("GET /tickets/preview/%d", submitted.ID)); n != 0 {
		t.Errorf("preview reached the server %d times", n)
	}
}
