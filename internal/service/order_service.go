package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/concerttix/console/internal/domain"
	"github.com/concerttix/console/internal/events"
	"github.com/concerttix/console/internal/observability"
	"github.com/concerttix/console/internal/orderflow"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

// adminLookupPageSize bounds each page fetched while an admin looks up a
// single order; the API has no admin endpoint for one order.
const adminLookupPageSize = 100

// OrderAPI is the slice of the REST client used for order actions.
type OrderAPI interface {
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	CreateOrder(ctx context.Context, in domain.NewOrder) (*domain.Order, error)
	PayOrder(ctx context.Context, id int64, method domain.PaymentMethod) (*domain.Order, error)
	CancelOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListAllOrders(ctx context.Context, f domain.OrderFilter) (*domain.Page[domain.Order], error)
	VerifyPayment(ctx context.Context, id int64, v domain.Verification) (*domain.Order, error)
	DownloadTicket(ctx context.Context, orderID int64) (*domain.Ticket, error)
	PreviewTicket(ctx context.Context, orderID int64) (*domain.Ticket, error)
}

// OrderService runs order actions with the server as the only authority
// on status. The local workflow only rejects actions that cannot succeed.
type OrderService struct {
	api        OrderAPI
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// OrderActionInput carries the optional arguments of an action.
type OrderActionInput struct {
	PaymentMethod domain.PaymentMethod
	Note          string
}

// OrderView is an order with what the viewer may do next.
type OrderView struct {
	Order       *domain.Order      `json:"order"`
	StatusLabel string             `json:"status_label"`
	Actions     []orderflow.Action `json:"actions"`
}

// NewOrderService constructs the service.
func NewOrderService(api OrderAPI, dispatcher events.Dispatcher, logger *zap.Logger) *OrderService {
	if dispatcher == nil {
		dispatcher = events.Nop{}
	}
	return &OrderService{
		api:        api,
		dispatcher: dispatcher,
		logger:     observability.OrNop(logger).Named("orders"),
	}
}

// View decorates an order for user.
func View(order *domain.Order, user *domain.User) OrderView {
	return OrderView{
		Order:       order,
		StatusLabel: orderflow.Label(order.Status),
		Actions:     orderflow.Allowed(order.Status, orderflow.ActorFor(user)),
	}
}

// Get fetches the server's copy of an order for user.
func (s *OrderService) Get(ctx context.Context, user *domain.User, id int64) (*domain.Order, error) {
	if user == nil {
		return nil, apperrors.NewUnauthorized("sign in to view orders")
	}
	if orderflow.ActorFor(user) == orderflow.ActorAdmin {
		return s.adminOrder(ctx, id)
	}
	return s.api.GetOrder(ctx, id)
}

// Create places a new order and announces it.
func (s *OrderService) Create(ctx context.Context, user *domain.User, in domain.NewOrder) (*domain.Order, error) {
	if user == nil {
		return nil, apperrors.NewUnauthorized("sign in to book tickets")
	}
	if user.IsAdmin() {
		return nil, apperrors.NewForbidden("admins cannot place orders")
	}
	order, err := s.api.CreateOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	ev := events.New(events.EventOrderCreated, user, events.OrderCreatedPayload{
		TotalAmount: order.TotalAmount,
		Items:       len(order.Items),
	})
	ev.OrderID = order.ID
	s.publish(ctx, ev)
	return order, nil
}

// Perform runs action on order id as user and returns the server's copy
// of the order afterwards.
func (s *OrderService) Perform(ctx context.Context, user *domain.User, id int64, action orderflow.Action, in OrderActionInput) (*domain.Order, error) {
	current, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	actor := orderflow.ActorFor(user)
	if err := orderflow.Check(current, actor, action); err != nil {
		return nil, err
	}

	switch action {
	case orderflow.ActionSubmitPayment:
		_, err = s.api.PayOrder(ctx, id, in.PaymentMethod)
	case orderflow.ActionCancel:
		_, err = s.api.CancelOrder(ctx, id)
	case orderflow.ActionApprove, orderflow.ActionReject:
		status, _ := orderflow.VerificationFor(action)
		_, err = s.api.VerifyPayment(ctx, id, domain.Verification{Status: status, AdminNotes: in.Note})
	default:
		return nil, apperrors.NewValidationError("action does not change an order", map[string]any{"action": action})
	}
	if err != nil {
		return nil, s.arbitrate(ctx, user, id, action, err)
	}

	fresh, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if fresh.Status != current.Status {
		ev := events.New(events.EventOrderStatusChanged, user, events.OrderStatusChangedPayload{
			OldStatus: current.Status,
			NewStatus: fresh.Status,
			Action:    string(action),
			Note:      in.Note,
		})
		ev.OrderID = id
		s.publish(ctx, ev)
	} else {
		s.logger.Warn("order status unchanged after action",
			zap.Int64("order_id", id), zap.String("action", string(action)), zap.String("status", string(fresh.Status)))
	}
	return fresh, nil
}

// arbitrate explains a rejected mutation. When the server refused because
// the order moved on since it was read, the caller gets the transition
// error for the status the order has now, wrapping the server's answer.
func (s *OrderService) arbitrate(ctx context.Context, user *domain.User, id int64, action orderflow.Action, cause error) error {
	if !apperrors.HasCode(cause, apperrors.CodeValidation) && !apperrors.HasCode(cause, apperrors.CodeConflict) {
		return cause
	}
	fresh, err := s.Get(ctx, user, id)
	if err != nil {
		s.logger.Warn("re-read after rejected action failed", zap.Int64("order_id", id), zap.Error(err))
		return cause
	}
	checkErr := orderflow.Check(fresh, orderflow.ActorFor(user), action)
	var transition *apperrors.DomainError
	if checkErr == nil || !errors.As(checkErr, &transition) {
		return cause
	}
	s.logger.Info("order moved before action reached the server",
		zap.Int64("order_id", id), zap.String("action", string(action)), zap.String("status", string(fresh.Status)))
	wrapped := *transition
	wrapped.Err = cause
	return &wrapped
}

// Ticket downloads the ticket PDF of a paid order.
func (s *OrderService) Ticket(ctx context.Context, user *domain.User, id int64) (*domain.Ticket, error) {
	if err := s.ticketReady(ctx, user, id); err != nil {
		return nil, err
	}
	return s.api.DownloadTicket(ctx, id)
}

// PreviewTicket fetches the preview rendition under the same rule as Ticket.
func (s *OrderService) PreviewTicket(ctx context.Context, user *domain.User, id int64) (*domain.Ticket, error) {
	if err := s.ticketReady(ctx, user, id); err != nil {
		return nil, err
	}
	return s.api.PreviewTicket(ctx, id)
}

func (s *OrderService) ticketReady(ctx context.Context, user *domain.User, id int64) error {
	order, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}
	return orderflow.Check(order, orderflow.ActorFor(user), orderflow.ActionDownloadTicket)
}

func (s *OrderService) adminOrder(ctx context.Context, id int64) (*domain.Order, error) {
	for page := 1; ; page++ {
		res, err := s.api.ListAllOrders(ctx, domain.OrderFilter{Page: page, PerPage: adminLookupPageSize})
		if err != nil {
			return nil, err
		}
		for i := range res.Items {
			if res.Items[i].ID == id {
				return &res.Items[i], nil
			}
		}
		if !res.Pagination.HasNext || len(res.Items) == 0 || page >= res.Pagination.Pages {
			return nil, apperrors.NewNotFound("Order", map[string]any{"order_id": id})
		}
	}
}

func (s *OrderService) publish(ctx context.Context, ev events.Event) {
	if err := s.dispatcher.Publish(ctx, ev); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(ev.Type)), zap.Error(err))
	}
}
