package fulfillmentsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ihistoryrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/memory"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/history"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// FulfillmentService applies state machine transitions to orders.
type FulfillmentService struct {
	newUOW      func() unitOfWork
	eventsQueue string
	now         func() time.Time
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	OrderRepository() iorderrepo.IOrderRepository
	HistoryRepository() ihistoryrepo.IHistoryRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

type option func(*FulfillmentService)

// MustNewFulfillmentService creates a new FulfillmentService.
func MustNewFulfillmentService(opts ...option) *FulfillmentService {
	s := &FulfillmentService{
		eventsQueue: "order-events",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("fulfillmentsvc: no storage configured")
	}

	return s
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *FulfillmentService) {
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithMemoryStore(store *memory.Store) option {
	return func(s *FulfillmentService) {
		s.newUOW = func() unitOfWork {
			return store.NewUnitOfWork()
		}
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithEventsQueue(queue string) option {
	return func(s *FulfillmentService) {
		if queue != "" {
			s.eventsQueue = queue
		}
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *FulfillmentService) {
		s.now = now
	}
}

// GetOrder returns the order without its items.
func (s *FulfillmentService) GetOrder(ctx context.Context, id int64) (order.Order, error) {
	orders, err := s.newUOW().OrderRepository().Query(ctx, &order.QueryOrdersModel{Ids: []int64{id}})
	if err != nil {
		return order.Order{}, err
	}
	if len(orders) == 0 {
		return order.Order{}, fmt.Errorf("%w: %d", order.ErrNotFound, id)
	}

	return orders[0], nil
}

// Transition moves the order from one status to another and appends the
// matching history entry in the same unit of work. It fails with
// order.ErrStatusConflict when the order is no longer in from.
func (s *FulfillmentService) Transition(
	ctx context.Context,
	id int64,
	from, to status.Status,
) (history.Entry, error) {
	ctx, span := otel.Tracer("fulfillmentsvc").Start(ctx, "FulfillmentService.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.from", from.String()),
		attribute.String("order.to", to.String()),
	)

	if err := status.ValidateTransition(from, to); err != nil {
		return history.Entry{}, err
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return history.Entry{}, err
	}
	defer func() {
		if err := work.Rollback(); err != nil {
			slog.Error("Failed to rollback transition", "order_id", id, "error", err)
		}
	}()

	applied, err := work.OrderRepository().UpdateStatus(ctx, id, from, to, s.now())
	if err != nil {
		return history.Entry{}, err
	}

	entry, err := work.HistoryRepository().Append(ctx, history.Entry{
		OrderID:        id,
		PreviousStatus: from,
		NewStatus:      to,
		CreatedAt:      applied,
	})
	if err != nil {
		return history.Entry{}, err
	}

	msg, err := outbox.NewOrderEvent(s.eventsQueue, outbox.EventOrderStatusChanged, id, outbox.OrderStatusChanged{
		OrderID:        id,
		Seq:            entry.Seq,
		PreviousStatus: from,
		NewStatus:      to,
		At:             applied,
	}, applied)
	if err != nil {
		return history.Entry{}, err
	}
	if err := work.OutboxRepository().Insert(ctx, msg); err != nil {
		return history.Entry{}, err
	}

	if err := work.Commit(); err != nil {
		return history.Entry{}, err
	}

	slog.Info("Order status changed",
		"order_id", id,
		"from", from,
		"to", to,
		"seq", entry.Seq,
	)

	return entry, nil
}

// Advance moves the order one step along PENDING -> PROCESSING -> DISPATCHED
// -> DELIVERED if it is still in from. It reports false without error when
// the order moved on or no longer exists, so repeated calls are harmless.
func (s *FulfillmentService) Advance(ctx context.Context, id int64, from status.Status) (bool, error) {
	next, ok := from.Next()
	if !ok {
		return false, fmt.Errorf("%w: %s has no automatic successor", status.ErrIllegalTransition, from)
	}

	return s.guarded(ctx, id, from, next)
}

// MarkDelayed moves a PROCESSING or DISPATCHED order to DELAYED if it is still
// in from.
func (s *FulfillmentService) MarkDelayed(ctx context.Context, id int64, from status.Status) (bool, error) {
	return s.guarded(ctx, id, from, status.Delayed)
}

func (s *FulfillmentService) guarded(ctx context.Context, id int64, from, to status.Status) (bool, error) {
	_, err := s.Transition(ctx, id, from, to)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, order.ErrStatusConflict), errors.Is(err, order.ErrNotFound):
		slog.Info("Transition skipped", "order_id", id, "from", from, "to", to, "reason", err)

		return false, nil
	default:
		return false, err
	}
}

// StaleOrders returns PROCESSING and DISPATCHED orders whose last transition
// happened before cutoff, oldest first.
func (s *FulfillmentService) StaleOrders(ctx context.Context, cutoff time.Time, limit int) ([]order.Order, error) {
	return s.newUOW().OrderRepository().Query(ctx, &order.QueryOrdersModel{
		Statuses:         []status.Status{status.Processing, status.Dispatched},
		TransitionBefore: cutoff,
		OrderBy:          order.OldestTransitionFirst,
		Limit:            limit,
	})
}

// PendingOrders returns PENDING orders created before cutoff, oldest first.
func (s *FulfillmentService) PendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]order.Order, error) {
	return s.newUOW().OrderRepository().Query(ctx, &order.QueryOrdersModel{
		Statuses:      []status.Status{status.Pending},
		CreatedBefore: cutoff,
		OrderBy:       order.OldestTransitionFirst,
		Limit:         limit,
	})
}
