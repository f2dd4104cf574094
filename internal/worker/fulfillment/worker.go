package fulfillment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dispatch"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type fulfillmentService interface {
	GetOrder(ctx context.Context, id int64) (order.Order, error)
	Advance(ctx context.Context, id int64, from status.Status) (bool, error)
}

// Worker moves dispatched orders one workflow step at a time. Each step is
// taken no earlier than stepInterval after the previous transition.
type Worker struct {
	svc          fulfillmentService
	dispatcher   dispatch.Dispatcher
	stepInterval time.Duration
	now          func() time.Time
}

type option func(*Worker)

// WithClock overrides time.Now.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(w *Worker) {
		w.now = now
	}
}

// NewWorker creates a fulfillment worker.
func NewWorker(
	svc fulfillmentService,
	dispatcher dispatch.Dispatcher,
	stepInterval time.Duration,
	opts ...option,
) *Worker {
	w := &Worker{
		svc:          svc,
		dispatcher:   dispatcher,
		stepInterval: stepInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Handle is the dispatch.Handler for fulfillment. Duplicate or late
// deliveries are harmless: the step only applies if the order is still in the
// status it was read in.
func (w *Worker) Handle(ctx context.Context, orderID int64) error {
	ctx, span := otel.Tracer("fulfillment-worker").Start(ctx, "Worker.Handle")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID))

	o, err := w.svc.GetOrder(ctx, orderID)
	if errors.Is(err, order.ErrNotFound) {
		slog.Info("Dispatched order no longer exists", "order_id", orderID)

		return nil
	}
	if err != nil {
		return err
	}

	if _, ok := o.Status.Next(); !ok {
		return nil
	}

	if wait := o.LastTransitionAt.Add(w.stepInterval).Sub(w.now()); wait > 0 {
		return w.dispatcher.Dispatch(ctx, orderID, wait)
	}

	applied, err := w.svc.Advance(ctx, orderID, o.Status)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	next, _ := o.Status.Next()
	if _, more := next.Next(); !more {
		return nil
	}

	// a retried delivery finds the new status and reschedules through the wait branch
	return w.dispatcher.Dispatch(ctx, orderID, w.stepInterval)
}
