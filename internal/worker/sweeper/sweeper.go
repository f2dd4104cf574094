package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dispatch"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type fulfillmentService interface {
	StaleOrders(ctx context.Context, cutoff time.Time, limit int) ([]order.Order, error)
	PendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]order.Order, error)
	MarkDelayed(ctx context.Context, id int64, from status.Status) (bool, error)
}

type lease interface {
	TryAcquire(ctx context.Context) (bool, error)
}

// Config holds sweeper timing.
type Config struct {
	Interval            time.Duration
	Threshold           time.Duration
	BatchSize           int
	PendingRequeueAfter time.Duration
}

// Result counts what one sweep did.
type Result struct {
	Delayed   int
	Conflicts int
	Requeued  int
}

// Sweeper periodically marks PROCESSING and DISPATCHED orders that have not
// moved for longer than the threshold as DELAYED.
type Sweeper struct {
	svc        fulfillmentService
	dispatcher dispatch.Dispatcher
	lease      lease
	cfg        Config
	now        func() time.Time
	stopCh     chan struct{}
}

type option func(*Sweeper)

// WithLease makes only the lease holder sweep.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithLease(l lease) option {
	return func(s *Sweeper) {
		s.lease = l
	}
}

// WithDispatcher enables requeueing of PENDING orders that were never picked up.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDispatcher(d dispatch.Dispatcher) option {
	return func(s *Sweeper) {
		s.dispatcher = d
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// NewSweeper creates a new staleness sweeper.
func NewSweeper(svc fulfillmentService, cfg Config, opts ...option) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	s := &Sweeper{
		svc:    svc,
		cfg:    cfg,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start sweeps on every tick until ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.Info("Sweeper started", "interval", s.cfg.Interval, "threshold", s.cfg.Threshold)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sweeper shutting down")

			return
		case <-s.stopCh:
			slog.Info("Sweeper stopped")

			return
		case <-ticker.C:
			if s.lease != nil {
				held, err := s.lease.TryAcquire(ctx)
				if err != nil {
					slog.Error("Failed to acquire sweeper lease", "error", err)

					continue
				}
				if !held {
					continue
				}
			}

			if _, err := s.Sweep(ctx); err != nil {
				slog.Error("Sweep failed", "error", err)
			}
		}
	}
}

// Stop stops the sweeper.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

// Sweep runs one pass. An order that advanced between being selected and
// being updated is counted as a conflict and left alone.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	ctx, span := otel.Tracer("sweeper").Start(ctx, "Sweeper.Sweep")
	defer span.End()

	var res Result
	now := s.now()
	cutoff := now.Add(-s.cfg.Threshold)

	for {
		stale, err := s.svc.StaleOrders(ctx, cutoff, s.cfg.BatchSize)
		if err != nil {
			return res, err
		}

		progressed := false
		for _, o := range stale {
			applied, err := s.svc.MarkDelayed(ctx, o.ID, o.Status)
			if err != nil {
				return res, err
			}
			if applied {
				res.Delayed++
				progressed = true
			} else {
				res.Conflicts++
			}
		}

		if len(stale) < s.cfg.BatchSize || !progressed {
			break
		}
	}

	if s.dispatcher != nil && s.cfg.PendingRequeueAfter > 0 {
		pending, err := s.svc.PendingOrders(ctx, now.Add(-s.cfg.PendingRequeueAfter), s.cfg.BatchSize)
		if err != nil {
			return res, err
		}
		for _, o := range pending {
			if err := s.dispatcher.Dispatch(ctx, o.ID, 0); err != nil {
				return res, err
			}
			res.Requeued++
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.delayed", res.Delayed),
		attribute.Int("sweep.conflicts", res.Conflicts),
		attribute.Int("sweep.requeued", res.Requeued),
	)

	if res.Delayed > 0 || res.Conflicts > 0 || res.Requeued > 0 {
		slog.Info("Sweep finished",
			"delayed", res.Delayed,
			"conflicts", res.Conflicts,
			"requeued", res.Requeued,
		)
	}

	return res, nil
}
