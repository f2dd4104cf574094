// Package local is an in-process dispatch queue backed by a timer heap.
// Scheduled work is lost on restart.
package local

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dispatch"
	"golang.org/x/sync/errgroup"
)

const idleWait = time.Minute

type entry struct {
	orderID int64
	due     time.Time
	index   int
}

type entryHeap []*entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return e
}

// Scheduler keeps at most one pending entry per order.
type Scheduler struct {
	mu      sync.Mutex
	queue   entryHeap
	byOrder map[int64]*entry
	wake    chan struct{}

	workers    int
	retryDelay time.Duration
}

type option func(*Scheduler)

// WithWorkers bounds the number of handlers running at once.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithWorkers(n int) option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRetryDelay sets how long to wait before retrying a failed handler.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRetryDelay(d time.Duration) option {
	return func(s *Scheduler) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

// NewScheduler creates an empty scheduler.
func NewScheduler(opts ...option) *Scheduler {
	s := &Scheduler{
		byOrder:    make(map[int64]*entry),
		wake:       make(chan struct{}, 1),
		workers:    16,
		retryDelay: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

var _ dispatch.Queue = (*Scheduler)(nil)

// Dispatch schedules orderID to run after delay.
func (s *Scheduler) Dispatch(_ context.Context, orderID int64, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	due := time.Now().Add(delay)

	s.mu.Lock()
	if e, ok := s.byOrder[orderID]; ok {
		if due.Before(e.due) {
			e.due = due
			heap.Fix(&s.queue, e.index)
		}
	} else {
		e := &entry{orderID: orderID, due: due}
		heap.Push(&s.queue, e)
		s.byOrder[orderID] = e
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return nil
}

// Len returns the number of scheduled orders.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

// Run hands due orders to handler until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, handler dispatch.Handler) error {
	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	slog.Info("Local dispatcher started", "workers", s.workers)

	for {
		due, wait := s.popDue(time.Now())
		for _, orderID := range due {
			g.Go(func() error {
				s.handle(ctx, handler, orderID)

				return nil
			})
		}

		timer.Reset(wait)

		select {
		case <-ctx.Done():
			_ = g.Wait()
			slog.Info("Local dispatcher stopped", "pending", s.Len())

			return nil
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) popDue(now time.Time) ([]int64, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []int64
	for len(s.queue) > 0 && !s.queue[0].due.After(now) {
		e := heap.Pop(&s.queue).(*entry)
		delete(s.byOrder, e.orderID)
		due = append(due, e.orderID)
	}

	if len(s.queue) == 0 {
		return due, idleWait
	}

	return due, s.queue[0].due.Sub(now)
}

func (s *Scheduler) handle(ctx context.Context, handler dispatch.Handler, orderID int64) {
	err := handler(ctx, orderID)
	if err == nil || ctx.Err() != nil {
		return
	}

	slog.Error("Order handler failed, will retry",
		"order_id", orderID,
		"retry_in", s.retryDelay,
		"error", err,
	)
	_ = s.Dispatch(ctx, orderID, s.retryDelay)
}
