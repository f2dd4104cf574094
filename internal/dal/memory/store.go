// Package memory is an in-process storage driver implementing the same
// repositories as the Postgres driver. Writes take per-row locks that are held
// until the unit of work commits or rolls back; readers only see committed
// state, plus the staged writes of their own unit of work.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/history"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
)

var errTxClosed = errors.New("transaction already closed")

type rowKind uint8

const (
	productRow rowKind = iota
	orderRow
)

type lockKey struct {
	kind rowKind
	id   int64
}

// rowLock is a one-slot semaphore so waiting can be cancelled by a context.
// refs counts the holder and waiters; the entry leaves the lock table when it
// drops to zero.
type rowLock struct {
	ch   chan struct{}
	refs int
}

// Store holds committed state.
type Store struct {
	mu sync.Mutex

	products map[int64]product.Product
	orders   map[int64]order.Order
	items    map[int64][]orderitem.OrderItem
	history  map[int64][]history.Entry
	outbox   map[int64]outbox.OutboxMessage
	locks    map[lockKey]*rowLock

	lastProductID int64
	lastOrderID   int64
	lastItemID    int64
	lastHistoryID int64
	lastOutboxID  int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		products: make(map[int64]product.Product),
		orders:   make(map[int64]order.Order),
		items:    make(map[int64][]orderitem.OrderItem),
		history:  make(map[int64][]history.Entry),
		outbox:   make(map[int64]outbox.OutboxMessage),
		locks:    make(map[lockKey]*rowLock),
	}
}

// txState is the private view of one unit of work.
type txState struct {
	held     map[lockKey]*rowLock
	products map[int64]product.Product
	orders   map[int64]order.Order
	deleted  map[int64]struct{}
	items    map[int64][]orderitem.OrderItem
	history  map[int64][]history.Entry
	apply    []func(s *Store)
	closed   bool

	droppedProducts map[int64]struct{}
}

func newTxState() *txState {
	return &txState{
		held:     make(map[lockKey]*rowLock),
		products: make(map[int64]product.Product),
		orders:   make(map[int64]order.Order),
		deleted:  make(map[int64]struct{}),
		items:    make(map[int64][]orderitem.OrderItem),
		history:  make(map[int64][]history.Entry),

		droppedProducts: make(map[int64]struct{}),
	}
}

// stage records a mutation to apply at commit.
func (t *txState) stage(fn func(s *Store)) {
	t.apply = append(t.apply, fn)
}

// run executes fn inside tx, or inside a fresh auto-committed transaction when
// tx is nil.
func (s *Store) run(ctx context.Context, tx *txState, fn func(tx *txState) error) error {
	if tx != nil {
		if tx.closed {
			return errTxClosed
		}

		return fn(tx)
	}

	tx = newTxState()
	if err := fn(tx); err != nil {
		s.rollback(tx)

		return err
	}
	s.commit(tx)

	return nil
}

// lock acquires the row lock for key unless tx already holds it.
func (s *Store) lock(ctx context.Context, tx *txState, key lockKey) error {
	if _, ok := tx.held[key]; ok {
		return nil
	}

	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &rowLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		tx.held[key] = l

		return nil
	case <-ctx.Done():
		s.unref(key, l)

		return fmt.Errorf("failed to lock row %d: %w", key.id, ctx.Err())
	}
}

func (s *Store) unref(key lockKey, l *rowLock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

func (s *Store) commit(tx *txState) {
	s.mu.Lock()
	for _, fn := range tx.apply {
		fn(s)
	}
	s.mu.Unlock()

	s.release(tx)
}

func (s *Store) rollback(tx *txState) {
	s.release(tx)
}

func (s *Store) release(tx *txState) {
	for key, l := range tx.held {
		<-l.ch
		s.unref(key, l)
		delete(tx.held, key)
	}
	tx.apply = nil
	tx.closed = true
}

func (s *Store) nextID(counter *int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	*counter++

	return *counter
}
