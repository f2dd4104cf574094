package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/history"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, s *Store, stock int64) product.Product {
	t.Helper()

	p, err := s.NewUnitOfWork().ProductRepository().Insert(context.Background(), product.Product{
		Name:  "widget",
		Price: decimal.RequireFromString("9.99"),
		Stock: stock,
	})
	require.NoError(t, err)

	return p
}

func stockOf(t *testing.T, s *Store, id int64) int64 {
	t.Helper()

	products, err := s.NewUnitOfWork().ProductRepository().Query(
		context.Background(),
		&product.QueryProductsModel{Ids: []int64{id}},
	)
	require.NoError(t, err)
	require.Len(t, products, 1)

	return products[0].Stock
}

func TestReserveAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedProduct(t, s, 5)
	b := seedProduct(t, s, 1)

	work := s.NewUnitOfWork()
	require.NoError(t, work.Begin(ctx))

	_, err := work.ProductRepository().Reserve(ctx, product.NormalizeLines([]product.ReservationLine{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 3},
	}))
	var stockErr *product.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, b.ID, stockErr.ProductID)
	assert.Equal(t, int64(1), stockErr.Available)
	assert.ErrorIs(t, err, product.ErrInsufficientStock)

	require.NoError(t, work.Rollback())

	assert.Equal(t, int64(5), stockOf(t, s, a.ID))
	assert.Equal(t, int64(1), stockOf(t, s, b.ID))
}

func TestReserveUnknownProduct(t *testing.T) {
	s := NewStore()

	_, err := s.NewUnitOfWork().ProductRepository().Reserve(
		context.Background(),
		[]product.ReservationLine{{ProductID: 42, Quantity: 1}},
	)
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestUncommittedWritesAreInvisible(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := seedProduct(t, s, 3)

	work := s.NewUnitOfWork()
	require.NoError(t, work.Begin(ctx))
	_, err := work.ProductRepository().Reserve(ctx, []product.ReservationLine{{ProductID: p.ID, Quantity: 2}})
	require.NoError(t, err)

	assert.Equal(t, int64(3), stockOf(t, s, p.ID))

	own, err := work.ProductRepository().Query(ctx, &product.QueryProductsModel{Ids: []int64{p.ID}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), own[0].Stock)

	require.NoError(t, work.Commit())
	assert.Equal(t, int64(1), stockOf(t, s, p.ID))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := seedProduct(t, s, 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			work := s.NewUnitOfWork()
			if err := work.Begin(ctx); err != nil {
				return
			}
			defer func() { _ = work.Rollback() }()

			if _, err := work.ProductRepository().Reserve(ctx, []product.ReservationLine{{ProductID: p.ID, Quantity: 1}}); err != nil {
				return
			}
			if err := work.Commit(); err != nil {
				return
			}

			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, int64(0), stockOf(t, s, p.ID))
	assert.Zero(t, lockCount(s))
}

func lockCount(s *Store) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.locks)
}

func TestLockTableDrainsAfterUse(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	for i := range 200 {
		p := seedProduct(t, s, 1)
		o := insertOrder(t, s, status.Pending, time.Now())

		work := s.NewUnitOfWork()
		require.NoError(t, work.Begin(ctx))
		_, err := work.ProductRepository().Reserve(ctx, []product.ReservationLine{{ProductID: p.ID, Quantity: 1}})
		require.NoError(t, err)
		_, err = work.OrderRepository().UpdateStatus(ctx, o.ID, status.Pending, status.Processing, time.Now())
		require.NoError(t, err)

		if i%2 == 0 {
			require.NoError(t, work.Commit())
		} else {
			require.NoError(t, work.Rollback())
		}
	}

	assert.Zero(t, lockCount(s), "released rows must not stay in the lock table")
}

func insertOrder(t *testing.T, s *Store, st status.Status, at time.Time) order.Order {
	t.Helper()

	o, err := s.NewUnitOfWork().OrderRepository().Insert(context.Background(), order.Order{
		CustomerName:     "Ada",
		CustomerEmail:    "ada@example.com",
		Status:           st,
		TotalPrice:       decimal.NewFromInt(10),
		CreatedAt:        at,
		UpdatedAt:        at,
		LastTransitionAt: at,
	})
	require.NoError(t, err)

	return o
}

func TestUpdateStatusGuard(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	created := time.Now()
	o := insertOrder(t, s, status.Pending, created)
	repo := s.NewUnitOfWork().OrderRepository()

	applied, err := repo.UpdateStatus(ctx, o.ID, status.Pending, status.Processing, created)
	require.NoError(t, err)
	assert.True(t, applied.After(created), "transition time must move forward")

	_, err = repo.UpdateStatus(ctx, o.ID, status.Pending, status.Processing, time.Now())
	assert.ErrorIs(t, err, order.ErrStatusConflict)

	_, err = repo.UpdateStatus(ctx, 999, status.Pending, status.Processing, time.Now())
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestHistorySequenceAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	o := insertOrder(t, s, status.Pending, time.Now())

	work := s.NewUnitOfWork()
	for _, step := range [][2]status.Status{
		{status.Pending, status.Processing},
		{status.Processing, status.Dispatched},
	} {
		entry, err := work.HistoryRepository().Append(ctx, history.Entry{
			OrderID:        o.ID,
			PreviousStatus: step[0],
			NewStatus:      step[1],
			CreatedAt:      time.Now(),
		})
		require.NoError(t, err)
		assert.NotZero(t, entry.ID)
	}

	_, err := work.OrderItemRepository().BulkInsert(ctx, []orderitem.OrderItem{{OrderID: o.ID, ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	require.NoError(t, work.OrderRepository().Delete(ctx, o.ID))
	assert.ErrorIs(t, work.OrderRepository().Delete(ctx, o.ID), order.ErrNotFound)

	entries, err := work.HistoryRepository().Query(ctx, &history.QueryHistoryModel{OrderIds: []int64{o.ID}})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, int64(2), entries[1].Seq)

	items, err := work.OrderItemRepository().Query(ctx, &orderitem.QueryOrderItemsModel{OrderIds: []int64{o.ID}})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestQueryStaleOrders(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()

	old := insertOrder(t, s, status.Processing, now.Add(-2*time.Hour))
	insertOrder(t, s, status.Processing, now)
	insertOrder(t, s, status.Pending, now.Add(-2*time.Hour))

	orders, err := s.NewUnitOfWork().OrderRepository().Query(ctx, &order.QueryOrdersModel{
		Statuses:         []status.Status{status.Processing, status.Dispatched},
		TransitionBefore: now.Add(-time.Hour),
		OrderBy:          order.OldestTransitionFirst,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, old.ID, orders[0].ID)
}

func TestLockWaitHonoursContext(t *testing.T) {
	s := NewStore()
	p := seedProduct(t, s, 5)

	holder := s.NewUnitOfWork()
	require.NoError(t, holder.Begin(context.Background()))
	_, err := holder.ProductRepository().Reserve(context.Background(), []product.ReservationLine{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.NewUnitOfWork().ProductRepository().Reserve(ctx, []product.ReservationLine{{ProductID: p.ID, Quantity: 1}})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, holder.Commit())
	assert.Equal(t, int64(4), stockOf(t, s, p.ID))
	assert.Zero(t, lockCount(s), "a cancelled waiter must drop its reference")
}

func TestOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.OutboxRepository()

	msg, err := outbox.NewOrderEvent("order-events", outbox.EventOrderCreated, 7, map[string]int{"a": 1}, time.Now().Add(-time.Second))
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, msg))

	claimUntil := time.Now().Add(30 * time.Millisecond)
	pending, err := repo.ClaimPendingMessages(ctx, 10, claimUntil)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "7", pending[0].PartitionKey)
	assert.True(t, pending[0].NextRetryAt.Equal(claimUntil))

	again, err := repo.ClaimPendingMessages(ctx, 10, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, again, "claimed message must be hidden from other claimers")

	require.Eventually(t, func() bool {
		again, err = repo.ClaimPendingMessages(ctx, 10, time.Now())
		return err == nil && len(again) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, repo.UpdateRetry(ctx, pending[0].ID, 1, "boom", time.Now().Add(time.Hour)))
	pending, err = repo.ClaimPendingMessages(ctx, 10, time.Now())
	require.NoError(t, err)
	assert.Empty(t, pending)
}
