package uow

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
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

func newTestClient(t *testing.T) *postgres.Client {
	t.Helper()

	dsn := os.Getenv("FULFILLMENT_PG_DSN")
	if dsn == "" {
		t.Skip("FULFILLMENT_PG_DSN not set")
	}

	client, err := postgres.NewClient(context.Background(), dsn, "../../../migrations")
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(client.Close)

	return client
}

func seedProduct(t *testing.T, client *postgres.Client, stock int64) product.Product {
	t.Helper()

	now := time.Now()
	p, err := NewUnitOfWork(client).ProductRepository().Insert(context.Background(), product.Product{
		Name:      "widget",
		Category:  "test",
		Price:     decimal.RequireFromString("4.50"),
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)

	return p
}

func stockOf(t *testing.T, client *postgres.Client, id int64) int64 {
	t.Helper()

	products, err := NewUnitOfWork(client).ProductRepository().Query(
		context.Background(),
		&product.QueryProductsModel{Ids: []int64{id}},
	)
	require.NoError(t, err)
	require.Len(t, products, 1)

	return products[0].Stock
}

func TestReserveRollsBackWholeOrder(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	a := seedProduct(t, client, 3)
	b := seedProduct(t, client, 0)

	work := NewUnitOfWork(client)
	require.NoError(t, work.Begin(ctx))

	_, err := work.ProductRepository().Reserve(ctx, product.NormalizeLines([]product.ReservationLine{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 1},
	}))
	var stockErr *product.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, b.ID, stockErr.ProductID)
	require.NoError(t, work.Rollback())

	assert.Equal(t, int64(3), stockOf(t, client, a.ID))
	assert.Equal(t, int64(0), stockOf(t, client, b.ID))
}

func TestReserveUnknownProduct(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	work := NewUnitOfWork(client)
	require.NoError(t, work.Begin(ctx))
	defer func() { _ = work.Rollback() }()

	_, err := work.ProductRepository().Reserve(ctx, []product.ReservationLine{{ProductID: -1, Quantity: 1}})
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	p := seedProduct(t, client, 5)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			work := NewUnitOfWork(client)
			if err := work.Begin(ctx); err != nil {
				return
			}
			defer func() { _ = work.Rollback() }()

			_, err := work.ProductRepository().Reserve(ctx, []product.ReservationLine{{ProductID: p.ID, Quantity: 1}})
			if err != nil {
				return
			}
			if work.Commit() == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), succeeded.Load())
	assert.Equal(t, int64(0), stockOf(t, client, p.ID))
}

func TestGuardedStatusUpdateWithHistory(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	now := time.Now()
	o, err := NewUnitOfWork(client).OrderRepository().Insert(ctx, order.Order{
		CustomerName:     "Grace",
		CustomerEmail:    "grace@example.com",
		DeliveryAddress:  "Arlington",
		Status:           status.Pending,
		TotalPrice:       decimal.RequireFromString("9.00"),
		CreatedAt:        now,
		UpdatedAt:        now,
		LastTransitionAt: now,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = NewUnitOfWork(client).OrderRepository().Delete(context.Background(), o.ID)
	})

	work := NewUnitOfWork(client)
	require.NoError(t, work.Begin(ctx))

	// same timestamp as creation: the store must still move forward
	applied, err := work.OrderRepository().UpdateStatus(ctx, o.ID, status.Pending, status.Processing, now)
	require.NoError(t, err)
	assert.True(t, applied.After(now.Truncate(time.Microsecond)))

	first, err := work.HistoryRepository().Append(ctx, history.Entry{
		OrderID:        o.ID,
		PreviousStatus: status.Pending,
		NewStatus:      status.Processing,
		CreatedAt:      applied,
	})
	require.NoError(t, err)
	require.NoError(t, work.Commit())
	assert.Equal(t, int64(1), first.Seq)

	repo := NewUnitOfWork(client).OrderRepository()
	_, err = repo.UpdateStatus(ctx, o.ID, status.Pending, status.Processing, time.Now())
	assert.ErrorIs(t, err, order.ErrStatusConflict)

	_, err = repo.UpdateStatus(ctx, -1, status.Pending, status.Processing, time.Now())
	assert.ErrorIs(t, err, order.ErrNotFound)

	second, err := NewUnitOfWork(client).HistoryRepository().Append(ctx, history.Entry{
		OrderID:        o.ID,
		PreviousStatus: status.Processing,
		NewStatus:      status.Dispatched,
		CreatedAt:      time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Seq)

	entries, err := NewUnitOfWork(client).HistoryRepository().Query(ctx, &history.QueryHistoryModel{
		OrderIds: []int64{o.ID},
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, status.Processing, entries[0].NewStatus)
	assert.Equal(t, status.Dispatched, entries[1].NewStatus)
}

func TestRollbackAfterCommitIsNoop(t *testing.T) {
	client := newTestClient(t)

	work := NewUnitOfWork(client)
	require.NoError(t, work.Begin(context.Background()))
	require.NoError(t, work.Commit())
	assert.NoError(t, work.Rollback())
	assert.NoError(t, work.Commit())
}

func TestOutboxClaimHidesMessageFromOtherClaimers(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	repo := NewUnitOfWork(client).OutboxRepository()

	msg, err := outbox.NewOrderEvent("order-events", outbox.EventOrderCreated, -42, map[string]int{"a": 1}, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, msg))

	contains := func(msgs []outbox.OutboxMessage) (int64, bool) {
		for _, m := range msgs {
			if m.MessageID == msg.MessageID {
				return m.ID, true
			}
		}

		return 0, false
	}

	first, err := repo.ClaimPendingMessages(ctx, 1000, time.Now().Add(time.Hour))
	require.NoError(t, err)
	id, ok := contains(first)
	require.True(t, ok)
	t.Cleanup(func() { _ = NewUnitOfWork(client).OutboxRepository().Delete(context.Background(), id) })

	second, err := repo.ClaimPendingMessages(ctx, 1000, time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, ok = contains(second)
	assert.False(t, ok, "a claimed message must not be handed out twice")
}

func TestProductMaintenance(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	p := seedProduct(t, client, 2)
	repo := NewUnitOfWork(client).ProductRepository()

	restocked, err := repo.Restock(ctx, p.ID, 5, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(7), restocked.Stock)

	price := decimal.RequireFromString("5.75")
	expiry := time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)
	updated, err := repo.Update(ctx, p.ID, product.Update{Price: &price, ExpiryDate: &expiry}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "5.75", updated.Price.StringFixed(2))
	require.NotNil(t, updated.ExpiryDate)
	assert.Equal(t, "2027-06-01", updated.ExpiryDate.Format(time.DateOnly))
	assert.Equal(t, int64(7), updated.Stock)

	_, err = repo.Restock(ctx, -1, 1, time.Now())
	assert.ErrorIs(t, err, product.ErrNotFound)

	now := time.Now()
	o, err := NewUnitOfWork(client).OrderRepository().Insert(ctx, order.Order{
		CustomerName:     "Grace",
		CustomerEmail:    "grace@example.com",
		DeliveryAddress:  "Arlington",
		Status:           status.Pending,
		TotalPrice:       decimal.RequireFromString("5.75"),
		CreatedAt:        now,
		UpdatedAt:        now,
		LastTransitionAt: now,
	})
	require.NoError(t, err)
	_, err = NewUnitOfWork(client).OrderItemRepository().BulkInsert(ctx, []orderitem.OrderItem{{
		OrderID:     o.ID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    1,
		UnitPrice:   price,
		CreatedAt:   now,
	}})
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Delete(ctx, p.ID), product.ErrInUse)

	require.NoError(t, NewUnitOfWork(client).OrderRepository().Delete(ctx, o.ID))
	require.NoError(t, repo.Delete(ctx, p.ID))
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), product.ErrNotFound)
}
