package fulfillmentsvc

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/memory"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/history"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, opts ...option) (*FulfillmentService, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	svc := MustNewFulfillmentService(append([]option{WithMemoryStore(store)}, opts...)...)

	return svc, store
}

func seedOrder(t *testing.T, store *memory.Store, st status.Status, at time.Time) order.Order {
	t.Helper()

	o, err := store.NewUnitOfWork().OrderRepository().Insert(context.Background(), order.Order{
		CustomerName:     "Grace",
		CustomerEmail:    "grace@example.com",
		DeliveryAddress:  "1 Main St",
		Status:           st,
		TotalPrice:       decimal.NewFromInt(20),
		CreatedAt:        at,
		UpdatedAt:        at,
		LastTransitionAt: at,
	})
	require.NoError(t, err)

	return o
}

func historyOf(t *testing.T, store *memory.Store, id int64) []history.Entry {
	t.Helper()

	entries, err := store.NewUnitOfWork().HistoryRepository().Query(
		context.Background(),
		&history.QueryHistoryModel{OrderIds: []int64{id}},
	)
	require.NoError(t, err)

	return entries
}

func TestMustNewFulfillmentServicePanicsWithoutStorage(t *testing.T) {
	assert.Panics(t, func() { MustNewFulfillmentService() })
}

func TestAdvanceWalksTheWholeWorkflow(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	o := seedOrder(t, store, status.Pending, time.Now())

	current := status.Pending
	for {
		next, ok := current.Next()
		if !ok {
			break
		}

		applied, err := svc.Advance(ctx, o.ID, current)
		require.NoError(t, err)
		require.True(t, applied)
		current = next
	}

	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Delivered, got.Status)

	entries := historyOf(t, store, o.ID)
	require.Len(t, entries, 3)

	prev := status.Pending
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, prev, e.PreviousStatus)
		assert.NoError(t, status.ValidateTransition(e.PreviousStatus, e.NewStatus))
		if i > 0 {
			assert.True(t, e.CreatedAt.After(entries[i-1].CreatedAt), "history timestamps must increase")
		}
		prev = e.NewStatus
	}

	pending, err := store.OutboxRepository().ClaimPendingMessages(ctx, 10, time.Now())
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestAdvanceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	o := seedOrder(t, store, status.Pending, time.Now())

	applied, err := svc.Advance(ctx, o.ID, status.Pending)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = svc.Advance(ctx, o.ID, status.Pending)
	require.NoError(t, err)
	assert.False(t, applied)

	assert.Len(t, historyOf(t, store, o.ID), 1)
}

func TestAdvanceConcurrentDuplicatesApplyOnce(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	o := seedOrder(t, store, status.Pending, time.Now())

	var (
		wg      sync.WaitGroup
		applied atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ok, err := svc.Advance(ctx, o.ID, status.Pending)
			assert.NoError(t, err)
			if ok {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied.Load())
	assert.Len(t, historyOf(t, store, o.ID), 1)
}

func TestAdvanceFromTerminalStatus(t *testing.T) {
	svc, store := newService(t)
	o := seedOrder(t, store, status.Delivered, time.Now())

	_, err := svc.Advance(context.Background(), o.ID, status.Delivered)
	assert.ErrorIs(t, err, status.ErrIllegalTransition)
}

func TestAdvanceMissingOrder(t *testing.T) {
	svc, _ := newService(t)

	applied, err := svc.Advance(context.Background(), 404, status.Pending)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestTransitionRejectsIllegalEdges(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	o := seedOrder(t, store, status.Pending, time.Now())

	_, err := svc.Transition(ctx, o.ID, status.Pending, status.Delivered)
	assert.ErrorIs(t, err, status.ErrIllegalTransition)

	_, err = svc.Transition(ctx, o.ID, status.Pending, status.Delayed)
	assert.ErrorIs(t, err, status.ErrIllegalTransition)

	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Pending, got.Status)
	assert.Empty(t, historyOf(t, store, o.ID))
}

func TestMarkDelayedLosesToAdvance(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	o := seedOrder(t, store, status.Processing, time.Now().Add(-2*time.Hour))

	applied, err := svc.Advance(ctx, o.ID, status.Processing)
	require.NoError(t, err)
	require.True(t, applied)

	delayed, err := svc.MarkDelayed(ctx, o.ID, status.Processing)
	require.NoError(t, err)
	assert.False(t, delayed)

	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Dispatched, got.Status)
}

func TestTransitionTimestampsNeverGoBackwards(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newService(t, WithClock(func() time.Time { return fixed }))
	o := seedOrder(t, store, status.Pending, fixed)

	first, err := svc.Transition(ctx, o.ID, status.Pending, status.Processing)
	require.NoError(t, err)
	second, err := svc.Transition(ctx, o.ID, status.Processing, status.Dispatched)
	require.NoError(t, err)

	assert.True(t, first.CreatedAt.After(fixed))
	assert.True(t, second.CreatedAt.After(first.CreatedAt))
}

func TestStaleAndPendingOrders(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	now := time.Now()

	staleProcessing := seedOrder(t, store, status.Processing, now.Add(-3*time.Hour))
	staleDispatched := seedOrder(t, store, status.Dispatched, now.Add(-2*time.Hour))
	seedOrder(t, store, status.Processing, now)
	oldPending := seedOrder(t, store, status.Pending, now.Add(-2*time.Hour))
	seedOrder(t, store, status.Delivered, now.Add(-5*time.Hour))

	stale, err := svc.StaleOrders(ctx, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, staleProcessing.ID, stale[0].ID)
	assert.Equal(t, staleDispatched.ID, stale[1].ID)

	pending, err := svc.PendingOrders(ctx, now.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, oldPending.ID, pending[0].ID)
}
