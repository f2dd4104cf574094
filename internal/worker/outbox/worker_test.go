package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/memory"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu        sync.Mutex
	failTimes int
	delay     time.Duration
	published []outbox.OutboxMessage
}

func (p *fakePublisher) Publish(_ context.Context, msg outbox.OutboxMessage) error {
	time.Sleep(p.delay)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failTimes > 0 {
		p.failTimes--

		return errors.New("broker unavailable")
	}
	p.published = append(p.published, msg)

	return nil
}

func enqueue(t *testing.T, store *memory.Store, orderID int64) {
	t.Helper()

	msg, err := outbox.NewOrderEvent("order-events", outbox.EventOrderCreated, orderID, outbox.OrderCreated{OrderID: orderID}, time.Now().Add(-time.Second))
	require.NoError(t, err)
	require.NoError(t, store.OutboxRepository().Insert(context.Background(), msg))
}

// due lists the messages a worker could claim right now without hiding them.
func due(t *testing.T, store *memory.Store) []outbox.OutboxMessage {
	t.Helper()

	msgs, err := store.OutboxRepository().ClaimPendingMessages(context.Background(), 10, time.Now())
	require.NoError(t, err)

	return msgs
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.published)
}

func TestProcessMessagesPublishesAndDeletes(t *testing.T) {
	store := memory.NewStore()
	enqueue(t, store, 1)
	enqueue(t, store, 2)

	pub := &fakePublisher{}
	w := NewWorker(store.OutboxRepository(), pub, time.Second, 10, time.Second)

	w.ProcessMessages(context.Background())

	require.Len(t, pub.published, 2)
	assert.Equal(t, "1", pub.published[0].PartitionKey)
	assert.Equal(t, outbox.EventOrderCreated, pub.published[0].EventType)

	assert.Empty(t, due(t, store))
}

func TestProcessMessagesBacksOffOnFailure(t *testing.T) {
	store := memory.NewStore()
	enqueue(t, store, 1)

	now := time.Now()
	pub := &fakePublisher{failTimes: 1}
	w := NewWorker(store.OutboxRepository(), pub, time.Second, 10, 50*time.Millisecond)
	w.now = func() time.Time { return now }

	w.ProcessMessages(context.Background())
	assert.Empty(t, pub.published)

	assert.Empty(t, due(t, store), "failed message must wait for its backoff")

	w.now = time.Now
	require.Eventually(t, func() bool {
		w.ProcessMessages(context.Background())

		pub.mu.Lock()
		defer pub.mu.Unlock()

		return len(pub.published) == 1
	}, time.Second, 20*time.Millisecond)
}

func TestConcurrentWorkersPublishEachMessageOnce(t *testing.T) {
	store := memory.NewStore()
	for id := range int64(20) {
		enqueue(t, store, id+1)
	}

	pub := &fakePublisher{delay: time.Millisecond}

	var wg sync.WaitGroup
	for range 4 {
		w := NewWorker(store.OutboxRepository(), pub, time.Second, 5, time.Second)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				w.ProcessMessages(context.Background())
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]int)
	for _, msg := range pub.published {
		seen[msg.ID]++
	}
	assert.Len(t, seen, 20)
	for id, n := range seen {
		assert.Equal(t, 1, n, "message %d published more than once", id)
	}
}

func TestAbandonedClaimIsPublishedAfterTimeout(t *testing.T) {
	store := memory.NewStore()
	enqueue(t, store, 1)

	// a worker that claimed the message and died before publishing
	claimed, err := store.OutboxRepository().ClaimPendingMessages(
		context.Background(), 10, time.Now().Add(50*time.Millisecond),
	)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	pub := &fakePublisher{}
	w := NewWorker(store.OutboxRepository(), pub, time.Second, 10, time.Second)

	w.ProcessMessages(context.Background())
	assert.Zero(t, pub.count(), "claimed message must stay hidden")

	require.Eventually(t, func() bool {
		w.ProcessMessages(context.Background())

		return pub.count() == 1
	}, time.Second, 20*time.Millisecond)
	assert.Empty(t, due(t, store))
}

func TestStartStops(t *testing.T) {
	store := memory.NewStore()
	enqueue(t, store, 3)

	pub := &fakePublisher{}
	w := NewWorker(store.OutboxRepository(), pub, 5*time.Millisecond, 10, time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(context.Background())
	}()

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()

		return len(pub.published) == 1
	}, time.Second, 5*time.Millisecond)

	w.Stop()
	<-done
}
