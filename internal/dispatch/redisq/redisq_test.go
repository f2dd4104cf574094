package redisq

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, opts ...option) *Queue {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	key := "test:dispatch:" + uuid.NewString()
	t.Cleanup(func() {
		_ = rdb.Del(context.Background(), key, key+":claimed").Err()
		_ = rdb.Close()
	})

	return NewQueue(rdb, key, opts...)
}

func TestDispatchKeepsEarliestScore(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Dispatch(ctx, 1, time.Hour))
	require.NoError(t, q.Dispatch(ctx, 1, 0))
	require.NoError(t, q.Dispatch(ctx, 1, time.Hour))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	claims, err := q.claimDue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, int64(1), claims[0].orderID)

	claims, err = q.claimDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestUnfinishedClaimIsDeliveredAgain(t *testing.T) {
	q := newTestQueue(t, WithVisibilityTimeout(time.Second))
	ctx := context.Background()

	require.NoError(t, q.Dispatch(ctx, 7, 0))

	now := time.Now()
	claims, err := q.claimDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, claims, 1)

	// the handler never returns: nothing is visible until the deadline
	claims, err = q.claimDue(ctx, now.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.Empty(t, claims)

	claims, err = q.claimDue(ctx, now.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, int64(7), claims[0].orderID)
}

func TestExpiredClaimKeepsRescheduledDueTime(t *testing.T) {
	q := newTestQueue(t, WithVisibilityTimeout(time.Second))
	ctx := context.Background()

	require.NoError(t, q.Dispatch(ctx, 8, 0))
	now := time.Now()
	_, err := q.claimDue(ctx, now)
	require.NoError(t, err)

	// the handler scheduled the next step and then died before acking
	require.NoError(t, q.Dispatch(ctx, 8, time.Hour))

	claims, err := q.claimDue(ctx, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Empty(t, claims)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestHandleAcksOnlyItsOwnClaim(t *testing.T) {
	q := newTestQueue(t, WithVisibilityTimeout(time.Second))
	ctx := context.Background()

	require.NoError(t, q.Dispatch(ctx, 9, 0))
	now := time.Now()
	first, err := q.claimDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// redelivered after expiry while the first handler is still running
	second, err := q.claimDue(ctx, now.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, second, 1)

	require.NoError(t, q.ack(ctx, first[0]))
	claimed, err := q.rdb.ZCard(ctx, q.claimedKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), claimed)

	require.NoError(t, q.ack(ctx, second[0]))
	claimed, err = q.rdb.ZCard(ctx, q.claimedKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), claimed)
}

func TestFailedHandlerIsRetried(t *testing.T) {
	q := newTestQueue(t, WithRetryDelay(time.Hour))
	ctx := context.Background()

	require.NoError(t, q.Dispatch(ctx, 10, 0))
	claims, err := q.claimDue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, claims, 1)

	q.handle(ctx, func(context.Context, int64) error {
		return errors.New("storage down")
	}, claims[0])

	score, err := q.rdb.ZScore(ctx, q.key, "10").Result()
	require.NoError(t, err)
	assert.Greater(t, int64(score), time.Now().Add(50*time.Minute).UnixMilli())

	claimed, err := q.rdb.ZCard(ctx, q.claimedKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), claimed)
}

func TestRunHandlesDueOrders(t *testing.T) {
	q := newTestQueue(t, WithPollInterval(10*time.Millisecond))

	var (
		mu   sync.Mutex
		seen []int64
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx, func(_ context.Context, orderID int64) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, orderID)

			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, q.Dispatch(context.Background(), 5, 0))
	require.NoError(t, q.Dispatch(context.Background(), 6, 30*time.Millisecond))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(seen) == 2
	}, 2*time.Second, 10*time.Millisecond)
}
