// Package redisq is a durable dispatch queue on a Redis sorted set. Members
// are order ids, scores are due times in unix milliseconds. A claimed order
// moves to a second set scored by its claim deadline and returns to the queue
// if its handler never finishes, so delivery is at-least-once.
package redisq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dispatch"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// claimScript first returns expired claims from KEYS[2] to KEYS[1] (NX keeps
// a schedule the handler already made), then moves up to ARGV[2] members due
// at ARGV[1] into KEYS[2] with the claim deadline ARGV[3] as score.
var claimScript = goredis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, m in ipairs(expired) do
	redis.call('ZREM', KEYS[2], m)
	redis.call('ZADD', KEYS[1], 'NX', ARGV[1], m)
end
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, m in ipairs(items) do
	redis.call('ZREM', KEYS[1], m)
	redis.call('ZADD', KEYS[2], ARGV[3], m)
end
return items
`)

// ackScript drops the claim on ARGV[1] only if it still carries deadline
// ARGV[2], so a newer claim of the same order survives.
var ackScript = goredis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if score and tonumber(score) == tonumber(ARGV[2]) then
	return redis.call('ZREM', KEYS[1], ARGV[1])
end
return 0
`)

// claim is an order taken off the queue, due again at deadline unless acked.
type claim struct {
	orderID  int64
	deadline int64
}

// Queue implements dispatch.Queue on Redis.
type Queue struct {
	rdb          *goredis.Client
	key          string
	pollInterval time.Duration
	batchSize    int
	workers      int
	retryDelay   time.Duration
	visibility   time.Duration
}

type option func(*Queue)

// WithPollInterval sets how often due members are polled.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPollInterval(d time.Duration) option {
	return func(q *Queue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

// WithBatchSize sets how many members one poll may claim.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBatchSize(n int) option {
	return func(q *Queue) {
		if n > 0 {
			q.batchSize = n
		}
	}
}

// WithWorkers bounds the number of handlers running at once.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithWorkers(n int) option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithRetryDelay sets how long to wait before retrying a failed handler.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRetryDelay(d time.Duration) option {
	return func(q *Queue) {
		if d > 0 {
			q.retryDelay = d
		}
	}
}

// WithVisibilityTimeout sets how long a claimed order stays invisible. An
// order whose handler has not finished by then is delivered again.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithVisibilityTimeout(d time.Duration) option {
	return func(q *Queue) {
		if d > 0 {
			q.visibility = d
		}
	}
}

// NewQueue creates a queue stored under key. Claimed orders live under
// key + ":claimed" until their handler returns.
func NewQueue(rdb *goredis.Client, key string, opts ...option) *Queue {
	q := &Queue{
		rdb:          rdb,
		key:          key,
		pollInterval: 500 * time.Millisecond,
		batchSize:    100,
		workers:      16,
		retryDelay:   10 * time.Second,
		visibility:   time.Minute,
	}
	for _, opt := range opts {
		opt(q)
	}

	return q
}

var _ dispatch.Queue = (*Queue)(nil)

// Dispatch adds the order with score now+delay. ZADD LT keeps the earlier
// due time when the order is already queued.
func (q *Queue) Dispatch(ctx context.Context, orderID int64, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	due := time.Now().Add(delay).UnixMilli()

	err := q.rdb.ZAddArgs(ctx, q.key, goredis.ZAddArgs{
		LT: true,
		Members: []goredis.Z{{
			Score:  float64(due),
			Member: strconv.FormatInt(orderID, 10),
		}},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to dispatch order %d: %w", orderID, err)
	}

	return nil
}

// Run polls for due orders until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, handler dispatch.Handler) error {
	g := new(errgroup.Group)
	g.SetLimit(q.workers)

	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	slog.Info("Redis dispatcher started", "key", q.key, "poll_interval", q.pollInterval)

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			slog.Info("Redis dispatcher stopped")

			return nil
		case <-ticker.C:
			claims, err := q.claimDue(ctx, time.Now())
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("Failed to poll dispatch queue", "error", err)
				}

				continue
			}

			for _, c := range claims {
				g.Go(func() error {
					q.handle(ctx, handler, c)

					return nil
				})
			}
		}
	}
}

// Len returns the number of queued orders.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.key).Result()
}

func (q *Queue) claimedKey() string {
	return q.key + ":claimed"
}

func (q *Queue) claimDue(ctx context.Context, now time.Time) ([]claim, error) {
	deadline := now.Add(q.visibility).UnixMilli()

	members, err := claimScript.Run(ctx, q.rdb,
		[]string{q.key, q.claimedKey()},
		now.UnixMilli(), q.batchSize, deadline,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to claim due orders: %w", err)
	}

	claims := make([]claim, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			slog.Warn("Dropping malformed dispatch member", "member", m)
			if err := q.rdb.ZRem(ctx, q.claimedKey(), m).Err(); err != nil {
				slog.Error("Failed to drop malformed dispatch member", "member", m, "error", err)
			}

			continue
		}
		claims = append(claims, claim{orderID: id, deadline: deadline})
	}

	return claims, nil
}

// ack releases a claim once its handler has finished.
func (q *Queue) ack(ctx context.Context, c claim) error {
	err := ackScript.Run(ctx, q.rdb,
		[]string{q.claimedKey()},
		strconv.FormatInt(c.orderID, 10), c.deadline,
	).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to ack order %d: %w", c.orderID, err)
	}

	return nil
}

// handle runs the handler and acks the claim. A handler interrupted by
// shutdown is not acked; its claim expires and the order is delivered again.
func (q *Queue) handle(ctx context.Context, handler dispatch.Handler, c claim) {
	err := handler(ctx, c.orderID)
	if ctx.Err() != nil {
		return
	}

	ackCtx := context.WithoutCancel(ctx)
	if err != nil {
		slog.Error("Order handler failed, will retry",
			"order_id", c.orderID,
			"retry_in", q.retryDelay,
			"error", err,
		)
		if err := q.Dispatch(ackCtx, c.orderID, q.retryDelay); err != nil {
			// keep the claim; it expires and redelivers the order
			slog.Error("Failed to re-dispatch order", "order_id", c.orderID, "error", err)

			return
		}
	}

	if err := q.ack(ackCtx, c); err != nil {
		slog.Error("Failed to release dispatch claim", "order_id", c.orderID, "error", err)
	}
}
