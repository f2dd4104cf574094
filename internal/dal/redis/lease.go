package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var renewScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// Lease is a best-effort single-holder lock with a TTL.
type Lease struct {
	rdb   *goredis.Client
	key   string
	owner string
	ttl   time.Duration
}

// NewLease creates a lease on key held for ttl after every successful acquire.
func NewLease(client *Client, key string, ttl time.Duration) *Lease {
	return &Lease{
		rdb:   client.Redis(),
		key:   key,
		owner: uuid.NewString(),
		ttl:   ttl,
	}
}

// TryAcquire takes the lease or renews it when this instance already holds it.
func (l *Lease) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", l.key, err)
	}
	if ok {
		return true, nil
	}

	renewed, err := renewScript.Run(ctx, l.rdb, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return false, fmt.Errorf("failed to renew lease %s: %w", l.key, err)
	}

	return renewed == 1, nil
}
