package memory

import (
	"context"
	"sort"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
)

// OutboxRepository is the memory outbox.
type OutboxRepository struct {
	store *Store
	uow   *UnitOfWork
}

// Insert adds a new message to the outbox.
func (r *OutboxRepository) Insert(ctx context.Context, msg outbox.OutboxMessage) error {
	return r.store.run(ctx, r.uow.currentTx(), func(tx *txState) error {
		msg.ID = r.store.nextID(&r.store.lastOutboxID)
		tx.stage(func(s *Store) {
			s.outbox[msg.ID] = msg
		})

		return nil
	})
}

// ClaimPendingMessages hides up to limit due messages until claimUntil and
// returns them.
func (r *OutboxRepository) ClaimPendingMessages(
	_ context.Context,
	limit int,
	claimUntil time.Time,
) ([]outbox.OutboxMessage, error) {
	now := time.Now()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	due := make([]outbox.OutboxMessage, 0, len(r.store.outbox))
	for _, msg := range r.store.outbox {
		if !msg.NextRetryAt.After(now) && msg.RetryCount < msg.MaxRetries {
			due = append(due, msg)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextRetryAt.Equal(due[j].NextRetryAt) {
			return due[i].NextRetryAt.Before(due[j].NextRetryAt)
		}

		return due[i].ID < due[j].ID
	})
	due = paginate(due, limit, 0)

	for i := range due {
		due[i].NextRetryAt = claimUntil
		due[i].UpdatedAt = now
		r.store.outbox[due[i].ID] = due[i]
	}

	return due, nil
}

// Delete removes a message from the outbox after successful delivery.
func (r *OutboxRepository) Delete(ctx context.Context, id int64) error {
	return r.store.run(ctx, r.uow.currentTx(), func(tx *txState) error {
		tx.stage(func(s *Store) {
			delete(s.outbox, id)
		})

		return nil
	})
}

// UpdateRetry updates retry count and error information.
func (r *OutboxRepository) UpdateRetry(
	ctx context.Context,
	id int64,
	retryCount int,
	lastError string,
	nextRetryAt time.Time,
) error {
	now := time.Now()

	return r.store.run(ctx, r.uow.currentTx(), func(tx *txState) error {
		tx.stage(func(s *Store) {
			msg, ok := s.outbox[id]
			if !ok {
				return
			}
			msg.RetryCount = retryCount
			msg.LastError = lastError
			msg.NextRetryAt = nextRetryAt
			msg.UpdatedAt = now
			s.outbox[id] = msg
		})

		return nil
	})
}
