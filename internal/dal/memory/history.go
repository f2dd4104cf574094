package memory

import (
	"context"
	"sort"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/history"
)

// HistoryRepository is the memory history ledger. Entries are never updated
// or deleted.
type HistoryRepository struct {
	store *Store
	uow   *UnitOfWork
}

// Append stores the entry with the next sequence number of its order. It takes
// the order row lock, so appends for one order are serialized.
func (r *HistoryRepository) Append(ctx context.Context, entry history.Entry) (history.Entry, error) {
	err := r.store.run(ctx, r.uow.currentTx(), func(tx *txState) error {
		if err := r.store.lock(ctx, tx, lockKey{kind: orderRow, id: entry.OrderID}); err != nil {
			return err
		}

		r.store.mu.Lock()
		committed := len(r.store.history[entry.OrderID])
		r.store.mu.Unlock()

		entry.Seq = int64(committed+len(tx.history[entry.OrderID])) + 1
		entry.ID = r.store.nextID(&r.store.lastHistoryID)
		tx.history[entry.OrderID] = append(tx.history[entry.OrderID], entry)

		created := entry
		tx.stage(func(s *Store) {
			s.history[created.OrderID] = append(s.history[created.OrderID], created)
		})

		return nil
	})
	if err != nil {
		return history.Entry{}, err
	}

	return entry, nil
}

// Query returns entries ordered by order id and sequence.
func (r *HistoryRepository) Query(
	_ context.Context,
	filter *history.QueryHistoryModel,
) ([]history.Entry, error) {
	var result []history.Entry

	collect := func(byOrder map[int64][]history.Entry) {
		for orderID, entries := range byOrder {
			if len(filter.OrderIds) > 0 && !contains(filter.OrderIds, orderID) {
				continue
			}
			result = append(result, entries...)
		}
	}

	r.store.mu.Lock()
	collect(r.store.history)
	r.store.mu.Unlock()

	if tx := r.uow.currentTx(); tx != nil {
		collect(tx.history)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].OrderID != result[j].OrderID {
			return result[i].OrderID < result[j].OrderID
		}

		return result[i].Seq < result[j].Seq
	})

	return result, nil
}
