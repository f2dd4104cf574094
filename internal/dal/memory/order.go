package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
)

// OrderRepository is the memory order store.
type OrderRepository struct {
	store *Store
	uow   *UnitOfWork
}

// Insert stores a new order and returns it with its id.
func (r *OrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	err := r.store.run(ctx, r.uow.currentTx(), func(tx *txState) error {
		o.ID = r.store.nextID(&r.store.lastOrderID)

		row := o
		row.OrderItems = nil
		tx.orders[row.ID] = row
		tx.stage(func(s *Store) {
			s.orders[row.ID] = row
		})

		return nil
	})
	if err != nil {
		return order.Order{}, err
	}

	return o, nil
}

// Query retrieves orders based on filter criteria.
func (r *OrderRepository) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	view := make(map[int64]order.Order)

	r.store.mu.Lock()
	for id, o := range r.store.orders {
		view[id] = o
	}
	r.store.mu.Unlock()

	if tx := r.uow.currentTx(); tx != nil {
		for id, o := range tx.orders {
			view[id] = o
		}
		for id := range tx.deleted {
			delete(view, id)
		}
	}

	result := make([]order.Order, 0, len(view))
	for _, o := range view {
		if matches(o, filter) {
			o.OrderItems = []orderitem.OrderItem{}
			result = append(result, o)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch filter.OrderBy {
		case order.RecentTransitionFirst:
			if !a.LastTransitionAt.Equal(b.LastTransitionAt) {
				return a.LastTransitionAt.After(b.LastTransitionAt)
			}

			return a.ID > b.ID
		case order.OldestTransitionFirst:
			if !a.LastTransitionAt.Equal(b.LastTransitionAt) {
				return a.LastTransitionAt.Before(b.LastTransitionAt)
			}

			return a.ID < b.ID
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}

			return a.ID > b.ID
		}
	})

	return paginate(result, filter.Limit, filter.Offset), nil
}

func matches(o order.Order, filter *order.QueryOrdersModel) bool {
	if len(filter.Ids) > 0 && !contains(filter.Ids, o.ID) {
		return false
	}
	if len(filter.Statuses) > 0 && !contains(filter.Statuses, o.Status) {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(o.Status.String()), needle) &&
			!strings.Contains(strings.ToLower(o.CustomerName), needle) &&
			!strings.Contains(strings.ToLower(o.CustomerEmail), needle) {
			return false
		}
	}
	if !filter.TransitionBefore.IsZero() && !o.LastTransitionAt.Before(filter.TransitionBefore) {
		return false
	}
	if !filter.CreatedBefore.IsZero() && !o.CreatedAt.Before(filter.CreatedBefore) {
		return false
	}

	return true
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}

	return false
}

// UpdateStatus applies a guarded status change under the order row lock.
func (r *OrderRepository) UpdateStatus(
	ctx context.Context,
	id int64,
	from, to status.Status,
	at time.Time,
) (time.Time, error) {
	var applied time.Time

	err := r.store.run(ctx, r.uow.currentTx(), func(tx *txState) error {
		if err := r.store.lock(ctx, tx, lockKey{kind: orderRow, id: id}); err != nil {
			return err
		}

		o, ok := r.current(tx, id)
		if !ok {
			return fmt.Errorf("%w: %d", order.ErrNotFound, id)
		}
		if o.Status != from {
			return fmt.Errorf("%w: order %d is not %s", order.ErrStatusConflict, id, from)
		}

		applied = at
		if floor := o.LastTransitionAt.Add(time.Microsecond); applied.Before(floor) {
			applied = floor
		}

		o.Status = to
		o.LastTransitionAt = applied
		o.UpdatedAt = applied
		tx.orders[id] = o

		updated := o
		tx.stage(func(s *Store) {
			if _, ok := s.orders[updated.ID]; ok {
				s.orders[updated.ID] = updated
			}
		})

		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	return applied, nil
}

// Delete removes an order and its items. History is kept.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	return r.store.run(ctx, r.uow.currentTx(), func(tx *txState) error {
		if err := r.store.lock(ctx, tx, lockKey{kind: orderRow, id: id}); err != nil {
			return err
		}

		if _, ok := r.current(tx, id); !ok {
			return fmt.Errorf("%w: %d", order.ErrNotFound, id)
		}

		tx.deleted[id] = struct{}{}
		delete(tx.orders, id)
		delete(tx.items, id)
		tx.stage(func(s *Store) {
			delete(s.orders, id)
			delete(s.items, id)
		})

		return nil
	})
}

// current returns the order as seen by tx.
func (r *OrderRepository) current(tx *txState, id int64) (order.Order, bool) {
	if _, gone := tx.deleted[id]; gone {
		return order.Order{}, false
	}
	if o, ok := tx.orders[id]; ok {
		return o, true
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[id]

	return o, ok
}
