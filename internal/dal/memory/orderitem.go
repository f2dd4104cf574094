package memory

import (
	"context"
	"sort"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderitem"
)

// OrderItemRepository is the memory order item repository.
type OrderItemRepository struct {
	store *Store
	uow   *UnitOfWork
}

// BulkInsert inserts order items and returns them with ids, in input order.
func (r *OrderItemRepository) BulkInsert(
	ctx context.Context,
	orderItems []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	result := make([]orderitem.OrderItem, 0, len(orderItems))

	err := r.store.run(ctx, r.uow.currentTx(), func(tx *txState) error {
		for _, item := range orderItems {
			item.ID = r.store.nextID(&r.store.lastItemID)
			tx.items[item.OrderID] = append(tx.items[item.OrderID], item)

			created := item
			tx.stage(func(s *Store) {
				s.items[created.OrderID] = append(s.items[created.OrderID], created)
			})
			result = append(result, item)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Query retrieves order items based on filter criteria.
func (r *OrderItemRepository) Query(
	_ context.Context,
	filter *orderitem.QueryOrderItemsModel,
) ([]orderitem.OrderItem, error) {
	var all []orderitem.OrderItem

	r.store.mu.Lock()
	for _, items := range r.store.items {
		all = append(all, items...)
	}
	r.store.mu.Unlock()

	tx := r.uow.currentTx()
	if tx != nil {
		for _, items := range tx.items {
			all = append(all, items...)
		}
	}

	result := make([]orderitem.OrderItem, 0, len(all))
	for _, item := range all {
		if tx != nil {
			if _, gone := tx.deleted[item.OrderID]; gone {
				continue
			}
		}
		if len(filter.Ids) > 0 && !contains(filter.Ids, item.ID) {
			continue
		}
		if len(filter.OrderIds) > 0 && !contains(filter.OrderIds, item.OrderID) {
			continue
		}
		if len(filter.ProductIds) > 0 && !contains(filter.ProductIds, item.ProductID) {
			continue
		}
		result = append(result, item)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].OrderID != result[j].OrderID {
			return result[i].OrderID < result[j].OrderID
		}

		return result[i].ID < result[j].ID
	})

	return result, nil
}
