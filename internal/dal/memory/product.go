package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
)

// ProductRepository is the memory inventory ledger.
type ProductRepository struct {
	store *Store
	uow   *UnitOfWork
}

// Insert adds a product to the catalog.
func (r *ProductRepository) Insert(ctx context.Context, p product.Product) (product.Product, error) {
	err := r.store.run(ctx, r.uow.currentTx(), func(tx *txState) error {
		p.ID = r.store.nextID(&r.store.lastProductID)
		tx.products[p.ID] = p

		created := p
		tx.stage(func(s *Store) {
			s.products[created.ID] = created
		})

		return nil
	})
	if err != nil {
		return product.Product{}, err
	}

	return p, nil
}

// Query retrieves products based on filter criteria.
func (r *ProductRepository) Query(
	_ context.Context,
	filter *product.QueryProductsModel,
) ([]product.Product, error) {
	view := make(map[int64]product.Product)

	r.store.mu.Lock()
	for id, p := range r.store.products {
		view[id] = p
	}
	r.store.mu.Unlock()

	if tx := r.uow.currentTx(); tx != nil {
		for id, p := range tx.products {
			view[id] = p
		}
		for id := range tx.droppedProducts {
			delete(view, id)
		}
	}

	var ids map[int64]struct{}
	if len(filter.Ids) > 0 {
		ids = make(map[int64]struct{}, len(filter.Ids))
		for _, id := range filter.Ids {
			ids[id] = struct{}{}
		}
	}

	result := make([]product.Product, 0, len(view))
	for _, p := range view {
		if ids != nil {
			if _, ok := ids[p.ID]; !ok {
				continue
			}
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return paginate(result, filter.Limit, filter.Offset), nil
}

// Reserve takes the row lock of every product in line order and decrements
// stock only if it covers the requested quantity.
func (r *ProductRepository) Reserve(
	ctx context.Context,
	lines []product.ReservationLine,
) ([]product.Product, error) {
	now := time.Now()
	result := make([]product.Product, 0, len(lines))

	err := r.store.run(ctx, r.uow.currentTx(), func(tx *txState) error {
		for _, line := range lines {
			if err := r.store.lock(ctx, tx, lockKey{kind: productRow, id: line.ProductID}); err != nil {
				return err
			}

			p, ok := r.current(tx, line.ProductID)
			if !ok {
				return fmt.Errorf("%w: %d", product.ErrNotFound, line.ProductID)
			}

			if p.Stock < line.Quantity {
				return &product.InsufficientStockError{
					ProductID: line.ProductID,
					Requested: line.Quantity,
					Available: p.Stock,
				}
			}

			p.Stock -= line.Quantity
			p.UpdatedAt = now
			tx.products[p.ID] = p

			updated := p
			tx.stage(func(s *Store) {
				s.products[updated.ID] = updated
			})
			result = append(result, p)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Update applies upd under the product's row lock.
func (r *ProductRepository) Update(
	ctx context.Context,
	id int64,
	upd product.Update,
	at time.Time,
) (product.Product, error) {
	return r.modify(ctx, id, func(p product.Product) product.Product {
		p = upd.Apply(p)
		p.UpdatedAt = at

		return p
	})
}

// Restock adds quantity to the stock level under the product's row lock.
func (r *ProductRepository) Restock(
	ctx context.Context,
	id int64,
	quantity int64,
	at time.Time,
) (product.Product, error) {
	return r.modify(ctx, id, func(p product.Product) product.Product {
		p.Stock += quantity
		p.UpdatedAt = at

		return p
	})
}

func (r *ProductRepository) modify(
	ctx context.Context,
	id int64,
	fn func(product.Product) product.Product,
) (product.Product, error) {
	var result product.Product

	err := r.store.run(ctx, r.uow.currentTx(), func(tx *txState) error {
		if err := r.store.lock(ctx, tx, lockKey{kind: productRow, id: id}); err != nil {
			return err
		}

		p, ok := r.current(tx, id)
		if !ok {
			return fmt.Errorf("%w: %d", product.ErrNotFound, id)
		}

		result = fn(p)
		tx.products[id] = result

		updated := result
		tx.stage(func(s *Store) {
			s.products[updated.ID] = updated
		})

		return nil
	})
	if err != nil {
		return product.Product{}, err
	}

	return result, nil
}

// Delete removes a product unless an order item references it. Reservations
// hold the product row lock until commit, so an order being placed for the
// product is visible here once the lock is granted.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	return r.store.run(ctx, r.uow.currentTx(), func(tx *txState) error {
		if err := r.store.lock(ctx, tx, lockKey{kind: productRow, id: id}); err != nil {
			return err
		}

		if _, ok := r.current(tx, id); !ok {
			return fmt.Errorf("%w: %d", product.ErrNotFound, id)
		}
		if r.referenced(tx, id) {
			return fmt.Errorf("%w: %d", product.ErrInUse, id)
		}

		tx.droppedProducts[id] = struct{}{}
		delete(tx.products, id)
		tx.stage(func(s *Store) {
			delete(s.products, id)
		})

		return nil
	})
}

// current returns the product as tx sees it.
func (r *ProductRepository) current(tx *txState, id int64) (product.Product, bool) {
	if _, gone := tx.droppedProducts[id]; gone {
		return product.Product{}, false
	}
	if p, ok := tx.products[id]; ok {
		return p, true
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.products[id]

	return p, ok
}

func (r *ProductRepository) referenced(tx *txState, id int64) bool {
	for _, items := range tx.items {
		for _, item := range items {
			if item.ProductID == id {
				return true
			}
		}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for orderID, items := range r.store.items {
		if _, gone := tx.deleted[orderID]; gone {
			continue
		}
		for _, item := range items {
			if item.ProductID == id {
				return true
			}
		}
	}

	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
