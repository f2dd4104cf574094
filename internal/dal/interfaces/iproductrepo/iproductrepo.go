package iproductrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
)

// IProductRepository is an interface for the inventory ledger.
type IProductRepository interface {
	Insert(ctx context.Context, p product.Product) (product.Product, error)
	Query(ctx context.Context, filter *product.QueryProductsModel) ([]product.Product, error)

	// Reserve atomically decrements stock for every line or for none of them.
	// Lines must be normalized with product.NormalizeLines. Returns the
	// products after the decrement, in line order.
	Reserve(ctx context.Context, lines []product.ReservationLine) ([]product.Product, error)

	// Update applies upd under the product's row lock and returns the result.
	Update(ctx context.Context, id int64, upd product.Update, at time.Time) (product.Product, error)
	// Restock adds quantity to the current stock level atomically.
	Restock(ctx context.Context, id int64, quantity int64, at time.Time) (product.Product, error)
	// Delete removes a product no order item references, else product.ErrInUse.
	Delete(ctx context.Context, id int64) error
}
