package ordersvc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
)

// CreateProduct adds a product to the catalog.
func (s *OrderService) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return product.Product{}, fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if p.Price.IsNegative() {
		return product.Product{}, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if p.Stock < 0 {
		return product.Product{}, fmt.Errorf("%w: stock must not be negative", ErrValidation)
	}

	now := s.now()
	p.ID = 0
	p.Price = p.Price.Round(2)
	p.CreatedAt = now
	p.UpdatedAt = now

	created, err := s.newUOW().ProductRepository().Insert(ctx, p)
	if err != nil {
		return product.Product{}, err
	}

	slog.Info("Product created", "product_id", created.ID, "stock", created.Stock)

	return created, nil
}

// GetProducts lists products matching filter.
func (s *OrderService) GetProducts(ctx context.Context, filter product.QueryProductsModel) ([]product.Product, error) {
	products, err := s.newUOW().ProductRepository().Query(ctx, &filter)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []product.Product{}
	}

	return products, nil
}

// GetProduct returns one product.
func (s *OrderService) GetProduct(ctx context.Context, id int64) (product.Product, error) {
	products, err := s.GetProducts(ctx, product.QueryProductsModel{Ids: []int64{id}})
	if err != nil {
		return product.Product{}, err
	}
	if len(products) == 0 {
		return product.Product{}, fmt.Errorf("%w: %d", product.ErrNotFound, id)
	}

	return products[0], nil
}

// UpdateProduct changes the given fields of a product. Orders already placed
// keep the price they were created with.
func (s *OrderService) UpdateProduct(ctx context.Context, id int64, upd product.Update) (product.Product, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return product.Product{}, fmt.Errorf("%w: product name is required", ErrValidation)
		}
		upd.Name = &name
	}
	if upd.Price != nil {
		if upd.Price.IsNegative() {
			return product.Product{}, fmt.Errorf("%w: price must not be negative", ErrValidation)
		}
		price := upd.Price.Round(2)
		upd.Price = &price
	}
	if upd.Stock != nil && *upd.Stock < 0 {
		return product.Product{}, fmt.Errorf("%w: stock must not be negative", ErrValidation)
	}

	updated, err := s.newUOW().ProductRepository().Update(ctx, id, upd, s.now())
	if err != nil {
		return product.Product{}, err
	}

	slog.Info("Product updated", "product_id", updated.ID, "stock", updated.Stock)

	return updated, nil
}

// RestockProduct adds quantity units to a product's stock.
func (s *OrderService) RestockProduct(ctx context.Context, id int64, quantity int64) (product.Product, error) {
	if quantity < 1 {
		return product.Product{}, fmt.Errorf("%w: restock quantity must be at least 1", ErrValidation)
	}

	restocked, err := s.newUOW().ProductRepository().Restock(ctx, id, quantity, s.now())
	if err != nil {
		return product.Product{}, err
	}

	slog.Info("Product restocked", "product_id", id, "added", quantity, "stock", restocked.Stock)

	return restocked, nil
}

// DeleteProduct removes a product that no order references.
func (s *OrderService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.newUOW().ProductRepository().Delete(ctx, id); err != nil {
		return err
	}

	slog.Info("Product deleted", "product_id", id)

	return nil
}
