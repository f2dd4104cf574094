package product

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInUse is returned when deleting a product that order items still reference.
	ErrInUse = errors.New("product is referenced by orders")
)

// Product represents a catalog entry with its available stock.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	ExpiryDate  *time.Time      `json:"expiryDate,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Update is a partial change to a product. Nil fields are left as they are.
// Stock replaces the level outright; use a restock to add to it.
type Update struct {
	Name        *string
	Description *string
	Category    *string
	Price       *decimal.Decimal
	Stock       *int64
	ExpiryDate  *time.Time
	// ClearExpiry removes the expiry date.
	ClearExpiry bool
}

// Apply returns p with u applied.
func (u Update) Apply(p Product) Product {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.ExpiryDate != nil {
		d := *u.ExpiryDate
		p.ExpiryDate = &d
	}
	if u.ClearExpiry {
		p.ExpiryDate = nil
	}

	return p
}

// InsufficientStockError is returned when a reservation asks for more than is available.
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available,
	)
}

// Is makes errors.Is(err, ErrInsufficientStock) match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ReservationLine is a request to take Quantity units of a product.
type ReservationLine struct {
	ProductID int64
	Quantity  int64
}

// NormalizeLines merges duplicate products and sorts lines by product id,
// so concurrent reservations always lock rows in the same order.
func NormalizeLines(lines []ReservationLine) []ReservationLine {
	totals := make(map[int64]int64, len(lines))
	for _, l := range lines {
		totals[l.ProductID] += l.Quantity
	}

	result := make([]ReservationLine, 0, len(totals))
	for id, qty := range totals {
		result = append(result, ReservationLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ProductID < result[j].ProductID
	})

	return result
}
