package order

import (
	"errors"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("order not found")

	// ErrStatusConflict means the order was not in the expected status when a
	// guarded transition was applied.
	ErrStatusConflict = errors.New("order status conflict")
)

// Order represents a customer order in the system.
type Order struct {
	ID               int64                 `json:"id"`
	CustomerName     string                `json:"customerName"`
	CustomerEmail    string                `json:"customerEmail"`
	CustomerPhone    string                `json:"customerPhone"`
	DeliveryAddress  string                `json:"deliveryAddress"`
	Status           status.Status         `json:"status"`
	TotalPrice       decimal.Decimal       `json:"totalPrice"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	LastTransitionAt time.Time             `json:"lastTransitionAt"`
	OrderItems       []orderitem.OrderItem `json:"orderItems"`
}
