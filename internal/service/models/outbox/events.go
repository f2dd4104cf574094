package outbox

import (
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderCreated is published once an order and its reservation are committed.
type OrderCreated struct {
	OrderID    int64           `json:"orderId"`
	Status     status.Status   `json:"status"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	ItemCount  int             `json:"itemCount"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// OrderStatusChanged mirrors a history entry.
type OrderStatusChanged struct {
	OrderID        int64         `json:"orderId"`
	Seq            int64         `json:"seq"`
	PreviousStatus status.Status `json:"previousStatus"`
	NewStatus      status.Status `json:"newStatus"`
	At             time.Time     `json:"at"`
}
