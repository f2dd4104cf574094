package history

import (
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
)

// Entry is one immutable record of an order status change.
type Entry struct {
	ID             int64         `json:"id"`
	OrderID        int64         `json:"orderId"`
	Seq            int64         `json:"seq"`
	PreviousStatus status.Status `json:"previousStatus"`
	NewStatus      status.Status `json:"newStatus"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// QueryHistoryModel represents filter parameters for querying history entries.
type QueryHistoryModel struct {
	OrderIds []int64 `json:"orderIds,omitempty"`
}
