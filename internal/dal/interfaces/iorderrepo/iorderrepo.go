package iorderrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
)

// IOrderRepository is an interface for the order store.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) (order.Order, error)
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)

	// UpdateStatus moves the order from one status to another only if it is
	// currently in from. Returns order.ErrStatusConflict when the guard does
	// not hold and order.ErrNotFound when the order does not exist. The
	// returned time is the stored transition time, which is strictly after
	// the previous one.
	UpdateStatus(ctx context.Context, id int64, from, to status.Status, at time.Time) (time.Time, error)

	Delete(ctx context.Context, id int64) error
}
