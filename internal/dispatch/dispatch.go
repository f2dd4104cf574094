// Package dispatch defines how order work is handed to the async mechanism.
// Delivery is at-least-once; handlers must tolerate duplicates.
package dispatch

import (
	"context"
	"time"
)

// Handler processes one order. A returned error makes the queue retry later.
type Handler func(ctx context.Context, orderID int64) error

// Dispatcher schedules an order to be handled after delay. Dispatching an
// order that is already scheduled keeps the earlier due time.
type Dispatcher interface {
	Dispatch(ctx context.Context, orderID int64, delay time.Duration) error
}

// Queue is a Dispatcher that also runs the handlers.
type Queue interface {
	Dispatcher
	// Run blocks until ctx is cancelled and in-flight handlers return.
	Run(ctx context.Context, handler Handler) error
}
