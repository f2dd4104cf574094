package ihistoryrepo

import (
	"context"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/history"
)

// IHistoryRepository is an interface for the append-only history ledger.
type IHistoryRepository interface {
	// Append stores the entry with the next sequence number of its order.
	Append(ctx context.Context, entry history.Entry) (history.Entry, error)
	// Query returns entries ordered by order id and sequence.
	Query(ctx context.Context, filter *history.QueryHistoryModel) ([]history.Entry, error)
}
