package order

import (
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
)

// Ordering selects the sort order of an order query.
type Ordering int

const (
	// NewestFirst sorts by creation time, most recent first.
	NewestFirst Ordering = iota
	// RecentTransitionFirst sorts by last transition time, most recent first.
	RecentTransitionFirst
	// OldestTransitionFirst sorts by last transition time, oldest first.
	OldestTransitionFirst
)

// QueryOrdersModel represents filter parameters for querying orders
type QueryOrdersModel struct {
	Ids              []int64         `json:"ids,omitempty"`
	Statuses         []status.Status `json:"statuses,omitempty"`
	Search           string          `json:"search,omitempty"`
	TransitionBefore time.Time       `json:"transitionBefore,omitempty"`
	CreatedBefore    time.Time       `json:"createdBefore,omitempty"`
	OrderBy          Ordering        `json:"orderBy,omitempty"`
	Limit            int             `json:"limit,omitempty"`
	Offset           int             `json:"offset,omitempty"`
}
