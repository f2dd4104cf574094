package status

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the fulfillment state of an order.
type Status string

const (
	Pending    Status = "PENDING"
	Processing Status = "PROCESSING"
	Dispatched Status = "DISPATCHED"
	Delivered  Status = "DELIVERED"
	Cancelled  Status = "CANCELLED"
	Delayed    Status = "DELAYED"
)

var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// validNext lists every edge of the fulfillment state machine.
var validNext = map[Status][]Status{
	Pending:    {Processing, Cancelled},
	Processing: {Dispatched, Delayed, Cancelled},
	Dispatched: {Delivered, Delayed, Cancelled},
	Delayed:    {Cancelled},
	Delivered:  {},
	Cancelled:  {},
}

// workflow is the automatic path driven by the fulfillment worker.
var workflow = map[Status]Status{
	Pending:    Processing,
	Processing: Dispatched,
	Dispatched: Delivered,
}

// All returns every known status.
func All() []Status {
	return []Status{Pending, Processing, Dispatched, Delivered, Cancelled, Delayed}
}

// Parse converts a string to a Status. Matching is case-insensitive.
func Parse(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := validNext[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}

	return st, nil
}

func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := validNext[s]

	return ok
}

// IsTerminal reports whether no edge leaves s.
func (s Status) IsTerminal() bool {
	return len(validNext[s]) == 0
}

// Next returns the successor on the automatic fulfillment path.
func (s Status) Next() (Status, bool) {
	next, ok := workflow[s]

	return next, ok
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}

	return false
}

// ValidateTransition returns ErrIllegalTransition when from -> to is not an edge.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}

	return nil
}

// IsStalenessCandidate reports whether the sweeper may mark s as delayed.
func (s Status) IsStalenessCandidate() bool {
	return s == Processing || s == Dispatched
}
