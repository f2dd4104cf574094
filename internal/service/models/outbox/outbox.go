package outbox

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries is used when a message is created without an explicit limit.
const DefaultMaxRetries = 5

// OutboxMessage represents an event waiting to be published to the broker.
type OutboxMessage struct {
	ID           int64
	MessageID    string
	EventType    string
	QueueName    string
	ExchangeName string
	RoutingKey   string
	PartitionKey string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}

// NewOrderEvent builds a message for the default exchange, routed to queue
// and partitioned by order id.
func NewOrderEvent(
	queue string,
	eventType string,
	orderID int64,
	payload any,
	now time.Time,
) (OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	return OutboxMessage{
		MessageID:    uuid.NewString(),
		EventType:    eventType,
		QueueName:    queue,
		RoutingKey:   queue,
		PartitionKey: strconv.FormatInt(orderID, 10),
		Payload:      body,
		ContentType:  "application/json",
		MaxRetries:   DefaultMaxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRetryAt:  now,
	}, nil
}
