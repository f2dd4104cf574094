// Package logsink is the event publisher used when no broker is configured.
package logsink

import (
	"context"
	"log/slog"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
)

type EventsLogRepository struct {
	logger *slog.Logger
}

func NewEventsLogRepository(logger *slog.Logger) *EventsLogRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &EventsLogRepository{logger: logger}
}

func (r *EventsLogRepository) Publish(ctx context.Context, msg outbox.OutboxMessage) error {
	r.logger.InfoContext(ctx, "Event",
		"event_type", msg.EventType,
		"message_id", msg.MessageID,
		"queue", msg.QueueName,
		"key", msg.PartitionKey,
		"payload", string(msg.Payload),
	)

	return nil
}
