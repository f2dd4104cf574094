package kafka

import (
	"context"
	"fmt"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/segmentio/kafka-go"
)

const eventTypeHeader = "x-event-type"

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventsKafkaRepository publishes outbox messages to Kafka. The queue name is
// the topic and the order id the key, so events of one order stay ordered.
type EventsKafkaRepository struct {
	writer writer
}

func NewEventsKafkaRepository(brokers []string) *EventsKafkaRepository {
	return &EventsKafkaRepository{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish writes the message synchronously.
func (r *EventsKafkaRepository) Publish(ctx context.Context, msg outbox.OutboxMessage) error {
	if err := r.writer.WriteMessages(ctx, toMessage(msg)); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.EventType, err)
	}

	return nil
}

// Close flushes and closes the writer.
func (r *EventsKafkaRepository) Close() error {
	return r.writer.Close()
}

func toMessage(msg outbox.OutboxMessage) kafka.Message {
	return kafka.Message{
		Topic: msg.QueueName,
		Key:   []byte(msg.PartitionKey),
		Value: msg.Payload,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: eventTypeHeader, Value: []byte(msg.EventType)},
			{Key: "x-message-id", Value: []byte(msg.MessageID)},
			{Key: "content-type", Value: []byte(msg.ContentType)},
		},
	}
}
