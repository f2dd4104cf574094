package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/streadway/amqp"
)

type client interface {
	DeclareQueue(cfg rabbitmq.DeclareQueueConfig) (amqp.Queue, error)
	Publish(exchange, routingKey string, msg amqp.Publishing) error
}

// EventsRabbitMQRepository publishes outbox messages to RabbitMQ.
type EventsRabbitMQRepository struct {
	client client

	mu       sync.Mutex
	declared map[string]struct{}
}

func NewEventsRabbitMQRepository(client client) *EventsRabbitMQRepository {
	return &EventsRabbitMQRepository{
		client:   client,
		declared: make(map[string]struct{}),
	}
}

// Publish declares the target queue once and publishes the message as persistent.
func (r *EventsRabbitMQRepository) Publish(_ context.Context, msg outbox.OutboxMessage) error {
	if msg.ExchangeName == "" && msg.QueueName != "" {
		if err := r.declare(msg.QueueName); err != nil {
			return err
		}
	}

	if err := r.client.Publish(msg.ExchangeName, msg.RoutingKey, toPublishing(msg)); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.EventType, err)
	}

	return nil
}

func (r *EventsRabbitMQRepository) declare(queue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.declared[queue]; ok {
		return nil
	}

	if _, err := r.client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    queue,
		Durable: true,
	}); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	r.declared[queue] = struct{}{}

	return nil
}

func toPublishing(msg outbox.OutboxMessage) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Type:         msg.EventType,
		Timestamp:    msg.CreatedAt,
		Headers: amqp.Table{
			"partition_key": msg.PartitionKey,
		},
		Body: msg.Payload,
	}
}
