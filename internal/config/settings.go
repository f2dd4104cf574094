package config

import (
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Dispatch drivers.
const (
	DispatchLocal = "local"
	DispatchRedis = "redis"
)

// Event brokers.
const (
	BrokerRabbitMQ = "rabbitmq"
	BrokerKafka    = "kafka"
	BrokerNone     = "none"
)

// Fulfillment configures the worker that walks orders through the workflow.
type Fulfillment struct {
	StepInterval time.Duration
}

// Sweeper configures the staleness sweeper.
type Sweeper struct {
	Interval            time.Duration
	Threshold           time.Duration
	BatchSize           int
	PendingRequeueAfter time.Duration
	LeaseTTL            time.Duration
}

// Intake configures order creation.
type Intake struct {
	MaxRetries       uint64
	RetryBase        time.Duration
	BatchConcurrency int
	EventsQueue      string
}

// Dispatch configures the async dispatch mechanism.
type Dispatch struct {
	Driver       string
	Workers      int
	RetryDelay   time.Duration
	PollInterval time.Duration
	BatchSize    int
	QueueKey     string
	RedisAddr    string
	// VisibilityTimeout is how long a claimed redis entry stays hidden
	// before another poller may take it.
	VisibilityTimeout time.Duration
}

// Outbox configures the outbox publisher worker.
type Outbox struct {
	Broker        string
	PollInterval  time.Duration
	BatchSize     int
	RetryInterval time.Duration
}

// Kafka configures the Kafka event publisher.
type Kafka struct {
	Brokers []string
}

// Otel configures tracing.
type Otel struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// StorageDriver returns storage.driver, postgres by default.
func StorageDriver() string {
	return stringOr("storage.driver", StoragePostgres)
}

// LoadFulfillment reads the fulfillment section.
func LoadFulfillment() Fulfillment {
	return Fulfillment{
		StepInterval: durationOr("fulfillment.step_interval", 5*time.Second),
	}
}

// LoadSweeper reads the sweeper section.
func LoadSweeper() Sweeper {
	return Sweeper{
		Interval:            durationOr("sweeper.interval", time.Minute),
		Threshold:           durationOr("sweeper.threshold", time.Hour),
		BatchSize:           intOr("sweeper.batch_size", 100),
		PendingRequeueAfter: durationOr("sweeper.pending_requeue_after", 5*time.Minute),
		LeaseTTL:            durationOr("sweeper.lease_ttl", 0),
	}
}

// LoadIntake reads the intake section.
func LoadIntake() Intake {
	return Intake{
		MaxRetries:       uint64(intOr("intake.max_retries", 3)),
		RetryBase:        durationOr("intake.retry_base", 20*time.Millisecond),
		BatchConcurrency: intOr("intake.batch_concurrency", 8),
		EventsQueue:      stringOr("events.queue", "order-events"),
	}
}

// LoadDispatch reads the dispatch section.
func LoadDispatch() Dispatch {
	return Dispatch{
		Driver:            stringOr("dispatch.driver", DispatchLocal),
		Workers:           intOr("dispatch.workers", 16),
		RetryDelay:        durationOr("dispatch.retry_delay", 10*time.Second),
		PollInterval:      durationOr("dispatch.poll_interval", 500*time.Millisecond),
		BatchSize:         intOr("dispatch.batch_size", 100),
		QueueKey:          stringOr("dispatch.queue_key", "fulfillment:dispatch"),
		RedisAddr:         stringOr("redis.addr", "redis:6379"),
		VisibilityTimeout: durationOr("dispatch.visibility_timeout", time.Minute),
	}
}

// LoadOutbox reads the outbox section.
func LoadOutbox() Outbox {
	return Outbox{
		Broker:        stringOr("events.broker", BrokerRabbitMQ),
		PollInterval:  durationOr("outbox.poll_interval", 10*time.Second),
		BatchSize:     intOr("outbox.batch_size", 100),
		RetryInterval: durationOr("outbox.retry_interval", 30*time.Second),
	}
}

// LoadKafka reads the kafka section.
func LoadKafka() Kafka {
	brokers := viper.GetStringSlice("kafka.brokers")
	if len(brokers) == 0 {
		brokers = []string{"kafka:9092"}
	}

	return Kafka{Brokers: brokers}
}

// LoadOtel reads the otel section.
func LoadOtel() Otel {
	return Otel{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    stringOr("otel.service_name", "fulfillment-svc"),
		JaegerEndpoint: stringOr("otel.jaeger_endpoint", "http://jaeger:14268/api/traces"),
	}
}

func durationOr(key string, def time.Duration) time.Duration {
	if d := viper.GetDuration(key); d > 0 {
		return d
	}

	return def
}

func intOr(key string, def int) int {
	if v := viper.GetInt(key); v > 0 {
		return v
	}

	return def
}

func stringOr(key, def string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}

	return def
}
