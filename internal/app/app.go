package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/config"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/memory"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/redis"
	eventskafka "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/events/kafka"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/events/logsink"
	eventsrabbitmq "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/events/rabbitmq"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/dispatch"
	"github.com/corray333/backend-labs/fulfillment/internal/dispatch/local"
	"github.com/corray333/backend-labs/fulfillment/internal/dispatch/redisq"
	"github.com/corray333/backend-labs/fulfillment/internal/otel"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/fulfillmentsvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	grpctransport "github.com/corray333/backend-labs/fulfillment/internal/transport/grpc"
	httptransport "github.com/corray333/backend-labs/fulfillment/internal/transport/http"
	"github.com/corray333/backend-labs/fulfillment/internal/worker/fulfillment"
	outboxworker "github.com/corray333/backend-labs/fulfillment/internal/worker/outbox"
	"github.com/corray333/backend-labs/fulfillment/internal/worker/sweeper"
)

type publisher interface {
	Publish(ctx context.Context, msg outbox.OutboxMessage) error
}

// App represents the application.
type App struct {
	orderSvc          *ordersvc.OrderService
	fulfillmentSvc    *fulfillmentsvc.FulfillmentService
	queue             dispatch.Queue
	fulfillmentWorker *fulfillment.Worker
	sweeper           *sweeper.Sweeper
	outboxWorker      *outboxworker.Worker
	httpTransport     *httptransport.HTTPTransport
	grpcTransport     *grpctransport.GRPCTransport

	postgresClient *postgres.Client
	redisClient    *redis.Client
	rabbitMqClient *rabbitmq.Client
	kafkaPublisher *eventskafka.EventsKafkaRepository
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	a := &App{
		otelController: otel.MustInitOtel(config.LoadOtel()),
	}

	intakeCfg := config.LoadIntake()
	dispatchCfg := config.LoadDispatch()
	sweeperCfg := config.LoadSweeper()
	outboxCfg := config.LoadOutbox()

	var (
		store      *memory.Store
		outboxRepo ioutboxrepo.IOutboxRepository
	)
	switch driver := config.StorageDriver(); driver {
	case config.StorageMemory:
		slog.Warn("Using in-memory storage, data will not survive a restart")
		store = memory.NewStore()
		outboxRepo = store.OutboxRepository()
	case config.StoragePostgres:
		a.postgresClient = postgres.MustNewClient()
		outboxRepo = uow.NewUnitOfWork(a.postgresClient).OutboxRepository()
	default:
		panic("unknown storage driver: " + driver)
	}

	orderStorage := ordersvc.WithPostgresClient(a.postgresClient)
	fulfillmentStorage := fulfillmentsvc.WithPostgresClient(a.postgresClient)
	if store != nil {
		orderStorage = ordersvc.WithMemoryStore(store)
		fulfillmentStorage = fulfillmentsvc.WithMemoryStore(store)
	}

	sweeperLease := sweeper.WithLease(nil)
	switch dispatchCfg.Driver {
	case config.DispatchLocal:
		a.queue = local.NewScheduler(
			local.WithWorkers(dispatchCfg.Workers),
			local.WithRetryDelay(dispatchCfg.RetryDelay),
		)
	case config.DispatchRedis:
		a.redisClient = redis.MustNewClient(dispatchCfg.RedisAddr)
		a.queue = redisq.NewQueue(a.redisClient.Redis(), dispatchCfg.QueueKey,
			redisq.WithWorkers(dispatchCfg.Workers),
			redisq.WithRetryDelay(dispatchCfg.RetryDelay),
			redisq.WithPollInterval(dispatchCfg.PollInterval),
			redisq.WithBatchSize(dispatchCfg.BatchSize),
			redisq.WithVisibilityTimeout(dispatchCfg.VisibilityTimeout),
		)
		if sweeperCfg.LeaseTTL > 0 {
			sweeperLease = sweeper.WithLease(
				redis.NewLease(a.redisClient, dispatchCfg.QueueKey+":sweeper", sweeperCfg.LeaseTTL),
			)
		}
	default:
		panic("unknown dispatch driver: " + dispatchCfg.Driver)
	}

	a.orderSvc = ordersvc.MustNewOrderService(
		orderStorage,
		ordersvc.WithDispatcher(a.queue),
		ordersvc.WithRetry(intakeCfg.MaxRetries, intakeCfg.RetryBase),
		ordersvc.WithBatchConcurrency(intakeCfg.BatchConcurrency),
		ordersvc.WithEventsQueue(intakeCfg.EventsQueue),
	)
	a.fulfillmentSvc = fulfillmentsvc.MustNewFulfillmentService(
		fulfillmentStorage,
		fulfillmentsvc.WithEventsQueue(intakeCfg.EventsQueue),
	)

	a.fulfillmentWorker = fulfillment.NewWorker(
		a.fulfillmentSvc,
		a.queue,
		config.LoadFulfillment().StepInterval,
	)

	a.sweeper = sweeper.NewSweeper(a.fulfillmentSvc, sweeper.Config{
		Interval:            sweeperCfg.Interval,
		Threshold:           sweeperCfg.Threshold,
		BatchSize:           sweeperCfg.BatchSize,
		PendingRequeueAfter: sweeperCfg.PendingRequeueAfter,
	}, sweeperLease, sweeper.WithDispatcher(a.queue))

	a.outboxWorker = outboxworker.NewWorker(
		outboxRepo,
		a.mustNewPublisher(outboxCfg.Broker),
		outboxCfg.PollInterval,
		outboxCfg.BatchSize,
		outboxCfg.RetryInterval,
	)

	a.httpTransport = httptransport.NewHTTPTransport(a.orderSvc)
	a.httpTransport.RegisterRoutes()
	a.grpcTransport = grpctransport.NewGRPCTransport(a.orderSvc)

	return a
}

func (a *App) mustNewPublisher(broker string) publisher {
	switch broker {
	case config.BrokerRabbitMQ:
		a.rabbitMqClient = rabbitmq.MustNewClient()

		return eventsrabbitmq.NewEventsRabbitMQRepository(a.rabbitMqClient)
	case config.BrokerKafka:
		a.kafkaPublisher = eventskafka.NewEventsKafkaRepository(config.LoadKafka().Brokers)

		return a.kafkaPublisher
	case config.BrokerNone:
		return logsink.NewEventsLogRepository(slog.Default())
	default:
		panic("unknown events broker: " + broker)
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var queueDone sync.WaitGroup
	queueDone.Add(1)
	go func() {
		defer queueDone.Done()
		slog.Info("Starting fulfillment dispatcher")
		if err := a.queue.Run(ctx, a.fulfillmentWorker.Handle); err != nil {
			slog.Error("Dispatcher error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting staleness sweeper")
		a.sweeper.Start(ctx)
	}()

	go func() {
		slog.Info("Starting outbox worker")
		a.outboxWorker.Start(ctx)
	}()

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.httpTransport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting gRPC server")
		if err := a.grpcTransport.Run(); err != nil {
			slog.Error("gRPC server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	a.gracefulShutdown(cancel, &queueDone)
}

// gracefulShutdown stops intake first, then the background workers, then
// closes the clients they depend on.
func (a *App) gracefulShutdown(cancel context.CancelFunc, queueDone *sync.WaitGroup) {
	ctx, cancelTimeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelTimeout()

	if err := a.httpTransport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.grpcTransport.Shutdown(ctx); err != nil {
		slog.Error("gRPC server shutdown error", "error", err)
	} else {
		slog.Info("gRPC server stopped gracefully")
	}

	a.sweeper.Stop()
	a.outboxWorker.Stop()
	cancel()

	waitDone := make(chan struct{})
	go func() {
		queueDone.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
		slog.Info("Dispatcher stopped gracefully")
	case <-ctx.Done():
		slog.Warn("Dispatcher did not stop in time")
	}

	if a.kafkaPublisher != nil {
		if err := a.kafkaPublisher.Close(); err != nil {
			slog.Error("Kafka writer close error", "error", err)
		}
	}

	if a.rabbitMqClient != nil {
		if err := a.rabbitMqClient.Close(); err != nil {
			slog.Error("RabbitMQ connection close error", "error", err)
		} else {
			slog.Info("RabbitMQ connection closed gracefully")
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			slog.Error("Redis connection close error", "error", err)
		}
	}

	if a.postgresClient != nil {
		a.postgresClient.Close()
		slog.Info("Database connection closed gracefully")
	}

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider connection closed gracefully")
	}

	select {
	case <-ctx.Done():
		slog.Warn("Shutdown timeout exceeded")
	default:
		slog.Info("Application shutdown complete")
	}
}
