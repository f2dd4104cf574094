package ordersvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/dalerrors"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ihistoryrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iproductrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/memory"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/dispatch"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/history"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrValidation marks input that can never succeed as submitted.
	ErrValidation = errors.New("validation failed")

	// ErrTransient is returned when storage conflicts outlast the retry budget.
	ErrTransient = errors.New("temporarily unavailable")
)

// OrderService is a service for creating and reading orders.
type OrderService struct {
	newUOW           func() unitOfWork
	dispatcher       dispatch.Dispatcher
	maxRetries       uint64
	retryBase        time.Duration
	batchConcurrency int
	eventsQueue      string
	now              func() time.Time
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ProductRepository() iproductrepo.IProductRepository
	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	HistoryRepository() ihistoryrepo.IHistoryRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		maxRetries:       3,
		retryBase:        20 * time.Millisecond,
		batchConcurrency: 8,
		eventsQueue:      "order-events",
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("ordersvc: no storage configured")
	}
	if s.dispatcher == nil {
		panic("ordersvc: no dispatcher configured")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// WithMemoryStore sets the in-memory store for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMemoryStore(store *memory.Store) option {
	return func(s *OrderService) {
		s.newUOW = func() unitOfWork {
			return store.NewUnitOfWork()
		}
	}
}

// WithDispatcher sets where created orders are handed off for fulfillment.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDispatcher(d dispatch.Dispatcher) option {
	return func(s *OrderService) {
		s.dispatcher = d
	}
}

// WithRetry sets how storage conflicts are retried.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRetry(maxRetries uint64, base time.Duration) option {
	return func(s *OrderService) {
		s.maxRetries = maxRetries
		if base > 0 {
			s.retryBase = base
		}
	}
}

// WithBatchConcurrency bounds how many orders of a batch are created at once.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBatchConcurrency(n int) option {
	return func(s *OrderService) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// WithEventsQueue sets the queue events are published to.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithEventsQueue(queue string) option {
	return func(s *OrderService) {
		if queue != "" {
			s.eventsQueue = queue
		}
	}
}

// WithClock overrides time.Now.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *OrderService) {
		s.now = now
	}
}

// BatchResult is the outcome of one order in a batch.
type BatchResult struct {
	Order order.Order
	Err   error
}

// CreateOrder validates the order, reserves stock for all of its items,
// stores it as PENDING and hands it to the dispatcher. Either every item is
// reserved or none is.
func (s *OrderService) CreateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := validateOrder(o); err != nil {
		return order.Order{}, err
	}

	lines := make([]product.ReservationLine, len(o.OrderItems))
	for i, item := range o.OrderItems {
		lines[i] = product.ReservationLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	lines = product.NormalizeLines(lines)

	var created order.Order
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		created, err = s.createOnce(ctx, o, lines)
		if errors.Is(err, dalerrors.ErrConflict) {
			slog.Warn("Storage conflict while creating order, retrying", "error", err)

			return retry.RetryableError(err)
		}

		return err
	})

	switch {
	case err == nil:
	case errors.Is(err, dalerrors.ErrConflict):
		return order.Order{}, fmt.Errorf("%w: %w", ErrTransient, err)
	case errors.Is(err, product.ErrNotFound):
		return order.Order{}, fmt.Errorf("%w: %w", ErrValidation, err)
	default:
		return order.Order{}, err
	}

	span.SetAttributes(attribute.Int64("order.id", created.ID))

	if err := s.dispatcher.Dispatch(ctx, created.ID, 0); err != nil {
		// the order is committed; the sweeper requeues stalled PENDING orders
		slog.Error("Failed to dispatch created order", "order_id", created.ID, "error", err)
	}

	slog.Info("Order created",
		"order_id", created.ID,
		"items", len(created.OrderItems),
		"total_price", created.TotalPrice.StringFixed(2),
	)

	return created, nil
}

func (s *OrderService) createOnce(
	ctx context.Context,
	o order.Order,
	lines []product.ReservationLine,
) (order.Order, error) {
	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, err
	}
	defer func() {
		if err := work.Rollback(); err != nil {
			slog.Error("Failed to rollback order creation", "error", err)
		}
	}()

	reserved, err := work.ProductRepository().Reserve(ctx, lines)
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to reserve stock: %w", err)
	}

	byID := make(map[int64]product.Product, len(reserved))
	for _, p := range reserved {
		byID[p.ID] = p
	}

	now := s.now()
	total := decimal.Zero
	items := make([]orderitem.OrderItem, len(o.OrderItems))
	for i, item := range o.OrderItems {
		p := byID[item.ProductID]
		items[i] = orderitem.OrderItem{
			ProductID:   item.ProductID,
			ProductName: p.Name,
			Quantity:    item.Quantity,
			UnitPrice:   p.Price,
			CreatedAt:   now,
		}
		total = total.Add(items[i].Subtotal())
	}

	o.ID = 0
	o.Status = status.Pending
	o.TotalPrice = total
	o.CreatedAt = now
	o.UpdatedAt = now
	o.LastTransitionAt = now
	o.OrderItems = nil

	created, err := work.OrderRepository().Insert(ctx, o)
	if err != nil {
		return order.Order{}, err
	}

	for i := range items {
		items[i].OrderID = created.ID
	}
	created.OrderItems, err = work.OrderItemRepository().BulkInsert(ctx, items)
	if err != nil {
		return order.Order{}, err
	}

	msg, err := outbox.NewOrderEvent(s.eventsQueue, outbox.EventOrderCreated, created.ID, outbox.OrderCreated{
		OrderID:    created.ID,
		Status:     created.Status,
		TotalPrice: created.TotalPrice,
		ItemCount:  len(created.OrderItems),
		CreatedAt:  created.CreatedAt,
	}, now)
	if err != nil {
		return order.Order{}, err
	}
	if err := work.OutboxRepository().Insert(ctx, msg); err != nil {
		return order.Order{}, err
	}

	if err := work.Commit(); err != nil {
		return order.Order{}, err
	}

	return created, nil
}

// BatchInsert creates every order independently. A failed order never affects
// the others; results are index-aligned with orders.
func (s *OrderService) BatchInsert(ctx context.Context, orders []order.Order) []BatchResult {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.BatchInsert")
	defer span.End()
	span.SetAttributes(attribute.Int("orders.count", len(orders)))

	results := make([]BatchResult, len(orders))

	g := new(errgroup.Group)
	g.SetLimit(s.batchConcurrency)
	for i := range orders {
		g.Go(func() error {
			created, err := s.CreateOrder(ctx, orders[i])
			results[i] = BatchResult{Order: created, Err: err}

			return nil
		})
	}
	_ = g.Wait()

	return results
}

func validateOrder(o order.Order) error {
	if len(o.OrderItems) == 0 {
		return fmt.Errorf("%w: order has no items", ErrValidation)
	}
	if o.CustomerName == "" || o.CustomerEmail == "" || o.DeliveryAddress == "" {
		return fmt.Errorf("%w: customer name, email and delivery address are required", ErrValidation)
	}

	for i, item := range o.OrderItems {
		if item.ProductID <= 0 {
			return fmt.Errorf("%w: item %d has no product", ErrValidation, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d has quantity %d", ErrValidation, i, item.Quantity)
		}
	}

	return nil
}

// GetOrders retrieves orders with their items.
func (s *OrderService) GetOrders(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error) {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.GetOrders")
	defer span.End()

	work := s.newUOW()

	orders, err := work.OrderRepository().Query(ctx, &filter)
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	orderItemQuery := &orderitem.QueryOrderItemsModel{}
	for _, o := range orders {
		orderItemQuery.OrderIds = append(orderItemQuery.OrderIds, o.ID)
	}
	orderItems, err := work.OrderItemRepository().Query(ctx, orderItemQuery)
	if err != nil {
		return nil, err
	}

	byOrder := make(map[int64][]orderitem.OrderItem, len(orders))
	for _, item := range orderItems {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		if items, ok := byOrder[orders[i].ID]; ok {
			orders[i].OrderItems = items
		}
	}

	return orders, nil
}

// GetOrder retrieves one order with its items.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (order.Order, error) {
	orders, err := s.GetOrders(ctx, order.QueryOrdersModel{Ids: []int64{id}})
	if err != nil {
		return order.Order{}, err
	}
	if len(orders) == 0 {
		return order.Order{}, fmt.Errorf("%w: %d", order.ErrNotFound, id)
	}

	return orders[0], nil
}

// ListDelayed returns DELAYED orders, most recent transition first.
func (s *OrderService) ListDelayed(ctx context.Context, limit, offset int) ([]order.Order, error) {
	return s.GetOrders(ctx, order.QueryOrdersModel{
		Statuses: []status.Status{status.Delayed},
		OrderBy:  order.RecentTransitionFirst,
		Limit:    limit,
		Offset:   offset,
	})
}

// GetHistory returns the transitions of an order in sequence order. History
// outlives its order.
func (s *OrderService) GetHistory(ctx context.Context, orderID int64) ([]history.Entry, error) {
	work := s.newUOW()

	entries, err := work.HistoryRepository().Query(ctx, &history.QueryHistoryModel{OrderIds: []int64{orderID}})
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}

	orders, err := work.OrderRepository().Query(ctx, &order.QueryOrdersModel{Ids: []int64{orderID}})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: %d", order.ErrNotFound, orderID)
	}

	return []history.Entry{}, nil
}

// DeleteOrder removes an order and its items. Reserved stock is not returned.
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.DeleteOrder")
	defer span.End()

	if err := s.newUOW().OrderRepository().Delete(ctx, id); err != nil {
		return err
	}

	slog.Info("Order deleted", "order_id", id)

	return nil
}
