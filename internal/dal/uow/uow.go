package uow

import (
	"context"
	"fmt"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ihistoryrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iproductrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	historyrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/history/postgres"
	orderrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/orderitem/postgres"
	outboxrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/outbox/postgres"
	productrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/product/postgres"
	"github.com/jackc/pgx/v5"
)

// UnitOfWork groups the repositories over one connection. Before Begin they
// run on the pool; after Begin every repository shares the transaction.
type UnitOfWork struct {
	client *postgres.Client
	ctx    context.Context
	tx     pgx.Tx

	productRepo   iproductrepo.IProductRepository
	orderRepo     iorderrepo.IOrderRepository
	orderItemRepo iorderitemrepo.IOrderItemRepository
	historyRepo   ihistoryrepo.IHistoryRepository
	outboxRepo    ioutboxrepo.IOutboxRepository
}

// NewUnitOfWork creates a unit of work bound to the pool.
func NewUnitOfWork(client *postgres.Client) *UnitOfWork {
	u := &UnitOfWork{client: client}
	u.bind(client.Pool())

	return u
}

func (u *UnitOfWork) bind(conn postgres.GenericConn) {
	u.productRepo = productrepo.NewProductRepository(conn)
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(conn)
	u.historyRepo = historyrepo.NewHistoryRepository(conn)
	u.outboxRepo = outboxrepo.NewOutboxRepository(conn)
}

func (u *UnitOfWork) ProductRepository() iproductrepo.IProductRepository {
	return u.productRepo
}

func (u *UnitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *UnitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return u.orderItemRepo
}

func (u *UnitOfWork) HistoryRepository() ihistoryrepo.IHistoryRepository {
	return u.historyRepo
}

func (u *UnitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

// Begin starts a read committed transaction and rebinds the repositories to it.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	tx, err := u.client.Pool().BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", postgres.MapError(err))
	}

	u.ctx = ctx
	u.tx = tx
	u.bind(tx)

	return nil
}

// Commit commits the transaction. Rollback after Commit is a no-op.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return nil
	}

	tx := u.tx
	u.tx = nil
	u.bind(u.client.Pool())

	if err := tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", postgres.MapError(err))
	}

	return nil
}

// Rollback aborts the transaction if one is open.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	tx := u.tx
	u.tx = nil
	u.bind(u.client.Pool())

	// the request context may already be cancelled; the rollback must still run
	return tx.Rollback(context.WithoutCancel(u.ctx))
}
