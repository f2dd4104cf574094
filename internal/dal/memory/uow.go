package memory

import (
	"context"
	"errors"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ihistoryrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iproductrepo"
)

// UnitOfWork mirrors uow.UnitOfWork for the memory store.
type UnitOfWork struct {
	store *Store
	tx    *txState
}

// NewUnitOfWork creates a unit of work over the store.
func (s *Store) NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{store: s}
}

// Begin starts a transaction.
func (u *UnitOfWork) Begin(_ context.Context) error {
	if u.tx != nil {
		return errors.New("transaction already started")
	}
	u.tx = newTxState()

	return nil
}

// Commit applies staged writes and releases row locks.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return nil
	}
	u.store.commit(u.tx)
	u.tx = nil

	return nil
}

// Rollback discards staged writes and releases row locks.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	u.store.rollback(u.tx)
	u.tx = nil

	return nil
}

func (u *UnitOfWork) currentTx() *txState {
	if u == nil {
		return nil
	}

	return u.tx
}

func (u *UnitOfWork) ProductRepository() iproductrepo.IProductRepository {
	return &ProductRepository{store: u.store, uow: u}
}

func (u *UnitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return &OrderRepository{store: u.store, uow: u}
}

func (u *UnitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return &OrderItemRepository{store: u.store, uow: u}
}

func (u *UnitOfWork) HistoryRepository() ihistoryrepo.IHistoryRepository {
	return &HistoryRepository{store: u.store, uow: u}
}

func (u *UnitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return &OutboxRepository{store: u.store, uow: u}
}

// OutboxRepository returns an outbox repository outside any unit of work.
func (s *Store) OutboxRepository() *OutboxRepository {
	return &OutboxRepository{store: s}
}
