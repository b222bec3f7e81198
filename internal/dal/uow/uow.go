package uow

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/microshop/orders/internal/dal/interfaces/iorderitemrepo"
	"github.com/microshop/orders/internal/dal/interfaces/iorderrepo"
	"github.com/microshop/orders/internal/dal/interfaces/ioutboxrepo"
	"github.com/microshop/orders/internal/dal/interfaces/ireceiptrepo"
	"github.com/microshop/orders/internal/dal/postgres"
	orderrepo "github.com/microshop/orders/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/microshop/orders/internal/dal/repositories/orderitem/postgres"
	outboxrepo "github.com/microshop/orders/internal/dal/repositories/outbox/postgres"
	receiptrepo "github.com/microshop/orders/internal/dal/repositories/receipt/postgres"
)

// unitOfWork scopes repository writes to one pgx transaction so an order,
// its line items, its receipt and its outbox events commit atomically.
type unitOfWork struct {
	pool          *pgxpool.Pool
	tx            pgx.Tx
	orderRepo     iorderrepo.IOrderRepository
	orderItemRepo iorderitemrepo.IOrderItemRepository
	receiptRepo   ireceiptrepo.IReceiptRepository
	outboxRepo    ioutboxrepo.IOutboxRepository
}

//goland:noinspection GoExportedFuncWithUnexportedType
func NewUnitOfWork(client *postgres.Client) *unitOfWork {
	pool := client.Pool()

	return &unitOfWork{
		pool:          pool,
		orderRepo:     orderrepo.NewPostgresOrderRepository(pool),
		orderItemRepo: orderitemrepo.NewPostgresOrderItemRepository(pool),
		receiptRepo:   receiptrepo.NewPostgresReceiptRepository(pool),
		outboxRepo:    outboxrepo.NewOutboxRepository(pool),
	}
}

func (u *unitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return u.orderItemRepo
}

func (u *unitOfWork) ReceiptRepository() ireceiptrepo.IReceiptRepository {
	return u.receiptRepo
}

func (u *unitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.orderRepo = orderrepo.NewPostgresOrderRepository(tx)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(tx)
	u.receiptRepo = receiptrepo.NewPostgresReceiptRepository(tx)
	u.outboxRepo = outboxrepo.NewOutboxRepository(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

// Rollback is safe to defer: after a successful commit it is a no-op.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}

	return nil
}
