package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/microshop/orders/internal/dal/postgres"
	"github.com/microshop/orders/internal/service/models/receipt"
)

// PostgresReceiptRepository stores payment receipts. The order_id unique
// constraint backs up the service-level settle-once guarantee.
type PostgresReceiptRepository struct {
	conn postgres.Querier
}

func NewPostgresReceiptRepository(conn postgres.Querier) *PostgresReceiptRepository {
	return &PostgresReceiptRepository{
		conn: conn,
	}
}

// Insert persists the receipt of a settled order.
func (r *PostgresReceiptRepository) Insert(ctx context.Context, rec receipt.Receipt) error {
	query, args, err := sq.Insert("order_receipts").
		Columns(
			"order_id",
			"receipt_url",
			"created_at",
		).
		Values(
			rec.OrderID,
			rec.ReceiptURL,
			rec.CreatedAt,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert order receipt: %w", err)
	}

	return nil
}
