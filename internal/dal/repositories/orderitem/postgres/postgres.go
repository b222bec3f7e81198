package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/microshop/orders/internal/dal/postgres"
	"github.com/microshop/orders/internal/service/models/orderitem"
)

// OrderItemDal represents the order item data access layer model.
type OrderItemDal struct {
	Id         int64     `db:"id"`
	OrderId    uuid.UUID `db:"order_id"`
	ProductId  int64     `db:"product_id"`
	Quantity   int       `db:"quantity"`
	PriceCents int64     `db:"price_cents"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// ToModel converts OrderItemDal to the service layer OrderItem model.
func (o *OrderItemDal) ToModel() *orderitem.OrderItem {
	return &orderitem.OrderItem{
		ID:         o.Id,
		OrderID:    o.OrderId,
		ProductID:  o.ProductId,
		Quantity:   o.Quantity,
		PriceCents: o.PriceCents,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

type PostgresOrderItemRepository struct {
	conn postgres.Querier
}

func NewPostgresOrderItemRepository(conn postgres.Querier) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
	}
}

// BulkInsert inserts the line items of an order in one statement and
// returns them with assigned ids.
func (r *PostgresOrderItemRepository) BulkInsert(
	ctx context.Context,
	items []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	if len(items) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	builder := sq.Insert("order_items").
		Columns(
			"order_id",
			"product_id",
			"quantity",
			"price_cents",
			"created_at",
			"updated_at",
		).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar)

	for _, item := range items {
		builder = builder.Values(
			item.OrderID,
			item.ProductID,
			item.Quantity,
			item.PriceCents,
			item.CreatedAt,
			item.UpdatedAt,
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert order items: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if err := rows.Scan(&items[i].ID); err != nil {
			return nil, fmt.Errorf("failed to scan order item id: %w", err)
		}
		i++
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}

// ListByOrderID returns all line items of one order in insertion order.
func (r *PostgresOrderItemRepository) ListByOrderID(
	ctx context.Context,
	orderID uuid.UUID,
) ([]orderitem.OrderItem, error) {
	query, args, err := sq.Select(
		"id",
		"order_id",
		"product_id",
		"quantity",
		"price_cents",
		"created_at",
		"updated_at",
	).
		From("order_items").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var result []orderitem.OrderItem
	for rows.Next() {
		var dal OrderItemDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.ProductId,
			&dal.Quantity,
			&dal.PriceCents,
			&dal.CreatedAt,
			&dal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		result = append(result, *dal.ToModel())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
