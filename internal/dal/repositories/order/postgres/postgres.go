package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/microshop/orders/internal/dal/postgres"
	"github.com/microshop/orders/internal/service/models/order"
)

// OrderDal represents the order data access layer model.
type OrderDal struct {
	Id               uuid.UUID  `db:"id"`
	TotalAmountCents int64      `db:"total_amount_cents"`
	TotalItems       int        `db:"total_items"`
	Status           string     `db:"status"`
	Paid             bool       `db:"paid"`
	PaidAt           *time.Time `db:"paid_at"`
	StripeChargeId   *string    `db:"stripe_charge_id"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// ToModel converts OrderDal to the service layer Order model.
func (o *OrderDal) ToModel() (*order.Order, error) {
	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		ID:               o.Id,
		TotalAmountCents: o.TotalAmountCents,
		TotalItems:       o.TotalItems,
		Status:           status,
		Paid:             o.Paid,
		PaidAt:           o.PaidAt,
		StripeChargeID:   o.StripeChargeId,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}, nil
}

var orderColumns = []string{
	"id",
	"total_amount_cents",
	"total_items",
	"status",
	"paid",
	"paid_at",
	"stripe_charge_id",
	"created_at",
	"updated_at",
}

type PostgresOrderRepository struct {
	conn postgres.Querier
}

func NewPostgresOrderRepository(conn postgres.Querier) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
	}
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var dal OrderDal
	err := row.Scan(
		&dal.Id,
		&dal.TotalAmountCents,
		&dal.TotalItems,
		&dal.Status,
		&dal.Paid,
		&dal.PaidAt,
		&dal.StripeChargeId,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return dal.ToModel()
}

// Insert persists a single order row. The id and timestamps are assigned
// by the service before the write.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (*order.Order, error) {
	query, args, err := sq.Insert("orders").
		Columns(orderColumns...).
		Values(
			o.ID,
			o.TotalAmountCents,
			o.TotalItems,
			o.Status.String(),
			o.Paid,
			o.PaidAt,
			o.StripeChargeID,
			o.CreatedAt,
			o.UpdatedAt,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	return &o, nil
}

// Query retrieves one page of orders under the optional status filter, in
// insertion order.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.Query) ([]order.Order, error) {
	builder := sq.Select(orderColumns...).
		From("orders").
		OrderBy("created_at ASC, id ASC").
		PlaceholderFormat(sq.Dollar)

	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": filter.Status.String()})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset()))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		model, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		result = append(result, *model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// Count returns the number of orders under the optional status filter.
func (r *PostgresOrderRepository) Count(ctx context.Context, status *order.Status) (int64, error) {
	builder := sq.Select("count(*)").
		From("orders").
		PlaceholderFormat(sq.Dollar)

	if status != nil {
		builder = builder.Where(sq.Eq{"status": status.String()})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}

	return total, nil
}

// GetByID returns the order or (nil, nil) when it does not exist.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	query, args, err := sq.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	model, err := scanOrder(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return model, nil
}

// UpdateStatus sets the status and returns the updated row, or (nil, nil)
// when the order does not exist.
func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status) (*order.Order, error) {
	query, args, err := sq.Update("orders").
		Set("status", status.String()).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(orderColumns, ", ")).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update query: %w", err)
	}

	model, err := scanOrder(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	return model, nil
}

// MarkPaid settles the order with a compare-and-swap on paid=false, so a
// replayed settlement matches zero rows instead of overwriting the first
// one. Returns (nil, nil) when no row transitioned.
func (r *PostgresOrderRepository) MarkPaid(
	ctx context.Context,
	id uuid.UUID,
	stripeChargeID string,
	paidAt time.Time,
) (*order.Order, error) {
	query, args, err := sq.Update("orders").
		Set("status", order.StatusPaid.String()).
		Set("paid", true).
		Set("paid_at", paidAt).
		Set("stripe_charge_id", stripeChargeID).
		Set("updated_at", paidAt).
		Where(sq.Eq{"id": id, "paid": false}).
		Suffix("RETURNING " + strings.Join(orderColumns, ", ")).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update query: %w", err)
	}

	model, err := scanOrder(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	return model, nil
}
