package iorderrepo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/microshop/orders/internal/service/models/order"
)

// IOrderRepository is the persistent store for orders. Lookups that match
// no row return (nil, nil); callers decide whether absence is an error.
type IOrderRepository interface {
	// Insert persists a new order. The id and timestamps are assigned by
	// the caller before the write.
	Insert(ctx context.Context, o order.Order) (*order.Order, error)

	// Query returns one page of orders matching the filter, in insertion
	// order, without line items.
	Query(ctx context.Context, filter *order.Query) ([]order.Order, error)

	// Count returns the number of orders under the optional status filter.
	Count(ctx context.Context, status *order.Status) (int64, error)

	// GetByID returns the order without line items.
	GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error)

	// UpdateStatus sets the order status and returns the updated row.
	UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status) (*order.Order, error)

	// MarkPaid settles the order only if it is not paid yet: a conditional
	// update on paid=false. It returns nil when no row transitioned, which
	// means the order is absent or already paid.
	MarkPaid(ctx context.Context, id uuid.UUID, stripeChargeID string, paidAt time.Time) (*order.Order, error)
}
