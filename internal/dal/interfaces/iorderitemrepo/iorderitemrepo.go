package iorderitemrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/microshop/orders/internal/service/models/orderitem"
)

// IOrderItemRepository is the persistent store for order line items.
// Line items are write-once: there are no update or delete operations.
type IOrderItemRepository interface {
	BulkInsert(ctx context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]orderitem.OrderItem, error)
}
