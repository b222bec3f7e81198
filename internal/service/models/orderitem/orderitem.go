package orderitem

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is a line item within an order. The price is a point-in-time
// snapshot of the catalog price at order creation and is never re-fetched.
// Line items are immutable once created.
type OrderItem struct {
	ID         int64     `json:"id"`
	OrderID    uuid.UUID `json:"orderId"`
	ProductID  int64     `json:"productId"`
	Quantity   int       `json:"quantity"`
	PriceCents int64     `json:"priceCents"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NewItem is the caller-supplied shape for one requested line item. Prices
// are deliberately absent: they are resolved from the product service.
type NewItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// Detail is a line item enriched with the product display name resolved at
// read time.
type Detail struct {
	ProductID   int64  `json:"productId"`
	Quantity    int    `json:"quantity"`
	PriceCents  int64  `json:"priceCents"`
	ProductName string `json:"productName"`
}
