package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/microshop/orders/internal/service/models/orderitem"
)

// Order is a purchase order with its persisted line items. Totals are
// computed once at creation from remote catalog prices and never change.
type Order struct {
	ID               uuid.UUID             `json:"id"`
	TotalAmountCents int64                 `json:"totalAmountCents"`
	TotalItems       int                   `json:"totalItems"`
	Status           Status                `json:"status"`
	Paid             bool                  `json:"paid"`
	PaidAt           *time.Time            `json:"paidAt"`
	StripeChargeID   *string               `json:"stripeChargeId,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	Items            []orderitem.OrderItem `json:"items,omitempty"`
}

// Details is the read model returned by create and find-one: the persisted
// order with its line items enriched with product display names resolved
// from the product service at read time. Names are never persisted, so the
// enriched items shadow the stored ones.
type Details struct {
	Order
	Items []orderitem.Detail `json:"items"`
}
