package receipt

import (
	"time"

	"github.com/google/uuid"
)

// Receipt is the external payment receipt reference, one per paid order.
// It is created exactly once when the order settles and never updated.
type Receipt struct {
	ID         int64     `json:"id"`
	OrderID    uuid.UUID `json:"orderId"`
	ReceiptURL string    `json:"receiptUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}
