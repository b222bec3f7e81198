package ireceiptrepo

import (
	"context"

	"github.com/microshop/orders/internal/service/models/receipt"
)

// IReceiptRepository stores payment receipts, one per order.
type IReceiptRepository interface {
	Insert(ctx context.Context, r receipt.Receipt) error
}
