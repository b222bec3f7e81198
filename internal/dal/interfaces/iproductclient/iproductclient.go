package iproductclient

import (
	"context"

	"github.com/microshop/orders/internal/service/models/product"
)

// IProductValidationClient validates product ids against the remote
// product catalog and returns current name and price for each. The
// response may omit unknown ids; callers must detect the gap.
type IProductValidationClient interface {
	ValidateProducts(ctx context.Context, ids []int64) ([]product.Product, error)
}
