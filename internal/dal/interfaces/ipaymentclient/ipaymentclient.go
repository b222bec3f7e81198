package ipaymentclient

import (
	"context"
	"encoding/json"

	"github.com/microshop/orders/internal/service/models/payment"
)

// IPaymentGatewayClient opens a payment session with the remote payment
// service. The returned handle is opaque and passed through to the caller
// untouched.
type IPaymentGatewayClient interface {
	CreateSession(ctx context.Context, req payment.SessionRequest) (json.RawMessage, error)
}
