package payment

// SessionItem is one payment line in the generic shape the payment
// service expects.
type SessionItem struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price"`
	Quantity   int    `json:"quantity"`
}

// SessionRequest asks the payment service to open a checkout session for
// an order.
type SessionRequest struct {
	OrderID  string        `json:"orderId"`
	Currency string        `json:"currency"`
	Items    []SessionItem `json:"items"`
}
