package ordersvc

import "errors"

var (
	// ErrInvalidOrder rejects malformed input before any remote call.
	ErrInvalidOrder = errors.New("invalid order request")

	// ErrProductNotFound fails the whole operation when a referenced
	// product is absent from the validation response.
	ErrProductNotFound = errors.New("product not found")

	// ErrOrderNotFound signals that the requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUpstream marks a product or payment service call that timed out
	// or failed. It is retryable for the caller; this service never
	// retries on its own.
	ErrUpstream = errors.New("upstream service failure")
)
