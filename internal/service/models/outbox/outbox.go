package outbox

import (
	"time"
)

// Message is an integration event waiting to be published to RabbitMQ. It
// is inserted in the same transaction as the state change it announces.
type Message struct {
	ID           int64
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}
