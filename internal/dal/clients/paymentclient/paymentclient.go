package paymentclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/microshop/orders/internal/dal/rabbitmq"
	"github.com/microshop/orders/internal/service/models/payment"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

// Client is the remote-call wrapper around the payment service. It opens a
// checkout session in a single blocking request with no intrinsic retry.
type Client struct {
	bus        *rabbitmq.Client
	exchange   string
	routingKey string
	timeout    time.Duration
}

// NewClient creates a payment gateway client on the shared bus client.
func NewClient(bus *rabbitmq.Client) *Client {
	routingKey := viper.GetString("clients.payment.routing_key")
	if routingKey == "" {
		routingKey = "payment.session.create"
	}

	timeoutSeconds := viper.GetInt("clients.payment.timeout_seconds")
	if timeoutSeconds == 0 {
		timeoutSeconds = 30
	}

	return &Client{
		bus:        bus,
		exchange:   viper.GetString("clients.payment.exchange"),
		routingKey: routingKey,
		timeout:    time.Duration(timeoutSeconds) * time.Second,
	}
}

type errorReply struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession asks the payment service for a checkout session and passes
// the session handle through untouched. The shape of the handle belongs to
// the payment service, not to this core.
func (c *Client) CreateSession(ctx context.Context, req payment.SessionRequest) (json.RawMessage, error) {
	ctx, span := otel.Tracer("payment-client").Start(ctx, "Client.CreateSession")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	raw, err := c.bus.Request(ctx, c.exchange, c.routingKey, body)
	if err != nil {
		return nil, fmt.Errorf("failed to call payment service: %w", err)
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("malformed payment service response")
	}

	var reject errorReply
	if err := json.Unmarshal(raw, &reject); err == nil && reject.Error != nil {
		return nil, fmt.Errorf("payment service rejected the session: %s", reject.Error.Message)
	}

	return raw, nil
}
