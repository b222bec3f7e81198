package productclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/microshop/orders/internal/dal/rabbitmq"
	"github.com/microshop/orders/internal/service/models/product"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

// Client is the remote-call wrapper around the product service. Validation
// is an RPC round trip over the bus with a hard timeout.
type Client struct {
	bus        *rabbitmq.Client
	exchange   string
	routingKey string
	timeout    time.Duration
}

// NewClient creates a product validation client on the shared bus client.
func NewClient(bus *rabbitmq.Client) *Client {
	routingKey := viper.GetString("clients.product.routing_key")
	if routingKey == "" {
		routingKey = "product.validate"
	}

	timeoutSeconds := viper.GetInt("clients.product.timeout_seconds")
	if timeoutSeconds == 0 {
		timeoutSeconds = 30
	}

	return &Client{
		bus:        bus,
		exchange:   viper.GetString("clients.product.exchange"),
		routingKey: routingKey,
		timeout:    time.Duration(timeoutSeconds) * time.Second,
	}
}

type validateProductsRequest struct {
	Ids []int64 `json:"ids"`
}

type errorReply struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ValidateProducts asks the product service for current name and price of
// each id. Responses that are neither a product list nor a structured
// error envelope are rejected as malformed.
func (c *Client) ValidateProducts(ctx context.Context, ids []int64) ([]product.Product, error) {
	ctx, span := otel.Tracer("product-client").Start(ctx, "Client.ValidateProducts")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(validateProductsRequest{Ids: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal validate request: %w", err)
	}

	raw, err := c.bus.Request(ctx, c.exchange, c.routingKey, body)
	if err != nil {
		return nil, fmt.Errorf("failed to call product service: %w", err)
	}

	var reject errorReply
	if err := json.Unmarshal(raw, &reject); err == nil && reject.Error != nil {
		return nil, fmt.Errorf("product service rejected the batch: %s", reject.Error.Message)
	}

	var products []product.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("malformed product service response: %w", err)
	}

	for _, p := range products {
		if p.ID == 0 || p.Name == "" {
			return nil, fmt.Errorf("malformed product service response: incomplete product record %+v", p)
		}
	}

	return products, nil
}
