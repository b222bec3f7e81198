package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/microshop/orders/internal/dal/rabbitmq"
	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderitem"
	"github.com/microshop/orders/internal/service/services/ordersvc"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

// Command routing keys bound to the orders exchange.
const (
	RouteCreateOrder    = "order.create"
	RouteFindAllOrders  = "order.find_all"
	RouteFindOneOrder   = "order.find_one"
	RouteChangeStatus   = "order.change_status"
	RoutePaymentSession = "order.payment.session"
	RoutePaidOrder      = "order.paid"
)

var commandRoutes = []string{
	RouteCreateOrder,
	RouteFindAllOrders,
	RouteFindOneOrder,
	RouteChangeStatus,
	RoutePaymentSession,
	RoutePaidOrder,
}

const defaultPageLimit = 10

// service represents the service layer interface.
type service interface {
	Create(ctx context.Context, items []orderitem.NewItem) (*order.Details, error)
	FindAll(ctx context.Context, query order.Query) (*order.Page, error)
	FindOne(ctx context.Context, id uuid.UUID) (*order.Details, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, status order.Status) (*order.Order, error)
	CreatePaymentSession(ctx context.Context, details *order.Details) (json.RawMessage, error)
	PaidOrder(ctx context.Context, cmd ordersvc.PaidOrderCommand) (*order.Order, error)
}

// Consumer is the inbound command transport: it consumes RPC-style
// commands from the bus, dispatches them by routing key and publishes the
// reply to the caller's reply queue.
type Consumer struct {
	client  *rabbitmq.Client
	service service
	queue   amqp.Queue
	stop    chan struct{}
	done    chan struct{}
}

// NewConsumer declares the command exchange and queue, binds every
// command routing key and returns the consumer.
func NewConsumer(client *rabbitmq.Client, service service) *Consumer {
	exchangeName := viper.GetString("rabbitmq.exchange")
	if exchangeName == "" {
		exchangeName = "orders"
	}
	queueName := viper.GetString("rabbitmq.queue")
	if queueName == "" {
		queueName = "orders.commands"
	}

	err := client.DeclareExchange(rabbitmq.DeclareExchangeConfig{
		Name:    exchangeName,
		Kind:    "direct",
		Durable: true,
	})
	if err != nil {
		panic(err)
	}

	queue, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    queueName,
		Durable: true,
	})
	if err != nil {
		panic(err)
	}

	for _, route := range commandRoutes {
		if err := client.BindQueue(queue.Name, route, exchangeName); err != nil {
			panic(err)
		}
	}

	return &Consumer{
		client:  client,
		service: service,
		queue:   queue,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run starts consuming commands until Stop is called or the channel
// closes. Commands are handled concurrently, each as an independent unit
// of work.
func (c *Consumer) Run(ctx context.Context) error {
	consumerTag := viper.GetString("rabbitmq.consumer_tag")
	if consumerTag == "" {
		consumerTag = "orders-svc"
	}

	msgs, err := c.client.Consume(rabbitmq.ConsumeConfig{
		Queue:    c.queue.Name,
		Consumer: consumerTag,
	})
	if err != nil {
		return err
	}

	slog.Info("Command consumer started", "queue", c.queue.Name, "consumer_tag", consumerTag)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(50)

	go func() {
		for {
			select {
			case <-c.stop:
				slog.Info("Stopping command consumer")
				close(c.done)

				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Info("Command channel closed")
					close(c.done)

					return
				}

				g.Go(func() error {
					return c.processMessage(gctx, msg)
				})
			}
		}
	}()

	<-c.done
	if err := g.Wait(); err != nil {
		slog.Error("Error processing commands", "error", err)
	}

	return nil
}

// Stop stops the consumer.
func (c *Consumer) Stop() {
	close(c.stop)
}

// processMessage handles one command delivery. Business failures are
// delivered to the caller as structured error replies and acknowledged;
// only reply-publishing failures requeue the delivery.
func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) error {
	ctx, span := otel.Tracer("consumer").Start(ctx, "Consumer."+msg.RoutingKey)
	defer span.End()

	result, err := c.dispatch(ctx, msg.RoutingKey, msg.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Command failed",
			"routing_key", msg.RoutingKey,
			"error", err,
		)
	}

	if msg.ReplyTo != "" {
		reply := encodeReply(result, err)
		pubErr := c.client.Publish("", msg.ReplyTo, amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: msg.CorrelationId,
			Body:          reply,
		})
		if pubErr != nil {
			slog.ErrorContext(ctx, "Failed to publish reply", "error", pubErr)
			if err := msg.Nack(false, true); err != nil {
				slog.Error("Failed to nack message", "error", err)
			}

			return pubErr
		}
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("Failed to ack message", "error", err)

		return err
	}

	return nil
}

type createOrderRequest struct {
	Items []orderitem.NewItem `json:"items"`
}

type findAllRequest struct {
	Status *order.Status `json:"status,omitempty"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
}

type findOneRequest struct {
	ID uuid.UUID `json:"id"`
}

type changeStatusRequest struct {
	ID     uuid.UUID    `json:"id"`
	Status order.Status `json:"status"`
}

// dispatch routes one decoded command to the service layer.
func (c *Consumer) dispatch(ctx context.Context, routingKey string, body []byte) (any, error) {
	switch routingKey {
	case RouteCreateOrder:
		var req createOrderRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ordersvc.ErrInvalidOrder, err)
		}

		return c.service.Create(ctx, req.Items)

	case RouteFindAllOrders:
		req := findAllRequest{Page: 1, Limit: defaultPageLimit}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ordersvc.ErrInvalidOrder, err)
		}

		return c.service.FindAll(ctx, order.Query{
			Status: req.Status,
			Page:   req.Page,
			Limit:  req.Limit,
		})

	case RouteFindOneOrder:
		var req findOneRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ordersvc.ErrInvalidOrder, err)
		}

		return c.service.FindOne(ctx, req.ID)

	case RouteChangeStatus:
		var req changeStatusRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ordersvc.ErrInvalidOrder, err)
		}

		return c.service.ChangeStatus(ctx, req.ID, req.Status)

	case RoutePaymentSession:
		var details order.Details
		if err := json.Unmarshal(body, &details); err != nil {
			return nil, fmt.Errorf("%w: %v", ordersvc.ErrInvalidOrder, err)
		}

		return c.service.CreatePaymentSession(ctx, &details)

	case RoutePaidOrder:
		var cmd ordersvc.PaidOrderCommand
		if err := json.Unmarshal(body, &cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", ordersvc.ErrInvalidOrder, err)
		}

		return c.service.PaidOrder(ctx, cmd)

	default:
		return nil, fmt.Errorf("unknown command %q", routingKey)
	}
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorReply struct {
	Error errorBody `json:"error"`
}

// statusCode maps a service error to the code carried in the structured
// error reply.
func statusCode(err error) int {
	switch {
	case errors.Is(err, ordersvc.ErrInvalidOrder),
		errors.Is(err, ordersvc.ErrProductNotFound):
		return 400
	case errors.Is(err, ordersvc.ErrOrderNotFound):
		return 404
	case errors.Is(err, ordersvc.ErrUpstream):
		return 502
	default:
		return 500
	}
}

// encodeReply serializes either the command result or a structured error.
func encodeReply(result any, err error) []byte {
	if err != nil {
		body, _ := json.Marshal(errorReply{Error: errorBody{
			Code:    statusCode(err),
			Message: err.Error(),
		}})

		return body
	}

	body, err := json.Marshal(result)
	if err != nil {
		fallback, _ := json.Marshal(errorReply{Error: errorBody{
			Code:    500,
			Message: "failed to encode reply",
		}})

		return fallback
	}

	return body
}
