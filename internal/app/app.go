package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/microshop/orders/internal/dal/clients/paymentclient"
	"github.com/microshop/orders/internal/dal/clients/productclient"
	"github.com/microshop/orders/internal/dal/postgres"
	"github.com/microshop/orders/internal/dal/rabbitmq"
	orderrepo "github.com/microshop/orders/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/microshop/orders/internal/dal/repositories/orderitem/postgres"
	outboxrepo "github.com/microshop/orders/internal/dal/repositories/outbox/postgres"
	"github.com/microshop/orders/internal/otel"
	"github.com/microshop/orders/internal/service/services/ordersvc"
	"github.com/microshop/orders/internal/transport/consumer"
	httptransport "github.com/microshop/orders/internal/transport/http"
	"github.com/microshop/orders/internal/worker/outbox"
)

// App represents the application.
type App struct {
	orderSvc        *ordersvc.OrderService
	commandConsumer *consumer.Consumer
	outboxWorker    *outbox.Worker
	transport       *httptransport.HTTPTransport
	postgresClient  *postgres.Client
	rabbitClient    *rabbitmq.Client
	otelController  *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithRepositories(
			orderrepo.NewPostgresOrderRepository(postgresClient.Pool()),
			orderitemrepo.NewPostgresOrderItemRepository(postgresClient.Pool()),
		),
		ordersvc.WithProductClient(productclient.NewClient(rabbitClient)),
		ordersvc.WithPaymentClient(paymentclient.NewClient(rabbitClient)),
	)

	commandConsumer := consumer.NewConsumer(rabbitClient, orderSvc)

	outboxWorker := outbox.NewWorker(
		outboxrepo.NewOutboxRepository(postgresClient.Pool()),
		rabbitClient,
	)

	transport := httptransport.NewHTTPTransport(postgresClient.Ping)
	transport.RegisterRoutes()

	return &App{
		orderSvc:        orderSvc,
		commandConsumer: commandConsumer,
		outboxWorker:    outboxWorker,
		transport:       transport,
		postgresClient:  postgresClient,
		rabbitClient:    rabbitClient,
		otelController:  otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		slog.Info("Starting command consumer")
		if err := a.commandConsumer.Run(ctx); err != nil {
			slog.Error("Command consumer error", "error", err)
		}
	}()

	go func() {
		a.outboxWorker.Start(ctx)
	}()

	go func() {
		slog.Info("Starting ops HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")
	cancel()

	a.commandConsumer.Stop()
	a.outboxWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.transport.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Tracer shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
