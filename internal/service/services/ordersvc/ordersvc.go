package ordersvc

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/microshop/orders/internal/dal/interfaces/iorderitemrepo"
	"github.com/microshop/orders/internal/dal/interfaces/iorderrepo"
	"github.com/microshop/orders/internal/dal/interfaces/ioutboxrepo"
	"github.com/microshop/orders/internal/dal/interfaces/ipaymentclient"
	"github.com/microshop/orders/internal/dal/interfaces/iproductclient"
	"github.com/microshop/orders/internal/dal/interfaces/ireceiptrepo"
	"github.com/microshop/orders/internal/dal/postgres"
	"github.com/microshop/orders/internal/dal/uow"
	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderitem"
	"github.com/microshop/orders/internal/service/models/outbox"
	"github.com/microshop/orders/internal/service/models/payment"
	"github.com/microshop/orders/internal/service/models/product"
	"github.com/microshop/orders/internal/service/models/receipt"
	"github.com/spf13/viper"
)

const paymentCurrency = "usd"

const (
	eventOrderCreated = "order.created"
	eventOrderPaid    = "order.paid"
)

// OrderService orchestrates the order lifecycle: creation against the
// remote product catalog, listing, reads, status transitions and payment
// settlement. It is the sole writer of order, line item and receipt state.
type OrderService struct {
	pgClient         *postgres.Client
	newUOW           func() unitOfWork
	orderRepo        iorderrepo.IOrderRepository
	orderItemRepo    iorderitemrepo.IOrderItemRepository
	products         iproductclient.IProductValidationClient
	payments         ipaymentclient.IPaymentGatewayClient
	outboxExchange   string
	outboxMaxRetries int
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	ReceiptRepository() ireceiptrepo.IReceiptRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		outboxExchange:   viper.GetString("rabbitmq.outbox.exchange"),
		outboxMaxRetries: viper.GetInt("rabbitmq.outbox.max_retries"),
	}
	if s.outboxExchange == "" {
		s.outboxExchange = "orders.events"
	}
	if s.outboxMaxRetries == 0 {
		s.outboxMaxRetries = 5
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithPostgresClient sets the Postgres client and the default repositories
// and unit-of-work factory built on it.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.pgClient = pgClient
		s.newUOW = func() unitOfWork { return uow.NewUnitOfWork(pgClient) }
	}
}

// WithRepositories sets the repositories used for reads outside a
// transaction.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRepositories(
	orderRepo iorderrepo.IOrderRepository,
	orderItemRepo iorderitemrepo.IOrderItemRepository,
) option {
	return func(s *OrderService) {
		s.orderRepo = orderRepo
		s.orderItemRepo = orderItemRepo
	}
}

// WithUnitOfWorkFactory overrides the transactional unit-of-work factory.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() unitOfWork) option {
	return func(s *OrderService) {
		s.newUOW = factory
	}
}

// WithProductClient sets the product validation client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithProductClient(client iproductclient.IProductValidationClient) option {
	return func(s *OrderService) {
		s.products = client
	}
}

// WithPaymentClient sets the payment gateway client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPaymentClient(client ipaymentclient.IPaymentGatewayClient) option {
	return func(s *OrderService) {
		s.payments = client
	}
}

// Create validates the requested products against the catalog, computes
// totals from the then-current remote prices and persists the order with
// its line items in one transaction. Client-supplied prices are never
// trusted. The result carries resolved product names.
func (s *OrderService) Create(ctx context.Context, items []orderitem.NewItem) (*order.Details, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrInvalidOrder)
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf(
				"%w: quantity must be positive for product %d",
				ErrInvalidOrder, item.ProductID,
			)
		}
	}

	productIDs := distinctProductIDs(items)
	products, err := s.resolveProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var totalAmount int64
	totalItems := 0
	orderItems := make([]orderitem.OrderItem, 0, len(items))
	for _, item := range items {
		p := products[item.ProductID]
		totalAmount += p.PriceCents * int64(item.Quantity)
		totalItems += item.Quantity
		orderItems = append(orderItems, orderitem.OrderItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceCents: p.PriceCents,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	newOrder := order.Order{
		ID:               uuid.New(),
		TotalAmountCents: totalAmount,
		TotalItems:       totalItems,
		Status:           order.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	inserted, err := work.OrderRepository().Insert(ctx, newOrder)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i := range orderItems {
		orderItems[i].OrderID = inserted.ID
	}
	orderItems, err = work.OrderItemRepository().BulkInsert(ctx, orderItems)
	if err != nil {
		return nil, fmt.Errorf("insert order items: %w", err)
	}
	inserted.Items = orderItems

	if err := s.enqueueEvent(ctx, work, eventOrderCreated, inserted); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return buildDetails(inserted, products), nil
}

// FindAll returns one page of orders with pagination metadata. Listing
// returns the raw persisted shape without product enrichment.
func (s *OrderService) FindAll(ctx context.Context, query order.Query) (*order.Page, error) {
	if query.Page < 1 || query.Limit < 1 {
		return nil, fmt.Errorf("%w: page and limit must be positive", ErrInvalidOrder)
	}

	total, err := s.orderRepo.Count(ctx, query.Status)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	data, err := s.orderRepo.Query(ctx, &query)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	if data == nil {
		data = []order.Order{}
	}

	return &order.Page{
		Data: data,
		Meta: order.PageMeta{
			Total:    total,
			Page:     query.Page,
			LastPage: int(math.Ceil(float64(total) / float64(query.Limit))),
		},
	}, nil
}

// FindOne fetches the order with its line items and re-validates every
// referenced product to resolve current display names. The extra round
// trip on every read trades latency for freshness of display data; prices
// stay the persisted snapshot.
func (s *OrderService) FindOne(ctx context.Context, id uuid.UUID) (*order.Details, error) {
	found, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}

	items, err := s.orderItemRepo.ListByOrderID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	found.Items = items

	productIDs := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.resolveProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	return buildDetails(found, products), nil
}

// ChangeStatus moves the order to the requested status. A request for the
// current status is an idempotent no-op: the order is returned unchanged
// with no storage write. There is no transition-validity matrix; any
// status may follow any other.
func (s *OrderService) ChangeStatus(ctx context.Context, id uuid.UUID, status order.Status) (*order.Order, error) {
	details, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	if details.Status == status {
		return &details.Order, nil
	}

	updated, err := s.orderRepo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}

	return updated, nil
}

// CreatePaymentSession asks the payment gateway for a checkout session for
// an already-fetched order view. No local state changes.
func (s *OrderService) CreatePaymentSession(ctx context.Context, details *order.Details) (json.RawMessage, error) {
	items := make([]payment.SessionItem, 0, len(details.Items))
	for _, item := range details.Items {
		items = append(items, payment.SessionItem{
			Name:       item.ProductName,
			PriceCents: item.PriceCents,
			Quantity:   item.Quantity,
		})
	}

	session, err := s.payments.CreateSession(ctx, payment.SessionRequest{
		OrderID:  details.ID.String(),
		Currency: paymentCurrency,
		Items:    items,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create payment session: %w", ErrUpstream, err)
	}

	return session, nil
}

// PaidOrderCommand is the settlement callback payload delivered by the
// payment gateway after a successful charge.
type PaidOrderCommand struct {
	OrderID         uuid.UUID `json:"orderId"`
	StripePaymentID string    `json:"stripePaymentId"`
	ReceiptURL      string    `json:"receiptUrl"`
}

// PaidOrder settles the order: status PAID, paid=true, paidAt set, the
// external charge reference stored and the receipt created, all in one
// transaction. The commit point is a conditional update on paid=false, so
// a redelivered settlement matches zero rows, creates no second receipt
// and returns the already-paid order.
func (s *OrderService) PaidOrder(ctx context.Context, cmd PaidOrderCommand) (*order.Order, error) {
	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	paidAt := time.Now()
	updated, err := work.OrderRepository().MarkPaid(ctx, cmd.OrderID, cmd.StripePaymentID, paidAt)
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	if updated == nil {
		existing, err := work.OrderRepository().GetByID(ctx, cmd.OrderID)
		if err != nil {
			return nil, fmt.Errorf("get order: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, cmd.OrderID)
		}
		if !existing.Paid {
			return nil, fmt.Errorf("order %s could not be marked paid", cmd.OrderID)
		}

		// Already settled by an earlier delivery; the receipt exists.
		return existing, nil
	}

	err = work.ReceiptRepository().Insert(ctx, receipt.Receipt{
		OrderID:    cmd.OrderID,
		ReceiptURL: cmd.ReceiptURL,
		CreatedAt:  paidAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create order receipt: %w", err)
	}

	if err := s.enqueueEvent(ctx, work, eventOrderPaid, updated); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return updated, nil
}

// resolveProducts validates the ids with the product service and fails
// the whole operation when any id is missing from the response.
func (s *OrderService) resolveProducts(ctx context.Context, ids []int64) (map[int64]product.Product, error) {
	products, err := s.products.ValidateProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: validate products: %w", ErrUpstream, err)
	}

	byID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: product %d is not available", ErrProductNotFound, id)
		}
	}

	return byID, nil
}

type orderEvent struct {
	OrderID          string    `json:"orderId"`
	Status           string    `json:"status"`
	TotalAmountCents int64     `json:"totalAmountCents"`
	TotalItems       int       `json:"totalItems"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// enqueueEvent rides an integration event on the surrounding transaction.
func (s *OrderService) enqueueEvent(ctx context.Context, work unitOfWork, routingKey string, o *order.Order) error {
	payload, err := json.Marshal(orderEvent{
		OrderID:          o.ID.String(),
		Status:           o.Status.String(),
		TotalAmountCents: o.TotalAmountCents,
		TotalItems:       o.TotalItems,
		OccurredAt:       o.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	now := time.Now()
	err = work.OutboxRepository().Insert(ctx, outbox.Message{
		ExchangeName: s.outboxExchange,
		RoutingKey:   routingKey,
		Payload:      payload,
		ContentType:  "application/json",
		MaxRetries:   s.outboxMaxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRetryAt:  now,
	})
	if err != nil {
		return fmt.Errorf("enqueue %s event: %w", routingKey, err)
	}

	return nil
}

func distinctProductIDs(items []orderitem.NewItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	return ids
}

func buildDetails(o *order.Order, products map[int64]product.Product) *order.Details {
	items := make([]orderitem.Detail, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderitem.Detail{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			PriceCents:  item.PriceCents,
			ProductName: products[item.ProductID].Name,
		})
	}

	return &order.Details{
		Order: *o,
		Items: items,
	}
}
