package ordersvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/microshop/orders/internal/dal/interfaces/iorderitemrepo"
	"github.com/microshop/orders/internal/dal/interfaces/iorderrepo"
	"github.com/microshop/orders/internal/dal/interfaces/ioutboxrepo"
	"github.com/microshop/orders/internal/dal/interfaces/ireceiptrepo"
	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderitem"
	"github.com/microshop/orders/internal/service/models/outbox"
	"github.com/microshop/orders/internal/service/models/payment"
	"github.com/microshop/orders/internal/service/models/product"
	"github.com/microshop/orders/internal/service/models/receipt"
)

// mockOrderRepo implements iorderrepo.IOrderRepository for testing.
type mockOrderRepo struct {
	byID            map[uuid.UUID]*order.Order
	inserted        []order.Order
	queryResult     []order.Order
	countResult     int64
	lastQuery       *order.Query
	lastCountStatus *order.Status
	markPaidResult  *order.Order
	markPaidCalls   int
	updateCalls     int
	err             error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{byID: make(map[uuid.UUID]*order.Order)}
}

func (m *mockOrderRepo) Insert(_ context.Context, o order.Order) (*order.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.inserted = append(m.inserted, o)

	return &o, nil
}

func (m *mockOrderRepo) Query(_ context.Context, filter *order.Query) ([]order.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.lastQuery = filter

	return m.queryResult, nil
}

func (m *mockOrderRepo) Count(_ context.Context, status *order.Status) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.lastCountStatus = status

	return m.countResult, nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	found, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	clone := *found

	return &clone, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status order.Status) (*order.Order, error) {
	m.updateCalls++
	found, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	clone := *found
	clone.Status = status
	clone.UpdatedAt = time.Now()

	return &clone, nil
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, _ uuid.UUID, _ string, _ time.Time) (*order.Order, error) {
	m.markPaidCalls++
	if m.err != nil {
		return nil, m.err
	}

	return m.markPaidResult, nil
}

// mockOrderItemRepo implements iorderitemrepo.IOrderItemRepository.
type mockOrderItemRepo struct {
	byOrderID map[uuid.UUID][]orderitem.OrderItem
	inserted  []orderitem.OrderItem
	err       error
}

func newMockOrderItemRepo() *mockOrderItemRepo {
	return &mockOrderItemRepo{byOrderID: make(map[uuid.UUID][]orderitem.OrderItem)}
}

func (m *mockOrderItemRepo) BulkInsert(_ context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range items {
		items[i].ID = int64(len(m.inserted) + i + 1)
	}
	m.inserted = append(m.inserted, items...)

	return items, nil
}

func (m *mockOrderItemRepo) ListByOrderID(_ context.Context, orderID uuid.UUID) ([]orderitem.OrderItem, error) {
	if m.err != nil {
		return nil, m.err
	}

	return m.byOrderID[orderID], nil
}

// mockReceiptRepo implements ireceiptrepo.IReceiptRepository.
type mockReceiptRepo struct {
	inserted []receipt.Receipt
	err      error
}

func (m *mockReceiptRepo) Insert(_ context.Context, r receipt.Receipt) error {
	if m.err != nil {
		return m.err
	}
	m.inserted = append(m.inserted, r)

	return nil
}

// mockOutboxRepo implements ioutboxrepo.IOutboxRepository.
type mockOutboxRepo struct {
	inserted []outbox.Message
	err      error
}

func (m *mockOutboxRepo) Insert(_ context.Context, msg outbox.Message) error {
	if m.err != nil {
		return m.err
	}
	m.inserted = append(m.inserted, msg)

	return nil
}

func (m *mockOutboxRepo) GetPendingMessages(_ context.Context, _ int) ([]outbox.Message, error) {
	return nil, nil
}

func (m *mockOutboxRepo) Delete(_ context.Context, _ int64) error {
	return nil
}

func (m *mockOutboxRepo) UpdateRetry(_ context.Context, _ int64, _ int, _ string, _ time.Time) error {
	return nil
}

// mockUnitOfWork implements the unitOfWork interface without touching a
// database; Begin/Commit/Rollback only count invocations.
type mockUnitOfWork struct {
	orderRepo     *mockOrderRepo
	orderItemRepo *mockOrderItemRepo
	receiptRepo   *mockReceiptRepo
	outboxRepo    *mockOutboxRepo
	beginErr      error
	begins        int
	commits       int
	rollbacks     int
}

func (m *mockUnitOfWork) Begin(_ context.Context) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	m.begins++

	return nil
}

func (m *mockUnitOfWork) Commit(_ context.Context) error {
	m.commits++

	return nil
}

func (m *mockUnitOfWork) Rollback(_ context.Context) error {
	m.rollbacks++

	return nil
}

func (m *mockUnitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return m.orderRepo
}

func (m *mockUnitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return m.orderItemRepo
}

func (m *mockUnitOfWork) ReceiptRepository() ireceiptrepo.IReceiptRepository {
	return m.receiptRepo
}

func (m *mockUnitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return m.outboxRepo
}

// mockProductClient implements the product validation client. Unknown ids
// are silently omitted from the response, matching the upstream contract.
type mockProductClient struct {
	products map[int64]product.Product
	calls    [][]int64
	err      error
}

func (m *mockProductClient) ValidateProducts(_ context.Context, ids []int64) ([]product.Product, error) {
	m.calls = append(m.calls, ids)
	if m.err != nil {
		return nil, m.err
	}

	result := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			result = append(result, p)
		}
	}

	return result, nil
}

// mockPaymentClient implements the payment gateway client.
type mockPaymentClient struct {
	response    json.RawMessage
	lastRequest *payment.SessionRequest
	err         error
}

func (m *mockPaymentClient) CreateSession(_ context.Context, req payment.SessionRequest) (json.RawMessage, error) {
	m.lastRequest = &req
	if m.err != nil {
		return nil, m.err
	}

	return m.response, nil
}

type testHarness struct {
	svc       *OrderService
	uow       *mockUnitOfWork
	orderRepo *mockOrderRepo
	itemRepo  *mockOrderItemRepo
	products  *mockProductClient
	payments  *mockPaymentClient
}

func newTestHarness() *testHarness {
	orderRepo := newMockOrderRepo()
	itemRepo := newMockOrderItemRepo()
	work := &mockUnitOfWork{
		orderRepo:     orderRepo,
		orderItemRepo: itemRepo,
		receiptRepo:   &mockReceiptRepo{},
		outboxRepo:    &mockOutboxRepo{},
	}
	products := &mockProductClient{products: make(map[int64]product.Product)}
	payments := &mockPaymentClient{response: json.RawMessage(`{"url":"https://pay.example/session"}`)}

	svc := MustNewOrderService(
		WithUnitOfWorkFactory(func() unitOfWork { return work }),
		WithRepositories(orderRepo, itemRepo),
		WithProductClient(products),
		WithPaymentClient(payments),
	)

	return &testHarness{
		svc:       svc,
		uow:       work,
		orderRepo: orderRepo,
		itemRepo:  itemRepo,
		products:  products,
		payments:  payments,
	}
}
