package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderitem"
	"github.com/microshop/orders/internal/service/services/ordersvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockService implements the service interface, recording the arguments
// of the last dispatched call.
type mockService struct {
	createItems []orderitem.NewItem
	findAllQ    *order.Query
	findOneID   uuid.UUID
	statusID    uuid.UUID
	status      order.Status
	sessionIn   *order.Details
	paidCmd     *ordersvc.PaidOrderCommand
	err         error
}

func (m *mockService) Create(_ context.Context, items []orderitem.NewItem) (*order.Details, error) {
	m.createItems = items
	if m.err != nil {
		return nil, m.err
	}

	return &order.Details{Order: order.Order{ID: uuid.New(), Status: order.StatusPending}}, nil
}

func (m *mockService) FindAll(_ context.Context, query order.Query) (*order.Page, error) {
	m.findAllQ = &query
	if m.err != nil {
		return nil, m.err
	}

	return &order.Page{Data: []order.Order{}}, nil
}

func (m *mockService) FindOne(_ context.Context, id uuid.UUID) (*order.Details, error) {
	m.findOneID = id
	if m.err != nil {
		return nil, m.err
	}

	return &order.Details{Order: order.Order{ID: id}}, nil
}

func (m *mockService) ChangeStatus(_ context.Context, id uuid.UUID, status order.Status) (*order.Order, error) {
	m.statusID = id
	m.status = status
	if m.err != nil {
		return nil, m.err
	}

	return &order.Order{ID: id, Status: status}, nil
}

func (m *mockService) CreatePaymentSession(_ context.Context, details *order.Details) (json.RawMessage, error) {
	m.sessionIn = details
	if m.err != nil {
		return nil, m.err
	}

	return json.RawMessage(`{"url":"https://pay.example/session"}`), nil
}

func (m *mockService) PaidOrder(_ context.Context, cmd ordersvc.PaidOrderCommand) (*order.Order, error) {
	m.paidCmd = &cmd
	if m.err != nil {
		return nil, m.err
	}

	return &order.Order{ID: cmd.OrderID, Status: order.StatusPaid, Paid: true}, nil
}

func newTestConsumer(svc service) *Consumer {
	return &Consumer{service: svc}
}

func TestDispatch_CreateOrder(t *testing.T) {
	svc := &mockService{}
	c := newTestConsumer(svc)

	body := []byte(`{"items":[{"productId":1,"quantity":2}]}`)
	result, err := c.dispatch(context.Background(), RouteCreateOrder, body)

	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, svc.createItems, 1)
	assert.Equal(t, int64(1), svc.createItems[0].ProductID)
	assert.Equal(t, 2, svc.createItems[0].Quantity)
}

func TestDispatch_FindAllAppliesDefaults(t *testing.T) {
	svc := &mockService{}
	c := newTestConsumer(svc)

	_, err := c.dispatch(context.Background(), RouteFindAllOrders, []byte(`{}`))

	require.NoError(t, err)
	require.NotNil(t, svc.findAllQ)
	assert.Equal(t, 1, svc.findAllQ.Page)
	assert.Equal(t, defaultPageLimit, svc.findAllQ.Limit)
	assert.Nil(t, svc.findAllQ.Status)
}

func TestDispatch_FindAllWithStatusFilter(t *testing.T) {
	svc := &mockService{}
	c := newTestConsumer(svc)

	_, err := c.dispatch(context.Background(), RouteFindAllOrders, []byte(`{"status":"PAID","page":2,"limit":5}`))

	require.NoError(t, err)
	require.NotNil(t, svc.findAllQ)
	require.NotNil(t, svc.findAllQ.Status)
	assert.Equal(t, order.StatusPaid, *svc.findAllQ.Status)
	assert.Equal(t, 2, svc.findAllQ.Page)
	assert.Equal(t, 5, svc.findAllQ.Limit)
}

func TestDispatch_FindAllRejectsUnknownStatus(t *testing.T) {
	c := newTestConsumer(&mockService{})

	_, err := c.dispatch(context.Background(), RouteFindAllOrders, []byte(`{"status":"SHIPPED"}`))

	require.ErrorIs(t, err, ordersvc.ErrInvalidOrder)
}

func TestDispatch_FindOne(t *testing.T) {
	svc := &mockService{}
	c := newTestConsumer(svc)
	id := uuid.New()

	result, err := c.dispatch(context.Background(), RouteFindOneOrder, []byte(fmt.Sprintf(`{"id":%q}`, id)))

	require.NoError(t, err)
	assert.Equal(t, id, svc.findOneID)
	assert.NotNil(t, result)
}

func TestDispatch_ChangeStatus(t *testing.T) {
	svc := &mockService{}
	c := newTestConsumer(svc)
	id := uuid.New()

	_, err := c.dispatch(context.Background(), RouteChangeStatus, []byte(fmt.Sprintf(`{"id":%q,"status":"CANCELLED"}`, id)))

	require.NoError(t, err)
	assert.Equal(t, id, svc.statusID)
	assert.Equal(t, order.StatusCancelled, svc.status)
}

func TestDispatch_PaidOrder(t *testing.T) {
	svc := &mockService{}
	c := newTestConsumer(svc)
	id := uuid.New()

	body := []byte(fmt.Sprintf(`{"orderId":%q,"stripePaymentId":"ch_1","receiptUrl":"http://r"}`, id))
	_, err := c.dispatch(context.Background(), RoutePaidOrder, body)

	require.NoError(t, err)
	require.NotNil(t, svc.paidCmd)
	assert.Equal(t, id, svc.paidCmd.OrderID)
	assert.Equal(t, "ch_1", svc.paidCmd.StripePaymentID)
	assert.Equal(t, "http://r", svc.paidCmd.ReceiptURL)
}

func TestDispatch_MalformedBody(t *testing.T) {
	c := newTestConsumer(&mockService{})

	for _, route := range commandRoutes {
		_, err := c.dispatch(context.Background(), route, []byte(`{not json`))
		require.ErrorIs(t, err, ordersvc.ErrInvalidOrder, "route %s", route)
	}
}

func TestDispatch_UnknownRoute(t *testing.T) {
	c := newTestConsumer(&mockService{})

	_, err := c.dispatch(context.Background(), "order.unknown", []byte(`{}`))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ordersvc.ErrInvalidOrder)
}

func TestStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid order", ordersvc.ErrInvalidOrder, 400},
		{"product not found", ordersvc.ErrProductNotFound, 400},
		{"order not found", ordersvc.ErrOrderNotFound, 404},
		{"upstream failure", ordersvc.ErrUpstream, 502},
		{"wrapped upstream", fmt.Errorf("create session: %w", ordersvc.ErrUpstream), 502},
		{"unclassified", assert.AnError, 500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusCode(tc.err))
		})
	}
}

func TestEncodeReply_Success(t *testing.T) {
	body := encodeReply(map[string]string{"ok": "yes"}, nil)

	assert.JSONEq(t, `{"ok":"yes"}`, string(body))
}

func TestEncodeReply_StructuredError(t *testing.T) {
	err := fmt.Errorf("%w: order 42", ordersvc.ErrOrderNotFound)

	body := encodeReply(nil, err)

	var reply errorReply
	require.NoError(t, json.Unmarshal(body, &reply))
	assert.Equal(t, 404, reply.Error.Code)
	assert.Contains(t, reply.Error.Message, "order 42")
}
