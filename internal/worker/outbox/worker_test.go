package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/microshop/orders/internal/service/models/outbox"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	exchange   string
	routingKey string
	msg        amqp.Publishing
}

type mockPublisher struct {
	published []publishedEvent
	err       error
}

func (m *mockPublisher) Publish(exchange, routingKey string, msg amqp.Publishing) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, publishedEvent{exchange, routingKey, msg})

	return nil
}

type retryUpdate struct {
	id          int64
	retryCount  int
	lastError   string
	nextRetryAt time.Time
}

type mockOutboxRepo struct {
	pending []outbox.Message
	deleted []int64
	retries []retryUpdate
	err     error
}

func (m *mockOutboxRepo) Insert(_ context.Context, msg outbox.Message) error {
	m.pending = append(m.pending, msg)

	return nil
}

func (m *mockOutboxRepo) GetPendingMessages(_ context.Context, limit int) ([]outbox.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.pending) > limit {
		return m.pending[:limit], nil
	}

	return m.pending, nil
}

func (m *mockOutboxRepo) Delete(_ context.Context, id int64) error {
	m.deleted = append(m.deleted, id)

	return nil
}

func (m *mockOutboxRepo) UpdateRetry(_ context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	m.retries = append(m.retries, retryUpdate{id, retryCount, lastError, nextRetryAt})

	return nil
}

func newTestWorker(repo *mockOutboxRepo, pub *mockPublisher) *Worker {
	return &Worker{
		outboxRepo:   repo,
		publisher:    pub,
		pollInterval: time.Second,
		batchSize:    100,
		stopCh:       make(chan struct{}),
	}
}

func TestProcessMessages_PublishesAndDeletes(t *testing.T) {
	repo := &mockOutboxRepo{pending: []outbox.Message{
		{ID: 1, ExchangeName: "orders.events", RoutingKey: "order.created", Payload: []byte(`{}`), ContentType: "application/json"},
		{ID: 2, ExchangeName: "orders.events", RoutingKey: "order.paid", Payload: []byte(`{}`), ContentType: "application/json"},
	}}
	pub := &mockPublisher{}
	w := newTestWorker(repo, pub)

	w.processMessages(context.Background())

	require.Len(t, pub.published, 2)
	assert.Equal(t, "orders.events", pub.published[0].exchange)
	assert.Equal(t, "order.created", pub.published[0].routingKey)
	assert.Equal(t, "application/json", pub.published[0].msg.ContentType)
	assert.Equal(t, []int64{1, 2}, repo.deleted)
	assert.Empty(t, repo.retries)
}

func TestProcessMessages_SchedulesRetryOnPublishFailure(t *testing.T) {
	repo := &mockOutboxRepo{pending: []outbox.Message{
		{ID: 7, RoutingKey: "order.created", RetryCount: 1},
	}}
	pub := &mockPublisher{err: assert.AnError}
	w := newTestWorker(repo, pub)

	before := time.Now()
	w.processMessages(context.Background())

	assert.Empty(t, repo.deleted, "failed event must stay in the outbox")
	require.Len(t, repo.retries, 1)
	assert.Equal(t, int64(7), repo.retries[0].id)
	assert.Equal(t, 2, repo.retries[0].retryCount)
	assert.Equal(t, assert.AnError.Error(), repo.retries[0].lastError)
	// 2^2 * 30 = 120 seconds of backoff
	assert.WithinDuration(t, before.Add(120*time.Second), repo.retries[0].nextRetryAt, 5*time.Second)
}

func TestProcessMessages_RespectsBatchSize(t *testing.T) {
	repo := &mockOutboxRepo{}
	for i := int64(1); i <= 5; i++ {
		repo.pending = append(repo.pending, outbox.Message{ID: i, RoutingKey: "order.created"})
	}
	pub := &mockPublisher{}
	w := newTestWorker(repo, pub)
	w.batchSize = 3

	w.processMessages(context.Background())

	assert.Len(t, pub.published, 3)
}

func TestProcessMessages_EmptyOutboxIsQuiet(t *testing.T) {
	repo := &mockOutboxRepo{}
	pub := &mockPublisher{}
	w := newTestWorker(repo, pub)

	w.processMessages(context.Background())

	assert.Empty(t, pub.published)
	assert.Empty(t, repo.deleted)
}

func TestStartStop(t *testing.T) {
	repo := &mockOutboxRepo{}
	pub := &mockPublisher{}
	w := newTestWorker(repo, pub)
	w.pollInterval = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
