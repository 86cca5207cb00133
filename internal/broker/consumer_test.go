package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ezelpc/aurontek-routing/internal/config"
	"github.com/ezelpc/aurontek-routing/internal/observability"
	apperrors "github.com/ezelpc/aurontek-routing/pkg/util"
)

func TestBackoffDelayLinearWithCeiling(t *testing.T) {
	want := []time.Duration{
		5 * time.Second, 10 * time.Second, 15 * time.Second,
		20 * time.Second, 25 * time.Second, 30 * time.Second,
		30 * time.Second, 30 * time.Second, 30 * time.Second,
		30 * time.Second,
	}
	for i, expected := range want {
		assert.Equal(t, expected, BackoffDelay(i+1), "attempt %d", i+1)
	}
}

func TestRunExhaustsRetryBudget(t *testing.T) {
	metrics := observability.NewMetrics()
	consumer := newTestConsumer(func(context.Context, []byte) {}, metrics)
	consumer.cfg.MaxConnectAttempts = 2
	consumer.backoff = func(int) time.Duration { return 0 }

	calls := 0
	consumer.session = func(context.Context) (bool, error) {
		calls++
		return false, errors.New("dial tcp: connection refused")
	}

	err := consumer.Run(context.Background())
	require.True(t, apperrors.HasCode(err, apperrors.CodeConsumerExhausted))
	assert.Equal(t, 3, calls, "two retries after the first failure, then give up")
	assert.Equal(t, 2, apperrors.ToDomainError(err).Details["attempts"])
	assert.Equal(t, int64(3), metrics.Snapshot()[observability.MetricBrokerReconnects])
}

func TestRunResetsFailuresAfterConsuming(t *testing.T) {
	metrics := observability.NewMetrics()
	consumer := newTestConsumer(func(context.Context, []byte) {}, metrics)
	consumer.cfg.MaxConnectAttempts = 2
	consumer.backoff = func(int) time.Duration { return 0 }

	// The third session reaches the consuming state before dropping; the
	// failure counter restarts there instead of carrying the earlier streak.
	calls := 0
	consumer.session = func(context.Context) (bool, error) {
		calls++
		return calls == 3, errors.New("connection reset by peer")
	}

	err := consumer.Run(context.Background())
	require.True(t, apperrors.HasCode(err, apperrors.CodeConsumerExhausted))
	assert.Equal(t, 5, calls, "budget must restart after a consuming session")
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	metrics := observability.NewMetrics()
	consumer := newTestConsumer(func(context.Context, []byte) {}, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	consumer.session = func(context.Context) (bool, error) {
		cancel()
		return true, errors.New("connection closed")
	}

	assert.NoError(t, consumer.Run(ctx))
}

func TestRunDrainsInflightHandlersBeforeReturning(t *testing.T) {
	metrics := observability.NewMetrics()
	release := make(chan struct{})
	consumer := newTestConsumer(func(context.Context, []byte) { <-release }, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	consumer.session = func(sessionCtx context.Context) (bool, error) {
		consumer.dispatch(sessionCtx, amqp.Delivery{
			Acknowledger: &fakeAcknowledger{},
			RoutingKey:   "ticket.created",
			Body:         []byte(`{}`),
		})
		cancel()
		return true, nil
	}

	done := make(chan struct{})
	go func() {
		_ = consumer.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Run returned while a handler was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the handler finished")
	}
}

// fakeAcknowledger records ack/nack outcomes for a synthetic delivery.
type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, _ bool) error {
	return nil
}

func newTestConsumer(handler Handler, metrics *observability.Metrics) *Consumer {
	cfg := config.BrokerConfig{
		Queue:              "ia_tickets",
		Exchange:           "tickets",
		MaxConnectAttempts: 10,
		HandlerPoolSize:    2,
	}
	return NewConsumer(cfg, "ticket.created", handler, zap.NewNop(), metrics)
}

func TestDispatchDropsPoisonMessage(t *testing.T) {
	metrics := observability.NewMetrics()
	handled := false
	consumer := newTestConsumer(func(context.Context, []byte) { handled = true }, metrics)

	ack := &fakeAcknowledger{}
	consumer.dispatch(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   "ticket.created",
		Body:         []byte("{not json"),
	})

	assert.True(t, ack.acked, "poison messages are acked so they never redeliver")
	assert.False(t, handled)
	assert.Equal(t, int64(1), metrics.Snapshot()[observability.MetricPoisonMessages])
}

func TestDispatchAcksAfterHandoff(t *testing.T) {
	metrics := observability.NewMetrics()
	got := make(chan []byte, 1)
	consumer := newTestConsumer(func(_ context.Context, body []byte) { got <- body }, metrics)

	ack := &fakeAcknowledger{}
	consumer.dispatch(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   "ticket.created",
		Body:         []byte(`{"ticket":{"id":"t-1"}}`),
	})
	consumer.inflight.Wait()

	select {
	case body := <-got:
		assert.JSONEq(t, `{"ticket":{"id":"t-1"}}`, string(body))
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}
	assert.True(t, ack.acked)
	assert.Equal(t, int64(1), metrics.Snapshot()[observability.MetricEventsConsumed])
}

func TestDispatchNacksWhenShuttingDown(t *testing.T) {
	metrics := observability.NewMetrics()
	consumer := newTestConsumer(func(context.Context, []byte) {}, metrics)

	// Exhaust the handler pool, then cancel: the next acquire must fail and
	// the delivery must requeue.
	require.NoError(t, consumer.sem.Acquire(context.Background(), 2))
	defer consumer.sem.Release(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ack := &fakeAcknowledger{}
	consumer.dispatch(ctx, amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   "ticket.created",
		Body:         []byte(`{}`),
	})

	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
	assert.False(t, ack.acked)
}
