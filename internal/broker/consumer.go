package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ezelpc/aurontek-routing/internal/config"
	"github.com/ezelpc/aurontek-routing/internal/observability"
	apperrors "github.com/ezelpc/aurontek-routing/pkg/util"
)

// Handler processes one event body. It runs concurrently with the receive
// loop; the message is acknowledged as soon as the handler is dispatched
// (at-least-once delivery: a crash mid-handler can duplicate work).
type Handler func(ctx context.Context, body []byte)

// Consumer maintains a durable subscription on the tickets topic exchange
// and reconnects with linear backoff on transport failure.
//
// State machine: Disconnected -> Connecting -> Bound -> Consuming, back to
// Disconnected on transport error, Stopped on context cancellation.
type Consumer struct {
	cfg        config.BrokerConfig
	routingKey string
	handler    Handler
	logger     *zap.Logger
	metrics    *observability.Metrics
	sem        *semaphore.Weighted
	inflight   sync.WaitGroup

	// Seams for the retry loop; tests script sessions without a broker.
	session func(ctx context.Context) (bool, error)
	backoff func(attempt int) time.Duration
}

// NewConsumer creates a consumer bound to one routing key.
func NewConsumer(cfg config.BrokerConfig, routingKey string, handler Handler, logger *zap.Logger, metrics *observability.Metrics) *Consumer {
	poolSize := cfg.HandlerPoolSize
	if poolSize <= 0 {
		poolSize = 8
	}
	c := &Consumer{
		cfg:        cfg,
		routingKey: routingKey,
		handler:    handler,
		logger:     logger,
		metrics:    metrics,
		sem:        semaphore.NewWeighted(int64(poolSize)),
	}
	c.session = c.consumeOnce
	c.backoff = BackoffDelay
	return c
}

// BackoffDelay returns the reconnect delay after the given consecutive
// failure count: min(5 * attempt, 30) seconds.
func BackoffDelay(attempt int) time.Duration {
	seconds := 5 * attempt
	if seconds > 30 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

// Run consumes until the context is cancelled or the retry ceiling is hit.
// A session that reached the consuming state resets the failure counter.
func (c *Consumer) Run(ctx context.Context) error {
	failures := 0
	for {
		consumed, err := c.session(ctx)
		if ctx.Err() != nil {
			// Stopped: new intake halted, in-flight handlers drain.
			c.inflight.Wait()
			c.logger.Info("consumer stopped")
			return nil
		}
		if consumed {
			failures = 0
		}
		failures++
		c.metrics.Inc(observability.MetricBrokerReconnects)
		if failures > c.cfg.MaxConnectAttempts {
			c.inflight.Wait()
			return apperrors.NewConsumerExhausted(failures-1, err)
		}
		delay := c.backoff(failures)
		c.logger.Warn("broker connection lost, reconnecting",
			zap.Int("attempt", failures),
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.inflight.Wait()
			c.logger.Info("consumer stopped")
			return nil
		}
	}
}

// consumeOnce runs one connect/bind/consume session. It returns whether the
// session reached the consuming state, and the transport error that ended it.
func (c *Consumer) consumeOnce(ctx context.Context) (bool, error) {
	conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{
		Heartbeat: c.cfg.Heartbeat(),
		Dial:      amqp.DefaultDial(c.cfg.ConnectTimeout()),
	})
	if err != nil {
		return false, err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return false, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return false, err
	}

	// Declaring and binding are idempotent: safe to repeat on reconnect.
	queue, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return false, err
	}
	if err := ch.QueueBind(queue.Name, c.routingKey, c.cfg.Exchange, false, nil); err != nil {
		return false, err
	}

	// One unacknowledged message at a time bounds memory and concurrency.
	if err := ch.Qos(1, 0, false); err != nil {
		return false, err
	}

	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return false, err
	}

	c.logger.Info("consuming",
		zap.String("queue", queue.Name),
		zap.String("exchange", c.cfg.Exchange),
		zap.String("routing_key", c.routingKey))

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return true, errors.New("connection closed")
			}
			return true, amqpErr
		case delivery, ok := <-deliveries:
			if !ok {
				return true, errors.New("delivery channel closed")
			}
			c.dispatch(ctx, delivery)
		}
	}
}

// dispatch validates, hands off and acknowledges one delivery. Poison
// messages are acknowledged and dropped so they never block the queue.
func (c *Consumer) dispatch(ctx context.Context, delivery amqp.Delivery) {
	if !json.Valid(delivery.Body) {
		c.metrics.Inc(observability.MetricPoisonMessages)
		c.logger.Error("poison message dropped",
			zap.String("routing_key", delivery.RoutingKey),
			zap.Int("size", len(delivery.Body)))
		_ = delivery.Ack(false)
		return
	}

	// Blocking on the pool here backpressures the receive loop instead of
	// spawning unbounded handlers under burst load.
	if err := c.sem.Acquire(ctx, 1); err != nil {
		_ = delivery.Nack(false, true)
		return
	}

	body := delivery.Body
	handlerCtx := context.WithoutCancel(ctx)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer c.sem.Release(1)
		c.handler(handlerCtx, body)
	}()

	// Acked after dispatch, not after completion: delivery is at-least-once.
	_ = delivery.Ack(false)
	c.metrics.Inc(observability.MetricEventsConsumed)
}
