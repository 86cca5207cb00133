package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/ezelpc/aurontek-routing/internal/config"
	"github.com/ezelpc/aurontek-routing/internal/observability"
	apperrors "github.com/ezelpc/aurontek-routing/pkg/util"
)

// Publisher emits routing outcomes onto the tickets exchange. The underlying
// channel is not safe for concurrent use, so all publishes serialize through
// one mutex; the connection is (re)established lazily.
type Publisher struct {
	cfg     config.BrokerConfig
	logger  *zap.Logger
	metrics *observability.Metrics

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher creates a lazy publisher; no connection is opened until the
// first publish.
func NewPublisher(cfg config.BrokerConfig, logger *zap.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{cfg: cfg, logger: logger, metrics: metrics}
}

// Publish marshals payload and sends it persistently under routingKey.
// Failures are logged and propagated: a dropped publish is a lost routing
// decision and must never be silent.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		p.metrics.Inc(observability.MetricPublishFailures)
		p.logger.Error("publish failed: broker unreachable",
			zap.String("routing_key", routingKey),
			zap.Error(err))
		return apperrors.NewUpstreamUnavailable("broker", err)
	}

	err = p.ch.PublishWithContext(ctx, p.cfg.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		// Drop the broken channel; the next publish redials.
		p.reset()
		p.metrics.Inc(observability.MetricPublishFailures)
		p.logger.Error("publish failed",
			zap.String("routing_key", routingKey),
			zap.Error(err))
		return apperrors.NewUpstreamUnavailable("broker", err)
	}
	return nil
}

// Connected reports whether a live broker connection is held.
func (p *Publisher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && !p.conn.IsClosed()
}

// Close releases the connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

func (p *Publisher) ensureChannel() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil {
		return nil
	}
	p.reset()

	conn, err := amqp.DialConfig(p.cfg.URL, amqp.Config{
		Heartbeat: p.cfg.Heartbeat(),
		Dial:      amqp.DefaultDial(p.cfg.ConnectTimeout()),
	})
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
