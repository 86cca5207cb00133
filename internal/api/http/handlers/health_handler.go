package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ezelpc/aurontek-routing/internal/broker"
	"github.com/ezelpc/aurontek-routing/internal/observability"
	"github.com/ezelpc/aurontek-routing/internal/persistence"
)

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	publisher   *broker.Publisher
	redis       *persistence.Redis
	metrics     *observability.Metrics
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, publisher *broker.Publisher, redis *persistence.Redis, metrics *observability.Metrics) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, publisher: publisher, redis: redis, metrics: metrics}
}

// Root reports the service banner.
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": h.serviceName,
		"version": h.version,
		"status":  "running",
	})
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports readiness with a dependency snapshot. The broker connection
// is lazy, so a disconnected publisher is reported but not failing: the
// consumer loop owns reconnection.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}

	if h.publisher != nil && h.publisher.Connected() {
		depStatus["rabbitmq"] = "connected"
	} else {
		depStatus["rabbitmq"] = "disconnected"
	}

	if err := h.redis.Ping(ctx); err != nil {
		depStatus["redis"] = err.Error()
	} else {
		depStatus["redis"] = "ok"
	}

	return c.JSON(fiber.Map{
		"status":       "healthy",
		"timestamp":    time.Now().UTC(),
		"dependencies": depStatus,
		"counters":     h.metrics.Snapshot(),
	})
}
