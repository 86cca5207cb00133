package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ezelpc/aurontek-routing/internal/config"
)

// Redis wraps the go-redis client. The routing engine keeps no durable state
// here; it only remembers recently routed ticket ids so obvious broker
// redeliveries can be suppressed. This is best effort, not exactly-once: when
// redis is down the engine simply reprocesses, which at-least-once allows.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// MarkRouted records that a ticket id entered the routing pipeline. It
// returns true when this is the first sighting within the TTL, false when the
// id was already marked (a likely redelivery).
func (r *Redis) MarkRouted(ctx context.Context, ticketID string, ttl time.Duration) (bool, error) {
	if r == nil || r.Client == nil {
		return true, errors.New("redis client not configured")
	}
	return r.Client.SetNX(ctx, "routing:seen:"+ticketID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
