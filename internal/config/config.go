package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the routing engine.
type Config struct {
	App     AppConfig
	Broker  BrokerConfig
	Peers   PeersConfig
	Redis   RedisConfig
	Logger  LoggerConfig
	Auth    AuthConfig
	Routing RoutingConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// BrokerConfig holds AMQP connection and consumption values.
type BrokerConfig struct {
	URL                   string
	Exchange              string
	Queue                 string
	HeartbeatSeconds      int
	ConnectTimeoutSeconds int
	MaxConnectAttempts    int
	HandlerPoolSize       int
}

// PeersConfig locates the peer services and carries the shared credential.
type PeersConfig struct {
	UsuariosURL         string
	TicketsURL          string
	ServiceToken        string
	ServiceName         string
	ReadTimeoutSeconds  int
	WriteTimeoutSeconds int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines parameters for service-to-service tokens.
type AuthConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
}

// RoutingConfig tunes operational knobs of the routing pipeline. Scoring
// weights are design constants and deliberately not configurable.
type RoutingConfig struct {
	StagnantAfterHours int
	DedupTTLMinutes    int
	DedupEnabled       bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "routing-svc"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3005"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Broker: BrokerConfig{
			URL:                   getEnv("RABBITMQ_URL", "amqp://localhost:5672"),
			Exchange:              getEnv("BROKER_EXCHANGE", "tickets"),
			Queue:                 getEnv("BROKER_QUEUE", "ia_tickets"),
			HeartbeatSeconds:      getEnvAsInt("BROKER_HEARTBEAT_SECONDS", 10),
			ConnectTimeoutSeconds: getEnvAsInt("BROKER_CONNECT_TIMEOUT_SECONDS", 10),
			MaxConnectAttempts:    getEnvAsInt("BROKER_MAX_CONNECT_ATTEMPTS", 10),
			HandlerPoolSize:       getEnvAsInt("BROKER_HANDLER_POOL_SIZE", 8),
		},
		Peers: PeersConfig{
			UsuariosURL:         getEnv("USUARIOS_SERVICE_URL", "http://localhost:3001"),
			TicketsURL:          getEnv("TICKETS_SERVICE_URL", "http://localhost:3002"),
			ServiceToken:        os.Getenv("SERVICE_TOKEN"),
			ServiceName:         getEnv("SERVICE_NAME", "routing-svc"),
			ReadTimeoutSeconds:  getEnvAsInt("PEER_READ_TIMEOUT_SECONDS", 10),
			WriteTimeoutSeconds: getEnvAsInt("PEER_WRITE_TIMEOUT_SECONDS", 15),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("AUTH_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 60),
		},
		Routing: RoutingConfig{
			StagnantAfterHours: getEnvAsInt("ROUTING_STAGNANT_AFTER_HOURS", 48),
			DedupTTLMinutes:    getEnvAsInt("ROUTING_DEDUP_TTL_MINUTES", 60),
			DedupEnabled:       getEnvAsBool("ROUTING_DEDUP_ENABLED", true),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Heartbeat returns the broker heartbeat interval.
func (b BrokerConfig) Heartbeat() time.Duration {
	return time.Duration(b.HeartbeatSeconds) * time.Second
}

// ConnectTimeout returns the bounded connection-attempt timeout.
func (b BrokerConfig) ConnectTimeout() time.Duration {
	return time.Duration(b.ConnectTimeoutSeconds) * time.Second
}

// ReadTimeout returns the peer read timeout.
func (p PeersConfig) ReadTimeout() time.Duration {
	return time.Duration(p.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the peer write timeout.
func (p PeersConfig) WriteTimeout() time.Duration {
	return time.Duration(p.WriteTimeoutSeconds) * time.Second
}

// StagnantAfter returns the staleness window for active tickets.
func (r RoutingConfig) StagnantAfter() time.Duration {
	return time.Duration(r.StagnantAfterHours) * time.Hour
}

// DedupTTL returns how long a routed ticket id is remembered.
func (r RoutingConfig) DedupTTL() time.Duration {
	return time.Duration(r.DedupTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
