package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/ezelpc/aurontek-routing/internal/api/http"
	"github.com/ezelpc/aurontek-routing/internal/api/http/handlers"
	"github.com/ezelpc/aurontek-routing/internal/auth"
	"github.com/ezelpc/aurontek-routing/internal/broker"
	"github.com/ezelpc/aurontek-routing/internal/classifier"
	"github.com/ezelpc/aurontek-routing/internal/config"
	"github.com/ezelpc/aurontek-routing/internal/events"
	"github.com/ezelpc/aurontek-routing/internal/gateway"
	"github.com/ezelpc/aurontek-routing/internal/observability"
	"github.com/ezelpc/aurontek-routing/internal/persistence"
	"github.com/ezelpc/aurontek-routing/internal/scorer"
	"github.com/ezelpc/aurontek-routing/internal/service"
	"github.com/ezelpc/aurontek-routing/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	peers, err := gateway.New(cfg.Peers, logger)
	if err != nil {
		logger.Fatal("gateway misconfigured", zap.Error(err))
	}

	ticketClassifier := classifier.New(logger, metrics)
	selector := scorer.NewSelector(peers, cfg.Routing.StagnantAfter(), logger, metrics)

	publisher := broker.NewPublisher(cfg.Broker, logger, metrics)
	defer publisher.Close()

	var dedup service.DuplicateMarker
	if cfg.Routing.DedupEnabled {
		dedup = redis
	}

	routingService := service.NewRoutingService(service.RoutingDependencies{
		Classifier: ticketClassifier,
		Store:      peers,
		Selector:   selector,
		Publisher:  publisher,
		Dedup:      dedup,
		DedupTTL:   cfg.Routing.DedupTTL(),
		Logger:     logger,
		Metrics:    metrics,
	})

	consumer := broker.NewConsumer(cfg.Broker, events.RoutingKeyTicketCreated,
		routingService.ProcessTicketCreated, logger, metrics)
	consumerErr := worker.StartRoutingWorker(ctx, consumer, logger)

	authMiddleware := auth.NewServiceAuthMiddleware(
		auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes))

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, publisher, redis, metrics),
		Routing:        handlers.NewRoutingHandler(routingService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	logger.Info("routing engine started",
		zap.String("broker", cfg.Broker.URL),
		zap.String("usuarios_svc", cfg.Peers.UsuariosURL),
		zap.String("tickets_svc", cfg.Peers.TicketsURL),
		zap.String("addr", cfg.App.Addr()))

	exhausted := waitForShutdown(logger, consumerErr)

	cancel()
	// Run drains in-flight handlers before returning; its channel closes
	// after that, so new intake is stopped and nothing is mid-pipeline when
	// the HTTP surface and connections go down.
	<-consumerErr
	_ = app.Shutdown()

	if exhausted {
		return 1
	}
	return 0
}

// waitForShutdown blocks until a shutdown signal arrives or the consumer
// gives up. It reports whether the consumer exhausted its retry budget, which
// the process surfaces as a non-zero exit for supervisors to alert on.
func waitForShutdown(logger *zap.Logger, consumerErr <-chan error) bool {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err, ok := <-consumerErr:
		if ok && err != nil {
			logger.Error("consumer gave up, shutting down", zap.Error(err))
			return true
		}
		logger.Info("consumer finished, shutting down")
	}
	return false
}
