package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/ezelpc/aurontek-routing/internal/broker"
)

// StartRoutingWorker runs the broker consumer in its own goroutine. The
// returned channel yields the terminal error when the consumer exhausts its
// reconnect budget, so the process supervisor can alert and exit; it closes
// without a value on clean shutdown.
func StartRoutingWorker(ctx context.Context, consumer *broker.Consumer, logger *zap.Logger) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := consumer.Run(ctx); err != nil {
			logger.Error("routing consumer exhausted", zap.Error(err))
			errCh <- err
		}
	}()
	return errCh
}
