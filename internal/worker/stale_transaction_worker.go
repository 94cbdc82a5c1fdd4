package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/rajendrakhanal/schoolpay/internal/application/services"
)

// StaleTransactionWorker expires pending gateway transactions whose payment
// window has closed. Expiry also happens lazily on reads; the worker keeps
// the pending set small so abandoned checkouts do not linger.
type StaleTransactionWorker struct {
	gatewayService *services.GatewayService
	interval       time.Duration
	batchSize      int
	logger         *slog.Logger
}

func NewStaleTransactionWorker(
	gatewayService *services.GatewayService,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *StaleTransactionWorker {
	return &StaleTransactionWorker{
		gatewayService: gatewayService,
		interval:       interval,
		batchSize:      batchSize,
		logger:         logger,
	}
}

func (w *StaleTransactionWorker) Start(ctx context.Context) {
	w.logger.Info("stale transaction worker started",
		"interval", w.interval,
		"batch_size", w.batchSize,
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stale transaction worker stopping")
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error("stale transaction sweep failed", "error", err)
			}
		}
	}
}

func (w *StaleTransactionWorker) sweep(ctx context.Context) error {
	expired, err := w.gatewayService.ExpireStale(ctx, time.Now(), w.batchSize)
	if err != nil {
		return err
	}

	if expired > 0 {
		w.logger.Info("expired stale gateway transactions", "count", expired)
	}
	return nil
}
