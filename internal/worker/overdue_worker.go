package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/rajendrakhanal/schoolpay/internal/application/services"
)

// OverdueWorker periodically flags invoices whose due date has passed while
// a balance remains. The sweep is a single idempotent UPDATE, so overlapping
// runs and concurrent payments are safe.
type OverdueWorker struct {
	invoiceService *services.InvoiceService
	interval       time.Duration
	logger         *slog.Logger
}

func NewOverdueWorker(
	invoiceService *services.InvoiceService,
	interval time.Duration,
	logger *slog.Logger,
) *OverdueWorker {
	return &OverdueWorker{
		invoiceService: invoiceService,
		interval:       interval,
		logger:         logger,
	}
}

func (w *OverdueWorker) Start(ctx context.Context) {
	w.logger.Info("overdue worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("overdue worker stopping")
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error("overdue sweep failed", "error", err)
			}
		}
	}
}

func (w *OverdueWorker) sweep(ctx context.Context) error {
	marked, err := w.invoiceService.MarkOverdueBatch(ctx, time.Now())
	if err != nil {
		return err
	}

	if marked > 0 {
		w.logger.Info("marked invoices overdue", "count", marked)
	}
	return nil
}
