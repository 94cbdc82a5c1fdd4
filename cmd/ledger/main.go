package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rajendrakhanal/schoolpay/internal/application/services"
	"github.com/rajendrakhanal/schoolpay/internal/config"
	"github.com/rajendrakhanal/schoolpay/internal/infrastructure/gateway"
	"github.com/rajendrakhanal/schoolpay/internal/infrastructure/persistence/postgres"
	"github.com/rajendrakhanal/schoolpay/internal/interfaces/rest/handlers"
	"github.com/rajendrakhanal/schoolpay/internal/interfaces/rest/middleware"
	"github.com/rajendrakhanal/schoolpay/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting ledger service",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
		"gateway", cfg.Gateway.Name,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	invoiceRepo := postgres.NewInvoiceRepository(db.Pool)
	paymentRepo := postgres.NewPaymentRepository(db.Pool)
	planRepo := postgres.NewInstallmentRepository(db.Pool)
	txnRepo := postgres.NewGatewayTransactionRepository(db.Pool)
	seqRepo := postgres.NewSequenceRepository(db.Pool)

	signer := gateway.NewSigner(cfg.Gateway.SecretKey)

	invoiceService := services.NewInvoiceService(invoiceRepo, seqRepo, db.Pool)
	paymentService := services.NewPaymentService(invoiceRepo, paymentRepo, planRepo, seqRepo, db.Pool)
	installmentService := services.NewInstallmentService(invoiceRepo, paymentRepo, planRepo, paymentService, db.Pool)
	gatewayService := services.NewGatewayService(invoiceRepo, txnRepo, paymentService, signer, cfg.Gateway, db.Pool, logger)

	h := handlers.NewHandlers(
		invoiceService,
		paymentService,
		installmentService,
		gatewayService,
		logger,
	)

	mux := http.NewServeMux()
	h.Routes(mux)

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	overdueWorker := worker.NewOverdueWorker(
		invoiceService,
		cfg.Worker.Interval,
		logger,
	)

	staleWorker := worker.NewStaleTransactionWorker(
		gatewayService,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go overdueWorker.Start(workerCtx)
	go staleWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
