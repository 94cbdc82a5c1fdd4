package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rajendrakhanal/schoolpay/internal/application"
	"github.com/rajendrakhanal/schoolpay/internal/config"
	"github.com/rajendrakhanal/schoolpay/internal/domain"
	"github.com/rajendrakhanal/schoolpay/internal/infrastructure/gateway"
	"github.com/rajendrakhanal/schoolpay/internal/infrastructure/persistence/postgres"
)

// amountTolerance absorbs float formatting differences between the
// gateway's total_amount and ours. It is not a business tolerance.
var amountTolerance = decimal.NewFromFloat(0.01)

// InitiateResult is what the caller needs to redirect the payer to the
// gateway. The redirect itself happens after commit, outside any
// transaction held here.
type InitiateResult struct {
	TransactionUUID string
	TotalAmount     decimal.Decimal
	ProductCode     string
	Signature       string
	ExpiresAt       time.Time
}

// CallbackResult is the typed outcome of a callback delivery. Signature
// failure, amount mismatch, expiry and non-complete gateway status are
// results, not errors: the transaction is parked in a terminal state and
// the gateway gets a well-formed response either way.
type CallbackResult struct {
	TransactionUUID  string
	Status           domain.GatewayTxnStatus
	Message          string
	AlreadyProcessed bool
	PaymentID        *string
}

func (r *CallbackResult) Succeeded() bool {
	return r.Status == domain.TxnSuccess
}

// GatewayService manages out-of-band payment gateway transactions:
// initiation, signature verification, idempotent callback processing and
// expiry.
type GatewayService struct {
	invoiceRepo    *postgres.InvoiceRepository
	txnRepo        *postgres.GatewayTransactionRepository
	paymentService *PaymentService
	signer         *gateway.Signer
	cfg            config.GatewayConfig
	db             *pgxpool.Pool
	logger         *slog.Logger
}

func NewGatewayService(
	invoiceRepo *postgres.InvoiceRepository,
	txnRepo *postgres.GatewayTransactionRepository,
	paymentService *PaymentService,
	signer *gateway.Signer,
	cfg config.GatewayConfig,
	db *pgxpool.Pool,
	logger *slog.Logger,
) *GatewayService {
	return &GatewayService{
		invoiceRepo:    invoiceRepo,
		txnRepo:        txnRepo,
		paymentService: paymentService,
		signer:         signer,
		cfg:            cfg,
		db:             db,
		logger:         logger,
	}
}

// Initiate creates a pending gateway transaction for an invoice. Any prior
// pending transaction for the same (invoice, gateway) pair is expired
// first, so at most one stays open. Only local state is touched; the caller
// performs the remote redirect after this returns.
func (s *GatewayService) Initiate(ctx context.Context, cmd InitiateGatewayCommand) (*InitiateResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	inv, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, cmd.InvoiceID)
	if err != nil {
		if errors.Is(err, postgres.ErrInvoiceNotFound) {
			return nil, domain.NewNotFoundError("invoice", cmd.InvoiceID)
		}
		return nil, application.NewInternalError(err)
	}

	if inv.Status == domain.InvoiceCancelled {
		return nil, domain.NewInvalidStateError("invoice", inv.ID, string(inv.Status))
	}
	if !cmd.Amount.IsPositive() {
		return nil, domain.NewInvalidAmountError(cmd.Amount)
	}
	if cmd.Amount.GreaterThan(inv.Balance) {
		return nil, domain.NewAmountExceedsBalanceError(cmd.Amount, inv.Balance)
	}

	prior, err := s.txnRepo.FindPending(ctx, tx, inv.ID, s.cfg.Name)
	if err == nil {
		if err := prior.MarkExpired(); err != nil {
			return nil, err
		}
		if err := s.txnRepo.Update(ctx, tx, prior); err != nil {
			return nil, application.NewInternalError(err)
		}
	} else if !errors.Is(err, postgres.ErrTransactionNotFound) {
		return nil, application.NewInternalError(err)
	}

	now := time.Now()
	transactionUUID := uuid.New().String()
	total := cmd.Amount.Add(cmd.TaxAmount).Add(cmd.ServiceCharge)
	signature := s.signer.SignInitiation(total, transactionUUID, s.cfg.ProductCode)

	txn, err := domain.NewGatewayTransaction(
		uuid.New().String(),
		transactionUUID,
		s.cfg.Name,
		inv.ID,
		cmd.StudentID,
		cmd.Amount,
		cmd.TaxAmount,
		cmd.ServiceCharge,
		signature,
		now,
	)
	if err != nil {
		return nil, err
	}

	if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
		return nil, application.NewInternalError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("gateway transaction initiated",
		"transaction_uuid", txn.TransactionUUID,
		"invoice_id", inv.ID,
		"total_amount", txn.TotalAmount,
	)

	return &InitiateResult{
		TransactionUUID: txn.TransactionUUID,
		TotalAmount:     txn.TotalAmount,
		ProductCode:     s.cfg.ProductCode,
		Signature:       txn.Signature,
		ExpiresAt:       txn.ExpiresAt,
	}, nil
}

// VerifySignature checks an inbound payload against the shared secret.
func (s *GatewayService) VerifySignature(payload *gateway.CallbackPayload) bool {
	return s.signer.VerifyCallback(payload)
}

// HandleCallback processes one callback delivery from the gateway. It is
// idempotent and replay-resistant: a transaction already in a terminal
// state returns an "already processed" result without touching the ledger,
// duplicate deliveries cannot double-charge, and a tampered payload parks
// the transaction as failed without ever reaching the invoice.
func (s *GatewayService) HandleCallback(ctx context.Context, payload *gateway.CallbackPayload, actingUserID string) (*CallbackResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	txn, err := s.txnRepo.FindByUUIDForUpdate(ctx, tx, payload.TransactionUUID)
	if err != nil {
		if errors.Is(err, postgres.ErrTransactionNotFound) {
			return nil, domain.NewNotFoundError("gateway transaction", payload.TransactionUUID)
		}
		return nil, application.NewInternalError(err)
	}

	if txn.IsTerminal() {
		return &CallbackResult{
			TransactionUUID:  txn.TransactionUUID,
			Status:           txn.Status,
			Message:          "already processed",
			AlreadyProcessed: true,
			PaymentID:        txn.PaymentID,
		}, nil
	}

	now := time.Now()
	if txn.IsExpired(now) {
		if err := txn.MarkExpired(); err != nil {
			return nil, err
		}
		return s.park(ctx, tx, txn, "transaction expired")
	}

	if !s.signer.VerifyCallback(payload) {
		if err := txn.MarkFailed("invalid signature", payload.RawJSON()); err != nil {
			return nil, err
		}
		return s.park(ctx, tx, txn, "invalid signature")
	}

	callbackAmount, err := payload.AmountDecimal()
	if err != nil || callbackAmount.Sub(txn.TotalAmount).Abs().GreaterThan(amountTolerance) {
		reason := fmt.Sprintf("amount mismatch: expected %s, got %s", txn.TotalAmount, payload.TotalAmount)
		if err := txn.MarkFailed(reason, payload.RawJSON()); err != nil {
			return nil, err
		}
		return s.park(ctx, tx, txn, reason)
	}

	if payload.Status != s.cfg.CompleteStatus {
		reason := fmt.Sprintf("gateway reported status %q", payload.Status)
		if err := txn.MarkFailed(reason, payload.RawJSON()); err != nil {
			return nil, err
		}
		return s.park(ctx, tx, txn, reason)
	}

	externalTxnID := payload.TransactionCode
	if externalTxnID == "" {
		externalTxnID = txn.TransactionUUID
	}
	gatewayName := txn.Gateway

	payment, err := s.paymentService.processTx(ctx, tx, ProcessPaymentCommand{
		InvoiceID:     txn.InvoiceID,
		StudentID:     txn.StudentID,
		Amount:        txn.Amount,
		Method:        domain.MethodGateway,
		Gateway:       &gatewayName,
		Date:          now,
		ReceivedBy:    actingUserID,
		ExternalTxnID: &externalTxnID,
	})
	if err != nil {
		tx.Rollback(ctx)
		s.markFailedBestEffort(ctx, txn.TransactionUUID, err.Error())
		return nil, err
	}

	if err := txn.MarkSuccess(payment.ID, payload.RawJSON()); err != nil {
		tx.Rollback(ctx)
		s.markFailedBestEffort(ctx, txn.TransactionUUID, err.Error())
		return nil, err
	}
	if err := s.txnRepo.Update(ctx, tx, txn); err != nil {
		tx.Rollback(ctx)
		s.markFailedBestEffort(ctx, txn.TransactionUUID, "failed to persist success state")
		return nil, application.NewInternalError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		s.markFailedBestEffort(ctx, txn.TransactionUUID, "commit failed")
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("gateway callback processed",
		"transaction_uuid", txn.TransactionUUID,
		"payment_id", payment.ID,
		"amount", txn.Amount,
	)

	return &CallbackResult{
		TransactionUUID: txn.TransactionUUID,
		Status:          domain.TxnSuccess,
		Message:         "payment recorded",
		PaymentID:       &payment.ID,
	}, nil
}

// HandleFailure records an explicit cancellation reported for a pending
// transaction.
func (s *GatewayService) HandleFailure(ctx context.Context, transactionUUID, reason string) (*domain.GatewayTransaction, error) {
	if reason == "" {
		reason = "payment cancelled"
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	txn, err := s.txnRepo.FindByUUIDForUpdate(ctx, tx, transactionUUID)
	if err != nil {
		if errors.Is(err, postgres.ErrTransactionNotFound) {
			return nil, domain.NewNotFoundError("gateway transaction", transactionUUID)
		}
		return nil, application.NewInternalError(err)
	}

	if err := txn.MarkFailed(reason, nil); err != nil {
		return nil, err
	}
	if err := s.txnRepo.Update(ctx, tx, txn); err != nil {
		return nil, application.NewInternalError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}
	return txn, nil
}

// GetStatus retrieves a transaction, lazily expiring it when the payment
// window has passed.
func (s *GatewayService) GetStatus(ctx context.Context, transactionUUID string) (*domain.GatewayTransaction, error) {
	txn, err := s.txnRepo.FindByUUID(ctx, transactionUUID)
	if err != nil {
		if errors.Is(err, postgres.ErrTransactionNotFound) {
			return nil, domain.NewNotFoundError("gateway transaction", transactionUUID)
		}
		return nil, application.NewInternalError(err)
	}

	if txn.Status == domain.TxnPending && txn.IsExpired(time.Now()) {
		if err := txn.MarkExpired(); err == nil {
			switch updateErr := s.txnRepo.Update(ctx, nil, txn); {
			case updateErr == nil:
			case errors.Is(updateErr, postgres.ErrTransactionFinalized):
				// A callback finalized the row after our read. Re-fetch so
				// the caller sees the committed terminal state.
				return s.txnRepo.FindByUUID(ctx, transactionUUID)
			default:
				s.logger.Warn("lazy expiry failed",
					"transaction_uuid", transactionUUID,
					"error", updateErr,
				)
			}
		}
	}

	return txn, nil
}

// ExpireStale sweeps pending transactions past their expiry. Lazy expiry on
// reads keeps callbacks correct without this; the sweep just keeps the
// table tidy. Safe to run concurrently with user traffic.
func (s *GatewayService) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	stale, err := s.txnRepo.FindStalePending(ctx, now, limit)
	if err != nil {
		return 0, application.NewInternalError(err)
	}

	expired := 0
	for _, txn := range stale {
		if err := txn.MarkExpired(); err != nil {
			continue
		}
		if err := s.txnRepo.Update(ctx, nil, txn); err != nil {
			// A callback that finalized the row after our snapshot wins;
			// the guarded update leaves it alone.
			if !errors.Is(err, postgres.ErrTransactionFinalized) {
				s.logger.Error("failed to expire stale transaction",
					"transaction_uuid", txn.TransactionUUID,
					"error", err,
				)
			}
			continue
		}
		expired++
	}
	return expired, nil
}

// park persists the transaction's terminal state and returns the failure
// as a result, not an error. The invoice is never touched on these paths.
func (s *GatewayService) park(ctx context.Context, tx pgx.Tx, txn *domain.GatewayTransaction, message string) (*CallbackResult, error) {
	if err := s.txnRepo.Update(ctx, tx, txn); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Warn("gateway callback rejected",
		"transaction_uuid", txn.TransactionUUID,
		"status", txn.Status,
		"reason", message,
	)

	return &CallbackResult{
		TransactionUUID: txn.TransactionUUID,
		Status:          txn.Status,
		Message:         message,
	}, nil
}

// markFailedBestEffort runs outside the rolled-back scope so a transaction
// is never left pending forever after a commit-phase failure.
func (s *GatewayService) markFailedBestEffort(ctx context.Context, transactionUUID, reason string) {
	txn, err := s.txnRepo.FindByUUID(ctx, transactionUUID)
	if err != nil {
		s.logger.Error("best-effort failure mark: lookup failed",
			"transaction_uuid", transactionUUID,
			"error", err,
		)
		return
	}
	if txn.IsTerminal() {
		return
	}
	if err := txn.MarkFailed(reason, nil); err != nil {
		return
	}
	if err := s.txnRepo.Update(ctx, nil, txn); err != nil && !errors.Is(err, postgres.ErrTransactionFinalized) {
		s.logger.Error("best-effort failure mark: update failed",
			"transaction_uuid", transactionUUID,
			"error", err,
		)
	}
}
