package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajendrakhanal/schoolpay/internal/application"
	"github.com/rajendrakhanal/schoolpay/internal/domain"
	"github.com/rajendrakhanal/schoolpay/internal/infrastructure/persistence/postgres"
)

// PaymentService applies and reverses payments against an invoice. Payment
// creation, invoice balance update and installment bookkeeping happen in
// one transaction; on any failure the whole scope rolls back, so a
// half-created payment with an un-updated balance is never observable.
type PaymentService struct {
	invoiceRepo *postgres.InvoiceRepository
	paymentRepo *postgres.PaymentRepository
	planRepo    *postgres.InstallmentRepository
	seqRepo     *postgres.SequenceRepository
	db          *pgxpool.Pool
}

func NewPaymentService(
	invoiceRepo *postgres.InvoiceRepository,
	paymentRepo *postgres.PaymentRepository,
	planRepo *postgres.InstallmentRepository,
	seqRepo *postgres.SequenceRepository,
	db *pgxpool.Pool,
) *PaymentService {
	return &PaymentService{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		planRepo:    planRepo,
		seqRepo:     seqRepo,
		db:          db,
	}
}

// Process records a payment against an invoice and issues a receipt.
func (s *PaymentService) Process(ctx context.Context, cmd ProcessPaymentCommand) (*domain.Payment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	payment, err := s.processTx(ctx, tx, cmd)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}
	return payment, nil
}

// processTx is the shared atomic scope. The installment planner and the
// gateway reconciliation call it inside their own transactions so all three
// components commit or roll back together.
func (s *PaymentService) processTx(ctx context.Context, tx pgx.Tx, cmd ProcessPaymentCommand) (*domain.Payment, error) {
	inv, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, cmd.InvoiceID)
	if err != nil {
		if errors.Is(err, postgres.ErrInvoiceNotFound) {
			return nil, domain.NewNotFoundError("invoice", cmd.InvoiceID)
		}
		return nil, application.NewInternalError(err)
	}

	// Advisory duplicate check; the unique constraint on external_txn_id is
	// what actually closes the race window between concurrent requests.
	if cmd.ExternalTxnID != nil {
		_, err := s.paymentRepo.FindByExternalTxnID(ctx, *cmd.ExternalTxnID)
		if err == nil {
			return nil, domain.NewDuplicateTransactionError(*cmd.ExternalTxnID)
		}
		if !errors.Is(err, postgres.ErrPaymentNotFound) {
			return nil, application.NewInternalError(err)
		}
	}

	receipt, err := s.seqRepo.NextReceiptNumber(ctx, tx, cmd.Date.Year())
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	payment, err := domain.NewPayment(
		uuid.New().String(),
		cmd.InvoiceID,
		cmd.StudentID,
		cmd.Amount,
		cmd.Method,
		receipt,
		cmd.ReceivedBy,
		cmd.Date,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}
	payment.Gateway = cmd.Gateway
	payment.ExternalTxnID = cmd.ExternalTxnID
	if cmd.PlanID != nil && cmd.InstallmentNo != nil {
		payment.LinkInstallment(*cmd.PlanID, *cmd.InstallmentNo)
	}

	// Validates 0 < amount <= balance and recomputes status.
	if err := inv.RecordPayment(cmd.Amount, time.Now()); err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Update(ctx, tx, inv); err != nil {
		return nil, application.NewInternalError(err)
	}

	if payment.PlanID != nil {
		if err := s.settleInstallment(ctx, tx, *payment.PlanID); err != nil {
			return nil, err
		}
	}

	return payment, nil
}

// settleInstallment marks the plan completed once every index is consumed.
func (s *PaymentService) settleInstallment(ctx context.Context, tx pgx.Tx, planID string) error {
	plan, err := s.planRepo.FindByIDForUpdate(ctx, tx, planID)
	if err != nil {
		if errors.Is(err, postgres.ErrPlanNotFound) {
			return domain.NewNotFoundError("installment plan", planID)
		}
		return application.NewInternalError(err)
	}

	paid, err := s.paymentRepo.CountCompletedForPlan(ctx, tx, planID)
	if err != nil {
		return application.NewInternalError(err)
	}
	if paid < plan.NumberOfInstallments {
		return nil
	}

	if err := plan.Complete(); err != nil {
		return err
	}
	if err := s.planRepo.Update(ctx, tx, plan); err != nil {
		return application.NewInternalError(err)
	}
	return nil
}

// Refund reverses a completed payment in full. The payment flips to
// refunded and the invoice balance is restored in the same scope, so the
// completed-payment sum always matches the invoice's paid amount.
func (s *PaymentService) Refund(ctx context.Context, paymentID, refundedBy, reason string) (*domain.Payment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	payment, err := s.paymentRepo.FindByIDForUpdate(ctx, tx, paymentID)
	if err != nil {
		if errors.Is(err, postgres.ErrPaymentNotFound) {
			return nil, domain.NewNotFoundError("payment", paymentID)
		}
		return nil, application.NewInternalError(err)
	}

	now := time.Now()
	if err := payment.Refund(refundedBy, reason, now); err != nil {
		return nil, err
	}

	inv, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, payment.InvoiceID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := inv.ReversePayment(payment.Amount, now); err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Update(ctx, tx, payment); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := s.invoiceRepo.Update(ctx, tx, inv); err != nil {
		return nil, application.NewInternalError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}
	return payment, nil
}

// GetByReceipt retrieves a payment by its receipt number.
func (s *PaymentService) GetByReceipt(ctx context.Context, receiptNumber string) (*domain.Payment, error) {
	payment, err := s.paymentRepo.FindByReceipt(ctx, receiptNumber)
	if err != nil {
		if errors.Is(err, postgres.ErrPaymentNotFound) {
			return nil, domain.NewNotFoundError("payment", receiptNumber)
		}
		return nil, application.NewInternalError(err)
	}
	return payment, nil
}

// ListByInvoice retrieves the payments recorded against an invoice.
func (s *PaymentService) ListByInvoice(ctx context.Context, invoiceID string) ([]*domain.Payment, error) {
	payments, err := s.paymentRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return payments, nil
}
