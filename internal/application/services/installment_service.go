package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajendrakhanal/schoolpay/internal/application"
	"github.com/rajendrakhanal/schoolpay/internal/domain"
	"github.com/rajendrakhanal/schoolpay/internal/infrastructure/persistence/postgres"
)

// InstallmentService splits an invoice balance into a fixed schedule and
// tracks fulfillment. Money movement is delegated to the payment processor
// inside the same transaction.
type InstallmentService struct {
	invoiceRepo    *postgres.InvoiceRepository
	paymentRepo    *postgres.PaymentRepository
	planRepo       *postgres.InstallmentRepository
	paymentService *PaymentService
	db             *pgxpool.Pool
}

func NewInstallmentService(
	invoiceRepo *postgres.InvoiceRepository,
	paymentRepo *postgres.PaymentRepository,
	planRepo *postgres.InstallmentRepository,
	paymentService *PaymentService,
	db *pgxpool.Pool,
) *InstallmentService {
	return &InstallmentService{
		invoiceRepo:    invoiceRepo,
		paymentRepo:    paymentRepo,
		planRepo:       planRepo,
		paymentService: paymentService,
		db:             db,
	}
}

// PlanSummary pairs a plan with how many installments are already paid.
type PlanSummary struct {
	Plan             *domain.InstallmentPlan
	PaidInstallments int
}

// CreatePlan divides the invoice's current balance into equal charges.
// The second active plan for an invoice loses at the unique index even if
// two requests pass the advisory check concurrently.
func (s *InstallmentService) CreatePlan(ctx context.Context, cmd CreatePlanCommand) (*domain.InstallmentPlan, error) {
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

	if !inv.Balance.IsPositive() {
		return nil, domain.NewNoBalanceError(inv.ID)
	}

	if _, err := s.planRepo.FindActiveByInvoice(ctx, inv.ID); err == nil {
		return nil, domain.NewPlanAlreadyActiveError(inv.ID)
	} else if !errors.Is(err, postgres.ErrPlanNotFound) {
		return nil, application.NewInternalError(err)
	}

	plan, err := domain.NewInstallmentPlan(
		uuid.New().String(),
		inv.ID,
		inv.StudentID,
		inv.Balance,
		cmd.NumberOfInstallments,
		cmd.Frequency,
		cmd.StartDate,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}

	if err := s.planRepo.Create(ctx, tx, plan); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}
	return plan, nil
}

// PayInstallment collects one installment charge. The per-installment
// amount is derived from the invoice's live balance at payment time: the
// last unpaid index absorbs any rounding remainder, so N installments
// always sum to exactly the invoice balance.
func (s *InstallmentService) PayInstallment(ctx context.Context, cmd PayInstallmentCommand) (*domain.Payment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	plan, err := s.planRepo.FindByIDForUpdate(ctx, tx, cmd.PlanID)
	if err != nil {
		if errors.Is(err, postgres.ErrPlanNotFound) {
			return nil, domain.NewNotFoundError("installment plan", cmd.PlanID)
		}
		return nil, application.NewInternalError(err)
	}

	if plan.Status != domain.PlanActive {
		return nil, domain.NewInvalidStateError("installment plan", plan.ID, string(plan.Status))
	}
	if !plan.ValidIndex(cmd.Index) {
		return nil, domain.NewInvalidIndexError(cmd.Index, plan.NumberOfInstallments)
	}

	paid, err := s.paymentRepo.InstallmentPaid(ctx, tx, plan.ID, cmd.Index)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if paid {
		return nil, domain.NewInstallmentAlreadyPaidError(plan.ID, cmd.Index)
	}

	inv, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, plan.InvoiceID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	paidCount, err := s.paymentRepo.CountCompletedForPlan(ctx, tx, plan.ID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	amount := plan.InstallmentAmount
	if paidCount == plan.NumberOfInstallments-1 || amount.GreaterThan(inv.Balance) {
		amount = inv.Balance
	}

	planID := plan.ID
	index := cmd.Index
	payment, err := s.paymentService.processTx(ctx, tx, ProcessPaymentCommand{
		InvoiceID:     plan.InvoiceID,
		StudentID:     plan.StudentID,
		Amount:        amount,
		Method:        cmd.Method,
		Date:          cmd.Date,
		ReceivedBy:    cmd.ReceivedBy,
		PlanID:        &planID,
		InstallmentNo: &index,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}
	return payment, nil
}

// Cancel terminates an unfinished plan.
func (s *InstallmentService) Cancel(ctx context.Context, planID string) (*domain.InstallmentPlan, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	plan, err := s.planRepo.FindByIDForUpdate(ctx, tx, planID)
	if err != nil {
		if errors.Is(err, postgres.ErrPlanNotFound) {
			return nil, domain.NewNotFoundError("installment plan", planID)
		}
		return nil, application.NewInternalError(err)
	}

	if err := plan.Cancel(); err != nil {
		return nil, err
	}
	if err := s.planRepo.Update(ctx, tx, plan); err != nil {
		return nil, application.NewInternalError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}
	return plan, nil
}

// GetPlan retrieves a plan with its fulfillment progress.
func (s *InstallmentService) GetPlan(ctx context.Context, planID string) (*PlanSummary, error) {
	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, postgres.ErrPlanNotFound) {
			return nil, domain.NewNotFoundError("installment plan", planID)
		}
		return nil, application.NewInternalError(err)
	}

	paid, err := s.paymentRepo.CountCompletedForPlan(ctx, nil, plan.ID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	return &PlanSummary{Plan: plan, PaidInstallments: paid}, nil
}
