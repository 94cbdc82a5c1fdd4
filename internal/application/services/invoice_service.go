package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rajendrakhanal/schoolpay/internal/application"
	"github.com/rajendrakhanal/schoolpay/internal/domain"
	"github.com/rajendrakhanal/schoolpay/internal/infrastructure/persistence/postgres"
)

// InvoiceService owns invoice lifecycle and the balance invariant. Every
// mutating operation runs in a single transaction with the invoice row
// locked, so concurrent writers serialize per invoice.
type InvoiceService struct {
	invoiceRepo *postgres.InvoiceRepository
	seqRepo     *postgres.SequenceRepository
	db          *pgxpool.Pool
}

func NewInvoiceService(
	invoiceRepo *postgres.InvoiceRepository,
	seqRepo *postgres.SequenceRepository,
	db *pgxpool.Pool,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		seqRepo:     seqRepo,
		db:          db,
	}
}

// Create builds a new invoice from validated fee items. Duplicate creation
// for the same (student, fee definition, period) triple is rejected; the
// check is backed by a unique index, so concurrent duplicates lose the race
// at commit rather than slipping past a pre-check.
func (s *InvoiceService) Create(ctx context.Context, cmd CreateInvoiceCommand) (*domain.Invoice, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	// Advisory pre-check. Catching the duplicate here spares a burned
	// sequence number; concurrent racers still hit the unique index below.
	if _, err := s.invoiceRepo.FindActive(ctx, cmd.StudentID, cmd.FeeDefinitionID, cmd.PeriodID); err == nil {
		return nil, domain.NewDuplicateInvoiceError(cmd.StudentID, cmd.FeeDefinitionID, cmd.PeriodID)
	} else if !errors.Is(err, postgres.ErrInvoiceNotFound) {
		return nil, application.NewInternalError(err)
	}

	now := time.Now()
	number, err := s.seqRepo.NextInvoiceNumber(ctx, tx, now.Year())
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	items := make([]domain.InvoiceItem, 0, len(cmd.Items))
	for _, in := range cmd.Items {
		items = append(items, domain.InvoiceItem{
			ID:          uuid.New().String(),
			ComponentID: in.ComponentID,
			Description: in.Description,
			Amount:      in.Amount,
		})
	}

	inv, err := domain.NewInvoice(
		uuid.New().String(),
		cmd.StudentID,
		cmd.FeeDefinitionID,
		cmd.PeriodID,
		number,
		cmd.DueDate,
		items,
		cmd.Discount,
		cmd.DiscountReason,
		now,
	)
	if err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Create(ctx, tx, inv); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}
	return inv, nil
}

// ApplyDiscount sets a discount on the invoice, pending approval.
func (s *InvoiceService) ApplyDiscount(ctx context.Context, invoiceID string, amount decimal.Decimal, reason *string) (*domain.Invoice, error) {
	return s.mutate(ctx, invoiceID, func(inv *domain.Invoice) error {
		return inv.ApplyDiscount(amount, reason, time.Now())
	})
}

// ApproveDiscount confirms a pending discount.
func (s *InvoiceService) ApproveDiscount(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.mutate(ctx, invoiceID, func(inv *domain.Invoice) error {
		return inv.ApproveDiscount()
	})
}

// RejectDiscount resets a pending discount to zero and restores totals.
func (s *InvoiceService) RejectDiscount(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.mutate(ctx, invoiceID, func(inv *domain.Invoice) error {
		return inv.RejectDiscount(time.Now())
	})
}

// Cancel terminates an unpaid invoice.
func (s *InvoiceService) Cancel(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.mutate(ctx, invoiceID, func(inv *domain.Invoice) error {
		return inv.Cancel()
	})
}

// Regenerate cancels an unpaid invoice and creates a replacement from the
// same items with a fresh number and due date, in one transaction.
func (s *InvoiceService) Regenerate(ctx context.Context, invoiceID string, dueDate time.Time) (*domain.Invoice, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	old, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, invoiceID)
	if err != nil {
		if errors.Is(err, postgres.ErrInvoiceNotFound) {
			return nil, domain.NewNotFoundError("invoice", invoiceID)
		}
		return nil, application.NewInternalError(err)
	}

	if err := old.Cancel(); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Update(ctx, tx, old); err != nil {
		return nil, application.NewInternalError(err)
	}

	now := time.Now()
	number, err := s.seqRepo.NextInvoiceNumber(ctx, tx, now.Year())
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	items := make([]domain.InvoiceItem, 0, len(old.Items))
	for _, item := range old.Items {
		items = append(items, domain.InvoiceItem{
			ID:          uuid.New().String(),
			ComponentID: item.ComponentID,
			Description: item.Description,
			Amount:      item.Amount,
		})
	}

	replacement, err := domain.NewInvoice(
		uuid.New().String(),
		old.StudentID,
		old.FeeDefinitionID,
		old.PeriodID,
		number,
		dueDate,
		items,
		old.Discount,
		old.DiscountReason,
		now,
	)
	if err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Create(ctx, tx, replacement); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}
	return replacement, nil
}

// Get retrieves an invoice with its items.
func (s *InvoiceService) Get(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, postgres.ErrInvoiceNotFound) {
			return nil, domain.NewNotFoundError("invoice", invoiceID)
		}
		return nil, application.NewInternalError(err)
	}
	return inv, nil
}

// ListByStudent retrieves a student's invoices, newest first.
func (s *InvoiceService) ListByStudent(ctx context.Context, studentID string, limit, offset int) ([]*domain.Invoice, error) {
	invoices, err := s.invoiceRepo.ListByStudent(ctx, studentID, limit, offset)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return invoices, nil
}

// MarkOverdueBatch sweeps unpaid invoices past their due date to overdue.
// Safe to run repeatedly and concurrently with user traffic.
func (s *InvoiceService) MarkOverdueBatch(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.invoiceRepo.MarkOverdueBatch(ctx, now)
	if err != nil {
		return 0, application.NewInternalError(err)
	}
	return count, nil
}

// mutate wraps the lock-mutate-update-commit cycle shared by the
// single-invoice operations.
func (s *InvoiceService) mutate(ctx context.Context, invoiceID string, fn func(*domain.Invoice) error) (*domain.Invoice, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	inv, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, invoiceID)
	if err != nil {
		if errors.Is(err, postgres.ErrInvoiceNotFound) {
			return nil, domain.NewNotFoundError("invoice", invoiceID)
		}
		return nil, application.NewInternalError(err)
	}

	if err := fn(inv); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Update(ctx, tx, inv); err != nil {
		return nil, application.NewInternalError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}
	return inv, nil
}
