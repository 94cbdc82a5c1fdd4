package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajendrakhanal/schoolpay/internal/domain"
)

var ErrPlanNotFound = errors.New("installment plan not found")

const planColumns = `id, invoice_id, student_id, total_amount, number_of_installments,
	       installment_amount, frequency, start_date, status, created_at`

type InstallmentRepository struct {
	db *pgxpool.Pool
}

func NewInstallmentRepository(db *pgxpool.Pool) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

func (r *InstallmentRepository) executor(tx pgx.Tx) Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create inserts the plan. The partial unique index on (invoice_id) for
// active plans rejects a concurrent second active plan for the same invoice.
func (r *InstallmentRepository) Create(ctx context.Context, tx pgx.Tx, p *domain.InstallmentPlan) error {
	query := `
		INSERT INTO installment_plans (
            id, invoice_id, student_id, total_amount, number_of_installments,
            installment_amount, frequency, start_date, status, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	m := planToDBModel(p)
	_, err := r.executor(tx).Exec(ctx, query,
		m.ID,
		m.InvoiceID,
		m.StudentID,
		m.TotalAmount,
		m.NumberOfInstallments,
		m.InstallmentAmount,
		m.Frequency,
		m.StartDate,
		m.Status,
		m.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.NewPlanAlreadyActiveError(p.InvoiceID)
		}
		return fmt.Errorf("failed to create installment plan: %w", err)
	}

	return nil
}

// FindByID retrieves a plan
func (r *InstallmentRepository) FindByID(ctx context.Context, id string) (*domain.InstallmentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM installment_plans WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	return scanPlan(row)
}

// FindByIDForUpdate retrieves a plan with a row-level lock
func (r *InstallmentRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.InstallmentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM installment_plans WHERE id = $1 FOR UPDATE`

	row := r.executor(tx).QueryRow(ctx, query, id)
	return scanPlan(row)
}

// FindActiveByInvoice retrieves the invoice's active plan, if any.
func (r *InstallmentRepository) FindActiveByInvoice(ctx context.Context, invoiceID string) (*domain.InstallmentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM installment_plans WHERE invoice_id = $1 AND status = 'active'`

	row := r.db.QueryRow(ctx, query, invoiceID)
	return scanPlan(row)
}

func (r *InstallmentRepository) Update(ctx context.Context, tx pgx.Tx, p *domain.InstallmentPlan) error {
	query := `UPDATE installment_plans SET status = $1 WHERE id = $2`

	result, err := r.executor(tx).Exec(ctx, query, string(p.Status), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update installment plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPlanNotFound
	}

	return nil
}

func scanPlan(row pgx.Row) (*domain.InstallmentPlan, error) {
	var m InstallmentPlanModel
	err := row.Scan(
		&m.ID, &m.InvoiceID, &m.StudentID, &m.TotalAmount, &m.NumberOfInstallments,
		&m.InstallmentAmount, &m.Frequency, &m.StartDate, &m.Status, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to scan installment plan: %w", err)
	}
	return planToDomainModel(m), nil
}
