package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajendrakhanal/schoolpay/internal/domain"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

const invoiceColumns = `id, student_id, fee_definition_id, period_id, number, due_date,
	       subtotal, discount, discount_reason, discount_approval,
	       total_amount, paid_amount, balance, status, created_at`

type InvoiceRepository struct {
	db *pgxpool.Pool
}

func NewInvoiceRepository(db *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) executor(tx pgx.Tx) Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create inserts the invoice and its items. A concurrent duplicate for the
// same (student, fee definition, period) triple trips the partial unique
// index and is reported as DuplicateInvoice; the pre-existence check in the
// service layer is advisory only.
func (r *InvoiceRepository) Create(ctx context.Context, tx pgx.Tx, inv *domain.Invoice) error {
	query := `
		INSERT INTO invoices (
            id, student_id, fee_definition_id, period_id, number, due_date,
            subtotal, discount, discount_reason, discount_approval,
            total_amount, paid_amount, balance, status, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	m := invoiceToDBModel(inv)
	q := r.executor(tx)
	_, err := q.Exec(ctx, query,
		m.ID,
		m.StudentID,
		m.FeeDefinitionID,
		m.PeriodID,
		m.Number,
		m.DueDate,
		m.Subtotal,
		m.Discount,
		m.DiscountReason,
		m.DiscountApproval,
		m.TotalAmount,
		m.PaidAmount,
		m.Balance,
		m.Status,
		m.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.NewDuplicateInvoiceError(inv.StudentID, inv.FeeDefinitionID, inv.PeriodID)
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	itemQuery := `
		INSERT INTO invoice_items (id, invoice_id, component_id, description, amount)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, item := range inv.Items {
		if _, err := q.Exec(ctx, itemQuery, item.ID, item.InvoiceID, item.ComponentID, item.Description, item.Amount); err != nil {
			return fmt.Errorf("failed to create invoice item: %w", err)
		}
	}

	return nil
}

// FindByID retrieves an invoice with its items
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	inv, err := r.scanInvoice(ctx, nil, row)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// FindByIDForUpdate retrieves an invoice with a row-level lock so that
// concurrent balance mutations serialize per invoice.
func (r *InvoiceRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`

	row := r.executor(tx).QueryRow(ctx, query, id)
	return r.scanInvoice(ctx, tx, row)
}

// FindActive retrieves the non-cancelled invoice for a (student, fee, period) triple.
func (r *InvoiceRepository) FindActive(ctx context.Context, studentID, feeDefinitionID, periodID string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE student_id = $1 AND fee_definition_id = $2 AND period_id = $3 AND status <> 'cancelled'`

	row := r.db.QueryRow(ctx, query, studentID, feeDefinitionID, periodID)
	return r.scanInvoice(ctx, nil, row)
}

// ListByStudent retrieves a student's invoices, newest first.
func (r *InvoiceRepository) ListByStudent(ctx context.Context, studentID string, limit, offset int) ([]*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, studentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query invoices by student_id: %w", err)
	}

	models, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (InvoiceModel, error) {
		var m InvoiceModel
		err := scanInvoiceModel(row, &m)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan invoices: %w", err)
	}

	results := make([]*domain.Invoice, 0, len(models))
	for _, m := range models {
		items, err := r.loadItems(ctx, nil, m.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, invoiceToDomainModel(m, items))
	}
	return results, nil
}

func (r *InvoiceRepository) Update(ctx context.Context, tx pgx.Tx, inv *domain.Invoice) error {
	query := `
		UPDATE invoices
		SET discount = $1, discount_reason = $2, discount_approval = $3,
		    total_amount = $4, paid_amount = $5, balance = $6, status = $7
		WHERE id = $8
	`

	m := invoiceToDBModel(inv)
	result, err := r.executor(tx).Exec(ctx, query,
		m.Discount,
		m.DiscountReason,
		m.DiscountApproval,
		m.TotalAmount,
		m.PaidAmount,
		m.Balance,
		m.Status,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}

	return nil
}

// MarkOverdueBatch flips every unpaid invoice past its due date to overdue.
// A single idempotent statement: rows already overdue are excluded, so
// re-running is a no-op for them.
func (r *InvoiceRepository) MarkOverdueBatch(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE invoices
		SET status = 'overdue'
		WHERE due_date < $1
		  AND balance > 0
		  AND status NOT IN ('paid', 'cancelled', 'overdue')
	`

	result, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("mark overdue batch: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *InvoiceRepository) loadItems(ctx context.Context, tx pgx.Tx, invoiceID string) ([]domain.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, component_id, description, amount
		FROM invoice_items WHERE invoice_id = $1
		ORDER BY id
	`

	rows, err := r.executor(tx).Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query invoice items: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.InvoiceItem, error) {
		var m InvoiceItemModel
		err := row.Scan(&m.ID, &m.InvoiceID, &m.ComponentID, &m.Description, &m.Amount)
		return itemToDomainModel(m), err
	})
}

func (r *InvoiceRepository) scanInvoice(ctx context.Context, tx pgx.Tx, row pgx.Row) (*domain.Invoice, error) {
	var m InvoiceModel
	err := scanInvoiceModel(row, &m)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}

	items, err := r.loadItems(ctx, tx, m.ID)
	if err != nil {
		return nil, err
	}
	return invoiceToDomainModel(m, items), nil
}

func scanInvoiceModel(row pgx.Row, m *InvoiceModel) error {
	return row.Scan(
		&m.ID, &m.StudentID, &m.FeeDefinitionID, &m.PeriodID, &m.Number, &m.DueDate,
		&m.Subtotal, &m.Discount, &m.DiscountReason, &m.DiscountApproval,
		&m.TotalAmount, &m.PaidAmount, &m.Balance, &m.Status, &m.CreatedAt,
	)
}
