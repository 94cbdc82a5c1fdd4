package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajendrakhanal/schoolpay/internal/domain"
)

var ErrPaymentNotFound = errors.New("payment not found")

const paymentColumns = `id, invoice_id, student_id, amount, method, gateway,
	       external_txn_id, receipt_number, status, plan_id, installment_no,
	       received_by, paid_at, refunded_at, refunded_by, refund_reason, created_at`

type PaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) executor(tx pgx.Tx) Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create inserts the payment row. Unique constraints on receipt_number and
// external_txn_id make duplicate detection race-free across concurrent
// requests; a violation on external_txn_id surfaces as DuplicateTransaction.
func (r *PaymentRepository) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	query := `
		INSERT INTO payments (
            id, invoice_id, student_id, amount, method, gateway,
            external_txn_id, receipt_number, status, plan_id, installment_no,
            received_by, paid_at, refunded_at, refunded_by, refund_reason, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	m := paymentToDBModel(p)
	_, err := r.executor(tx).Exec(ctx, query,
		m.ID,
		m.InvoiceID,
		m.StudentID,
		m.Amount,
		m.Method,
		m.Gateway,
		m.ExternalTxnID,
		m.ReceiptNumber,
		m.Status,
		m.PlanID,
		m.InstallmentNo,
		m.ReceivedBy,
		m.PaidAt,
		m.RefundedAt,
		m.RefundedBy,
		m.RefundReason,
		m.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) && p.ExternalTxnID != nil {
			return domain.NewDuplicateTransactionError(*p.ExternalTxnID)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// FindByID retrieves a payment
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	return scanPayment(row)
}

// FindByIDForUpdate retrieves a payment with a row-level lock
func (r *PaymentRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`

	row := r.executor(tx).QueryRow(ctx, query, id)
	return scanPayment(row)
}

// FindByExternalTxnID retrieves a payment by the gateway-supplied transaction code
func (r *PaymentRepository) FindByExternalTxnID(ctx context.Context, externalTxnID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_txn_id = $1`

	row := r.db.QueryRow(ctx, query, externalTxnID)
	return scanPayment(row)
}

// FindByReceipt retrieves a payment by receipt number
func (r *PaymentRepository) FindByReceipt(ctx context.Context, receiptNumber string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE receipt_number = $1`

	row := r.db.QueryRow(ctx, query, receiptNumber)
	return scanPayment(row)
}

// ListByInvoice retrieves all payments recorded against an invoice, oldest first.
func (r *PaymentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments WHERE invoice_id = $1
		ORDER BY paid_at ASC`

	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query payments by invoice_id: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		var m PaymentModel
		err := scanPaymentModel(row, &m)
		return paymentToDomainModel(m), err
	})
}

// CountCompletedForPlan counts completed payments tagged with the plan.
func (r *PaymentRepository) CountCompletedForPlan(ctx context.Context, tx pgx.Tx, planID string) (int, error) {
	query := `SELECT count(*) FROM payments WHERE plan_id = $1 AND status = 'completed'`

	var count int
	if err := r.executor(tx).QueryRow(ctx, query, planID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count plan payments: %w", err)
	}
	return count, nil
}

// InstallmentPaid reports whether a completed payment already fulfils the
// given installment index.
func (r *PaymentRepository) InstallmentPaid(ctx context.Context, tx pgx.Tx, planID string, index int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE plan_id = $1 AND installment_no = $2 AND status = 'completed'
		)
	`

	var exists bool
	if err := r.executor(tx).QueryRow(ctx, query, planID, index).Scan(&exists); err != nil {
		return false, fmt.Errorf("check installment payment: %w", err)
	}
	return exists, nil
}

func (r *PaymentRepository) Update(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1, refunded_at = $2, refunded_by = $3, refund_reason = $4
		WHERE id = $5
	`

	m := paymentToDBModel(p)
	result, err := r.executor(tx).Exec(ctx, query,
		m.Status,
		m.RefundedAt,
		m.RefundedBy,
		m.RefundReason,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}

	return nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var m PaymentModel
	err := scanPaymentModel(row, &m)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return paymentToDomainModel(m), nil
}

func scanPaymentModel(row pgx.Row, m *PaymentModel) error {
	return row.Scan(
		&m.ID, &m.InvoiceID, &m.StudentID, &m.Amount, &m.Method, &m.Gateway,
		&m.ExternalTxnID, &m.ReceiptNumber, &m.Status, &m.PlanID, &m.InstallmentNo,
		&m.ReceivedBy, &m.PaidAt, &m.RefundedAt, &m.RefundedBy, &m.RefundReason, &m.CreatedAt,
	)
}
