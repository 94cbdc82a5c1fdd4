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

var (
	ErrTransactionNotFound = errors.New("gateway transaction not found")

	// ErrTransactionFinalized means an update found the row already in a
	// terminal state. Terminal states absorb, so the write was dropped.
	ErrTransactionFinalized = errors.New("gateway transaction already finalized")
)

const txnColumns = `id, transaction_uuid, gateway, invoice_id, student_id,
	       amount, tax_amount, service_charge, total_amount, signature,
	       status, expires_at, raw_response, payment_id, failure_reason, created_at`

type GatewayTransactionRepository struct {
	db *pgxpool.Pool
}

func NewGatewayTransactionRepository(db *pgxpool.Pool) *GatewayTransactionRepository {
	return &GatewayTransactionRepository{db: db}
}

func (r *GatewayTransactionRepository) executor(tx pgx.Tx) Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *GatewayTransactionRepository) Create(ctx context.Context, tx pgx.Tx, t *domain.GatewayTransaction) error {
	query := `
		INSERT INTO gateway_transactions (
            id, transaction_uuid, gateway, invoice_id, student_id,
            amount, tax_amount, service_charge, total_amount, signature,
            status, expires_at, raw_response, payment_id, failure_reason, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	m := txnToDBModel(t)
	_, err := r.executor(tx).Exec(ctx, query,
		m.ID,
		m.TransactionUUID,
		m.Gateway,
		m.InvoiceID,
		m.StudentID,
		m.Amount,
		m.TaxAmount,
		m.ServiceCharge,
		m.TotalAmount,
		m.Signature,
		m.Status,
		m.ExpiresAt,
		m.RawResponse,
		m.PaymentID,
		m.FailureReason,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create gateway transaction: %w", err)
	}

	return nil
}

// FindByUUID retrieves a transaction by its externally visible correlation key
func (r *GatewayTransactionRepository) FindByUUID(ctx context.Context, transactionUUID string) (*domain.GatewayTransaction, error) {
	query := `SELECT ` + txnColumns + ` FROM gateway_transactions WHERE transaction_uuid = $1`

	row := r.db.QueryRow(ctx, query, transactionUUID)
	return scanTxn(row)
}

// FindByUUIDForUpdate retrieves a transaction with a row-level lock so the
// callback path serializes per transaction.
func (r *GatewayTransactionRepository) FindByUUIDForUpdate(ctx context.Context, tx pgx.Tx, transactionUUID string) (*domain.GatewayTransaction, error) {
	query := `SELECT ` + txnColumns + ` FROM gateway_transactions WHERE transaction_uuid = $1 FOR UPDATE`

	row := r.executor(tx).QueryRow(ctx, query, transactionUUID)
	return scanTxn(row)
}

// FindPending retrieves the pending transaction for an (invoice, gateway)
// pair, if one exists.
func (r *GatewayTransactionRepository) FindPending(ctx context.Context, tx pgx.Tx, invoiceID, gateway string) (*domain.GatewayTransaction, error) {
	query := `SELECT ` + txnColumns + `
		FROM gateway_transactions
		WHERE invoice_id = $1 AND gateway = $2 AND status = 'pending'
		FOR UPDATE`

	row := r.executor(tx).QueryRow(ctx, query, invoiceID, gateway)
	return scanTxn(row)
}

// FindStalePending lists pending transactions whose expiry has passed.
func (r *GatewayTransactionRepository) FindStalePending(ctx context.Context, now time.Time, limit int) ([]*domain.GatewayTransaction, error) {
	query := `SELECT ` + txnColumns + `
		FROM gateway_transactions
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale pending transactions: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.GatewayTransaction, error) {
		var m GatewayTransactionModel
		err := scanTxnModel(row, &m)
		return txnToDomainModel(m), err
	})
}

// Update persists a state change. Every legal transition starts from
// pending, so the write is guarded on it: a row that a concurrent writer
// already finalized is left untouched and reported as
// ErrTransactionFinalized. This covers the sweep and lazy-expiry paths,
// which read without a row lock.
func (r *GatewayTransactionRepository) Update(ctx context.Context, tx pgx.Tx, t *domain.GatewayTransaction) error {
	query := `
		UPDATE gateway_transactions
		SET status = $1, raw_response = $2, payment_id = $3, failure_reason = $4
		WHERE id = $5 AND status = 'pending'
	`

	m := txnToDBModel(t)
	result, err := r.executor(tx).Exec(ctx, query,
		m.Status,
		m.RawResponse,
		m.PaymentID,
		m.FailureReason,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update gateway transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionFinalized
	}

	return nil
}

func scanTxn(row pgx.Row) (*domain.GatewayTransaction, error) {
	var m GatewayTransactionModel
	err := scanTxnModel(row, &m)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan gateway transaction: %w", err)
	}
	return txnToDomainModel(m), nil
}

func scanTxnModel(row pgx.Row, m *GatewayTransactionModel) error {
	return row.Scan(
		&m.ID, &m.TransactionUUID, &m.Gateway, &m.InvoiceID, &m.StudentID,
		&m.Amount, &m.TaxAmount, &m.ServiceCharge, &m.TotalAmount, &m.Signature,
		&m.Status, &m.ExpiresAt, &m.RawResponse, &m.PaymentID, &m.FailureReason, &m.CreatedAt,
	)
}
