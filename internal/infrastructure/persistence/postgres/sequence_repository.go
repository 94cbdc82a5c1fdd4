package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sequence scopes for the human-readable reference numbers.
const (
	SeqInvoice = "invoice"
	SeqReceipt = "receipt"
)

// SequenceRepository issues strictly increasing, collision-free counters
// per (scope, year). The increment runs as a single upsert so concurrent
// issuance never hands out the same value twice.
type SequenceRepository struct {
	db *pgxpool.Pool
}

func NewSequenceRepository(db *pgxpool.Pool) *SequenceRepository {
	return &SequenceRepository{db: db}
}

func (r *SequenceRepository) executor(tx pgx.Tx) Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// Next atomically increments and returns the counter for (scope, year).
func (r *SequenceRepository) Next(ctx context.Context, tx pgx.Tx, scope string, year int) (int64, error) {
	query := `
		INSERT INTO sequences (scope, year, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (scope, year) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`

	var value int64
	if err := r.executor(tx).QueryRow(ctx, query, scope, year).Scan(&value); err != nil {
		return 0, fmt.Errorf("next sequence for %s/%d: %w", scope, year, err)
	}
	return value, nil
}

// NextInvoiceNumber formats the next invoice number, e.g. INV-2026-00042.
func (r *SequenceRepository) NextInvoiceNumber(ctx context.Context, tx pgx.Tx, calendarYear int) (string, error) {
	value, err := r.Next(ctx, tx, SeqInvoice, calendarYear)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%d-%05d", calendarYear, value), nil
}

// NextReceiptNumber formats the next receipt number, e.g. RCP-2026-00042.
func (r *SequenceRepository) NextReceiptNumber(ctx context.Context, tx pgx.Tx, fiscalYear int) (string, error) {
	value, err := r.Next(ctx, tx, SeqReceipt, fiscalYear)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RCP-%d-%05d", fiscalYear, value), nil
}
