// Package domain encodes the fee ledger entities and their transition rules.
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the current state of an invoice in its lifecycle
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePartial   InvoiceStatus = "partial"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// DiscountApproval tracks the approval workflow for an invoice discount
type DiscountApproval string

const (
	DiscountNone            DiscountApproval = "none"
	DiscountPendingApproval DiscountApproval = "pending"
	DiscountApproved        DiscountApproval = "approved"
	DiscountRejected        DiscountApproval = "rejected"
)

// InvoiceItem is one fee-component line. Its amount is immutable once the
// invoice is created; the sum of all items equals the invoice subtotal.
type InvoiceItem struct {
	ID          string
	InvoiceID   string
	ComponentID string
	Description string
	Amount      decimal.Decimal
}

// Invoice is one billing obligation for one student against one fee
// definition in one academic period.
//
// The entity maintains two invariants on every mutation:
// balance == totalAmount - paidAmount, and balance >= 0.
type Invoice struct {
	ID               string
	StudentID        string
	FeeDefinitionID  string
	PeriodID         string
	Number           string
	DueDate          time.Time
	Subtotal         decimal.Decimal
	Discount         decimal.Decimal
	DiscountReason   *string
	DiscountApproval DiscountApproval
	TotalAmount      decimal.Decimal
	PaidAmount       decimal.Decimal
	Balance          decimal.Decimal
	Status           InvoiceStatus
	Items            []InvoiceItem
	CreatedAt        time.Time
}

func NewInvoice(
	id string,
	studentID string,
	feeDefinitionID string,
	periodID string,
	number string,
	dueDate time.Time,
	items []InvoiceItem,
	discount decimal.Decimal,
	discountReason *string,
	now time.Time,
) (*Invoice, error) {
	if id == "" {
		return nil, errors.New("invoice ID is required")
	}
	if studentID == "" {
		return nil, errors.New("student ID is required")
	}
	if feeDefinitionID == "" {
		return nil, errors.New("fee definition ID is required")
	}
	if periodID == "" {
		return nil, errors.New("period ID is required")
	}
	if len(items) == 0 {
		return nil, errors.New("at least one invoice item is required")
	}

	subtotal := decimal.Zero
	for i := range items {
		if !items[i].Amount.IsPositive() {
			return nil, NewInvalidAmountError(items[i].Amount)
		}
		items[i].InvoiceID = id
		subtotal = subtotal.Add(items[i].Amount)
	}

	if discount.IsNegative() {
		return nil, NewInvalidAmountError(discount)
	}
	if discount.GreaterThan(subtotal) {
		return nil, NewDiscountExceedsSubtotalError(discount, subtotal)
	}

	inv := &Invoice{
		ID:               id,
		StudentID:        studentID,
		FeeDefinitionID:  feeDefinitionID,
		PeriodID:         periodID,
		Number:           number,
		DueDate:          dueDate,
		Subtotal:         subtotal,
		Discount:         discount,
		DiscountReason:   discountReason,
		DiscountApproval: DiscountNone,
		PaidAmount:       decimal.Zero,
		Items:            items,
		CreatedAt:        now,
	}
	if discount.IsPositive() {
		inv.DiscountApproval = DiscountPendingApproval
	}
	inv.recompute(now)
	return inv, nil
}

// recompute derives totalAmount, balance and status from the current
// subtotal, discount, paidAmount and due date. Called after every mutation.
func (inv *Invoice) recompute(now time.Time) {
	inv.TotalAmount = inv.Subtotal.Sub(inv.Discount)
	inv.Balance = inv.TotalAmount.Sub(inv.PaidAmount)

	if inv.Status == InvoiceCancelled {
		return
	}
	switch {
	case inv.Balance.IsZero():
		inv.Status = InvoicePaid
	case inv.Balance.LessThan(inv.TotalAmount):
		inv.Status = InvoicePartial
	case inv.DueDate.Before(now):
		inv.Status = InvoiceOverdue
	default:
		inv.Status = InvoicePending
	}
}

// ApplyDiscount sets a new discount on the invoice and marks it pending
// approval. Rejected for paid or cancelled invoices.
func (inv *Invoice) ApplyDiscount(amount decimal.Decimal, reason *string, now time.Time) error {
	if inv.Status == InvoicePaid || inv.Status == InvoiceCancelled {
		return NewInvalidStateError("invoice", inv.ID, string(inv.Status))
	}
	if amount.IsNegative() {
		return NewInvalidAmountError(amount)
	}
	if amount.GreaterThan(inv.Subtotal) {
		return NewDiscountExceedsSubtotalError(amount, inv.Subtotal)
	}
	// The balance must stay non-negative, so a discount can reduce the
	// total at most down to what has already been paid.
	if unpaid := inv.Subtotal.Sub(inv.PaidAmount); amount.GreaterThan(unpaid) {
		return NewAmountExceedsBalanceError(amount, unpaid)
	}

	inv.Discount = amount
	inv.DiscountReason = reason
	inv.DiscountApproval = DiscountPendingApproval
	inv.recompute(now)
	return nil
}

// ApproveDiscount confirms a pending discount. Totals were already adjusted
// when the discount was applied, so approval only flips the workflow state.
func (inv *Invoice) ApproveDiscount() error {
	if inv.DiscountApproval != DiscountPendingApproval {
		return NewNothingToApproveError(inv.ID)
	}
	inv.DiscountApproval = DiscountApproved
	return nil
}

// RejectDiscount resets a pending discount to zero and restores totals.
func (inv *Invoice) RejectDiscount(now time.Time) error {
	if inv.DiscountApproval != DiscountPendingApproval {
		return NewNothingToApproveError(inv.ID)
	}
	inv.Discount = decimal.Zero
	inv.DiscountApproval = DiscountRejected
	inv.recompute(now)
	return nil
}

// RecordPayment applies a payment amount against the invoice balance.
// The amount must be positive and must not exceed the current balance,
// so the balance can never go negative.
func (inv *Invoice) RecordPayment(amount decimal.Decimal, now time.Time) error {
	if inv.Status == InvoiceCancelled {
		return NewInvalidStateError("invoice", inv.ID, string(inv.Status))
	}
	if !amount.IsPositive() {
		return NewInvalidAmountError(amount)
	}
	if amount.GreaterThan(inv.Balance) {
		return NewAmountExceedsBalanceError(amount, inv.Balance)
	}

	inv.PaidAmount = inv.PaidAmount.Add(amount)
	inv.recompute(now)
	return nil
}

// ReversePayment backs a refunded payment amount out of the invoice.
// May move a paid or partial invoice back to pending or overdue.
func (inv *Invoice) ReversePayment(amount decimal.Decimal, now time.Time) error {
	if inv.Status == InvoiceCancelled {
		return NewInvalidStateError("invoice", inv.ID, string(inv.Status))
	}
	if !amount.IsPositive() {
		return NewInvalidAmountError(amount)
	}
	if amount.GreaterThan(inv.PaidAmount) {
		return NewAmountExceedsBalanceError(amount, inv.PaidAmount)
	}

	inv.PaidAmount = inv.PaidAmount.Sub(amount)
	inv.recompute(now)
	return nil
}

// Cancel terminates the invoice. Only legal while nothing has been paid.
func (inv *Invoice) Cancel() error {
	if inv.Status == InvoiceCancelled {
		return NewInvalidStateError("invoice", inv.ID, string(inv.Status))
	}
	if inv.PaidAmount.IsPositive() {
		return NewInvalidStateError("invoice", inv.ID, "partially or fully paid")
	}
	inv.Status = InvoiceCancelled
	return nil
}

// MarkOverdue transitions an unpaid invoice past its due date to overdue.
// Returns false when the invoice is not eligible; re-running is a no-op.
func (inv *Invoice) MarkOverdue(now time.Time) bool {
	if inv.Status == InvoicePaid || inv.Status == InvoiceCancelled || inv.Status == InvoiceOverdue {
		return false
	}
	if !inv.DueDate.Before(now) || !inv.Balance.IsPositive() {
		return false
	}
	inv.Status = InvoiceOverdue
	return true
}
