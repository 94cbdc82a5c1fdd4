package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current state of a payment in its lifecycle
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentMethod identifies how the money moved
type PaymentMethod string

const (
	MethodCash    PaymentMethod = "cash"
	MethodBank    PaymentMethod = "bank"
	MethodGateway PaymentMethod = "gateway"
)

// Payment represents one money movement from payer to school. Cash and bank
// payments are created completed at processing time; there is no separate
// authorization/capture split. A payment may be refunded exactly once and is
// never deleted.
type Payment struct {
	ID            string
	InvoiceID     string
	StudentID     string
	Amount        decimal.Decimal
	Method        PaymentMethod
	Gateway       *string
	ExternalTxnID *string
	ReceiptNumber string
	Status        PaymentStatus
	PlanID        *string
	InstallmentNo *int
	ReceivedBy    string
	PaidAt        time.Time
	RefundedAt    *time.Time
	RefundedBy    *string
	RefundReason  *string
	CreatedAt     time.Time
}

func NewPayment(
	id string,
	invoiceID string,
	studentID string,
	amount decimal.Decimal,
	method PaymentMethod,
	receiptNumber string,
	receivedBy string,
	paidAt time.Time,
	now time.Time,
) (*Payment, error) {
	if id == "" {
		return nil, errors.New("payment ID is required")
	}
	if invoiceID == "" {
		return nil, errors.New("invoice ID is required")
	}
	if studentID == "" {
		return nil, errors.New("student ID is required")
	}
	if receiptNumber == "" {
		return nil, errors.New("receipt number is required")
	}
	if !amount.IsPositive() {
		return nil, NewInvalidAmountError(amount)
	}

	return &Payment{
		ID:            id,
		InvoiceID:     invoiceID,
		StudentID:     studentID,
		Amount:        amount,
		Method:        method,
		ReceiptNumber: receiptNumber,
		Status:        PaymentCompleted,
		ReceivedBy:    receivedBy,
		PaidAt:        paidAt,
		CreatedAt:     now,
	}, nil
}

// LinkInstallment tags the payment with the installment plan charge it
// fulfils.
func (p *Payment) LinkInstallment(planID string, installmentNo int) {
	p.PlanID = &planID
	p.InstallmentNo = &installmentNo
}

// Refund transitions a completed payment to refunded. Refund amount is
// always the original payment amount; partial refunds are not supported.
func (p *Payment) Refund(refundedBy string, reason string, now time.Time) error {
	if p.Status == PaymentRefunded {
		return NewAlreadyRefundedError(p.ID)
	}
	if p.Status != PaymentCompleted {
		return NewInvalidStateError("payment", p.ID, string(p.Status))
	}
	p.Status = PaymentRefunded
	p.RefundedAt = &now
	p.RefundedBy = &refundedBy
	p.RefundReason = &reason
	return nil
}
