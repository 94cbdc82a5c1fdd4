package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DomainError represents a business rule rejection. These are
// caller-recoverable: they abort the current transaction and carry the
// offending values so the API layer can render a precise message.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeDuplicateInvoice     = "DUPLICATE_INVOICE"
	ErrCodeDuplicateTransaction = "DUPLICATE_TRANSACTION"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeInvalidState         = "INVALID_STATE"
	ErrCodeNothingToApprove     = "NOTHING_TO_APPROVE"
	ErrCodePlanAlreadyActive    = "PLAN_ALREADY_ACTIVE"
	ErrCodePlanCompleted        = "PLAN_COMPLETED"
	ErrCodeAlreadyRefunded      = "ALREADY_REFUNDED"
	ErrCodeSignatureInvalid     = "SIGNATURE_INVALID"
	ErrCodeAmountMismatch       = "AMOUNT_MISMATCH"
	ErrCodeExpired              = "EXPIRED"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
)

func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

func NewDuplicateInvoiceError(studentID, feeDefinitionID, periodID string) *DomainError {
	return &DomainError{
		Code: ErrCodeDuplicateInvoice,
		Message: fmt.Sprintf(
			"active invoice already exists for student %s, fee %s, period %s",
			studentID, feeDefinitionID, periodID,
		),
	}
}

func NewDuplicateTransactionError(externalTxnID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateTransaction,
		Message: fmt.Sprintf("payment with external transaction id %s already recorded", externalTxnID),
	}
}

func NewInvalidAmountError(amount decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %s", amount),
	}
}

func NewAmountExceedsBalanceError(requested, available decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("amount exceeds balance: requested %s, available %s", requested, available),
	}
}

func NewDiscountExceedsSubtotalError(discount, subtotal decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("discount exceeds subtotal: requested %s, subtotal %s", discount, subtotal),
	}
}

func NewInvalidStateError(entity, id string, status string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("operation not allowed: %s %s is %s", entity, id, status),
	}
}

func NewNothingToApproveError(invoiceID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNothingToApprove,
		Message: fmt.Sprintf("invoice %s has no pending discount to approve", invoiceID),
	}
}

func NewPlanAlreadyActiveError(invoiceID string) *DomainError {
	return &DomainError{
		Code:    ErrCodePlanAlreadyActive,
		Message: fmt.Sprintf("invoice %s already has an active installment plan", invoiceID),
	}
}

func NewNoBalanceError(invoiceID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("invoice %s has no outstanding balance", invoiceID),
	}
}

func NewInvalidIndexError(index, numberOfInstallments int) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("installment index %d outside 1..%d", index, numberOfInstallments),
	}
}

func NewInstallmentAlreadyPaidError(planID string, index int) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("installment %d of plan %s is already paid", index, planID),
	}
}

func NewPlanCompletedError(planID string) *DomainError {
	return &DomainError{
		Code:    ErrCodePlanCompleted,
		Message: fmt.Sprintf("installment plan %s is already completed", planID),
	}
}

func NewAlreadyRefundedError(paymentID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAlreadyRefunded,
		Message: fmt.Sprintf("payment %s is already refunded", paymentID),
	}
}

func NewInvalidTransitionError(from, to GatewayTxnStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition gateway transaction from %s to %s", from, to),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
