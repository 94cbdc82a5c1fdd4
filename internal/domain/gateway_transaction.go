package domain

import (
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayTxnStatus represents the state of a gateway transaction.
// Transitions are monotonic: pending -> {success | failed | expired},
// and every terminal state is absorbing.
type GatewayTxnStatus string

const (
	TxnPending GatewayTxnStatus = "pending"
	TxnSuccess GatewayTxnStatus = "success"
	TxnFailed  GatewayTxnStatus = "failed"
	TxnExpired GatewayTxnStatus = "expired"
)

// TxnTTL is how long an initiated gateway transaction stays payable.
const TxnTTL = 30 * time.Minute

// GatewayTransaction represents one attempt to pay an invoice through an
// external payment gateway. The TransactionUUID is the externally visible
// correlation key the gateway echoes back in its callback.
type GatewayTransaction struct {
	ID              string
	TransactionUUID string
	Gateway         string
	InvoiceID       string
	StudentID       string
	Amount          decimal.Decimal
	TaxAmount       decimal.Decimal
	ServiceCharge   decimal.Decimal
	TotalAmount     decimal.Decimal
	Signature       string
	Status          GatewayTxnStatus
	ExpiresAt       time.Time
	RawResponse     []byte
	PaymentID       *string
	FailureReason   *string
	CreatedAt       time.Time
}

func NewGatewayTransaction(
	id string,
	transactionUUID string,
	gateway string,
	invoiceID string,
	studentID string,
	amount decimal.Decimal,
	taxAmount decimal.Decimal,
	serviceCharge decimal.Decimal,
	signature string,
	now time.Time,
) (*GatewayTransaction, error) {
	if id == "" {
		return nil, errors.New("transaction ID is required")
	}
	if transactionUUID == "" {
		return nil, errors.New("transaction UUID is required")
	}
	if gateway == "" {
		return nil, errors.New("gateway is required")
	}
	if invoiceID == "" {
		return nil, errors.New("invoice ID is required")
	}
	if !amount.IsPositive() {
		return nil, NewInvalidAmountError(amount)
	}
	if taxAmount.IsNegative() || serviceCharge.IsNegative() {
		return nil, NewInvalidAmountError(taxAmount.Add(serviceCharge))
	}

	return &GatewayTransaction{
		ID:              id,
		TransactionUUID: transactionUUID,
		Gateway:         gateway,
		InvoiceID:       invoiceID,
		StudentID:       studentID,
		Amount:          amount,
		TaxAmount:       taxAmount,
		ServiceCharge:   serviceCharge,
		TotalAmount:     amount.Add(taxAmount).Add(serviceCharge),
		Signature:       signature,
		Status:          TxnPending,
		ExpiresAt:       now.Add(TxnTTL),
		CreatedAt:       now,
	}, nil
}

func (t *GatewayTransaction) transition(target GatewayTxnStatus) error {
	if err := t.canTransitionTo(target); err != nil {
		return err
	}
	t.Status = target
	return nil
}

func (t *GatewayTransaction) canTransitionTo(target GatewayTxnStatus) error {
	if t.Status == TxnPending {
		return t.allow(target, TxnSuccess, TxnFailed, TxnExpired)
	}
	return NewInvalidTransitionError(t.Status, target)
}

func (t *GatewayTransaction) allow(target GatewayTxnStatus, allowed ...GatewayTxnStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(t.Status, target)
}

// MarkSuccess records the completed callback and links the resulting
// ledger payment.
func (t *GatewayTransaction) MarkSuccess(paymentID string, rawResponse []byte) error {
	if err := t.transition(TxnSuccess); err != nil {
		return err
	}
	t.PaymentID = &paymentID
	t.RawResponse = rawResponse
	return nil
}

// MarkFailed parks the transaction in a terminal failed state, keeping the
// raw gateway payload for audit.
func (t *GatewayTransaction) MarkFailed(reason string, rawResponse []byte) error {
	if err := t.transition(TxnFailed); err != nil {
		return err
	}
	t.FailureReason = &reason
	if rawResponse != nil {
		t.RawResponse = rawResponse
	}
	return nil
}

func (t *GatewayTransaction) MarkExpired() error {
	return t.transition(TxnExpired)
}

// IsExpired reports whether the transaction's payment window has passed.
func (t *GatewayTransaction) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *GatewayTransaction) IsTerminal() bool {
	return t.Status != TxnPending
}
