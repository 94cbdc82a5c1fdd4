package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row models mirror the table shapes; mapping to and from domain entities
// lives in mappers.go.

type InvoiceModel struct {
	ID               string
	StudentID        string
	FeeDefinitionID  string
	PeriodID         string
	Number           string
	DueDate          time.Time
	Subtotal         decimal.Decimal
	Discount         decimal.Decimal
	DiscountReason   *string
	DiscountApproval string
	TotalAmount      decimal.Decimal
	PaidAmount       decimal.Decimal
	Balance          decimal.Decimal
	Status           string
	CreatedAt        time.Time
}

type InvoiceItemModel struct {
	ID          string
	InvoiceID   string
	ComponentID string
	Description string
	Amount      decimal.Decimal
}

type PaymentModel struct {
	ID            string
	InvoiceID     string
	StudentID     string
	Amount        decimal.Decimal
	Method        string
	Gateway       *string
	ExternalTxnID *string
	ReceiptNumber string
	Status        string
	PlanID        *string
	InstallmentNo *int
	ReceivedBy    string
	PaidAt        time.Time
	RefundedAt    *time.Time
	RefundedBy    *string
	RefundReason  *string
	CreatedAt     time.Time
}

type InstallmentPlanModel struct {
	ID                   string
	InvoiceID            string
	StudentID            string
	TotalAmount          decimal.Decimal
	NumberOfInstallments int
	InstallmentAmount    decimal.Decimal
	Frequency            string
	StartDate            time.Time
	Status               string
	CreatedAt            time.Time
}

type GatewayTransactionModel struct {
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
	Status          string
	ExpiresAt       time.Time
	RawResponse     []byte
	PaymentID       *string
	FailureReason   *string
	CreatedAt       time.Time
}
