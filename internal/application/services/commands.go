package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rajendrakhanal/schoolpay/internal/domain"
)

type InvoiceItemInput struct {
	ComponentID string
	Description string
	Amount      decimal.Decimal
}

type CreateInvoiceCommand struct {
	StudentID       string
	FeeDefinitionID string
	PeriodID        string
	DueDate         time.Time
	Items           []InvoiceItemInput
	Discount        decimal.Decimal
	DiscountReason  *string
}

type ProcessPaymentCommand struct {
	InvoiceID     string
	StudentID     string
	Amount        decimal.Decimal
	Method        domain.PaymentMethod
	Gateway       *string
	Date          time.Time
	ReceivedBy    string
	ExternalTxnID *string
	PlanID        *string
	InstallmentNo *int
}

type CreatePlanCommand struct {
	InvoiceID            string
	NumberOfInstallments int
	Frequency            domain.PlanFrequency
	StartDate            time.Time
}

type PayInstallmentCommand struct {
	PlanID     string
	Index      int
	Method     domain.PaymentMethod
	Date       time.Time
	ReceivedBy string
}

type InitiateGatewayCommand struct {
	InvoiceID     string
	StudentID     string
	Amount        decimal.Decimal
	TaxAmount     decimal.Decimal
	ServiceCharge decimal.Decimal
}
