package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PlanStatus represents the current state of an installment plan
type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanCancelled PlanStatus = "cancelled"
)

// PlanFrequency is the cadence of the installment schedule
type PlanFrequency string

const (
	FrequencyWeekly  PlanFrequency = "weekly"
	FrequencyMonthly PlanFrequency = "monthly"
	FrequencyTermly  PlanFrequency = "termly"
)

// InstallmentPlan divides one invoice's balance at plan creation time into
// N equal charges. At most one active plan may exist per invoice. The stored
// InstallmentAmount is informational; the charge actually collected for each
// installment is derived from the invoice's live balance at payment time so
// a later discount decision cannot make the schedule drift from the ledger.
type InstallmentPlan struct {
	ID                   string
	InvoiceID            string
	StudentID            string
	TotalAmount          decimal.Decimal
	NumberOfInstallments int
	InstallmentAmount    decimal.Decimal
	Frequency            PlanFrequency
	StartDate            time.Time
	Status               PlanStatus
	CreatedAt            time.Time
}

func NewInstallmentPlan(
	id string,
	invoiceID string,
	studentID string,
	totalAmount decimal.Decimal,
	numberOfInstallments int,
	frequency PlanFrequency,
	startDate time.Time,
	now time.Time,
) (*InstallmentPlan, error) {
	if id == "" {
		return nil, errors.New("plan ID is required")
	}
	if invoiceID == "" {
		return nil, errors.New("invoice ID is required")
	}
	if numberOfInstallments < 2 {
		return nil, errors.New("an installment plan needs at least two installments")
	}
	if !totalAmount.IsPositive() {
		return nil, NewInvalidAmountError(totalAmount)
	}

	n := decimal.NewFromInt(int64(numberOfInstallments))
	return &InstallmentPlan{
		ID:                   id,
		InvoiceID:            invoiceID,
		StudentID:            studentID,
		TotalAmount:          totalAmount,
		NumberOfInstallments: numberOfInstallments,
		InstallmentAmount:    totalAmount.Div(n).Round(2),
		Frequency:            frequency,
		StartDate:            startDate,
		Status:               PlanActive,
		CreatedAt:            now,
	}, nil
}

// ValidIndex reports whether the installment index is within 1..N.
func (p *InstallmentPlan) ValidIndex(index int) bool {
	return index >= 1 && index <= p.NumberOfInstallments
}

// Complete marks the plan finished once every installment is paid.
func (p *InstallmentPlan) Complete() error {
	if p.Status != PlanActive {
		return NewInvalidStateError("installment plan", p.ID, string(p.Status))
	}
	p.Status = PlanCompleted
	return nil
}

// Cancel terminates an unfinished plan.
func (p *InstallmentPlan) Cancel() error {
	if p.Status == PlanCompleted {
		return NewPlanCompletedError(p.ID)
	}
	if p.Status == PlanCancelled {
		return NewInvalidStateError("installment plan", p.ID, string(p.Status))
	}
	p.Status = PlanCancelled
	return nil
}
