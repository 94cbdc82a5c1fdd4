package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rajendrakhanal/schoolpay/internal/domain"
)

// SuccessResponse is the envelope every 2xx body uses.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(SuccessResponse{Success: true, Data: data})
}

type InvoiceItemView struct {
	ID          string `json:"id"`
	ComponentID string `json:"component_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

type InvoiceView struct {
	ID               string            `json:"id"`
	StudentID        string            `json:"student_id"`
	FeeDefinitionID  string            `json:"fee_definition_id"`
	PeriodID         string            `json:"period_id"`
	Number           string            `json:"number"`
	DueDate          time.Time         `json:"due_date"`
	Subtotal         string            `json:"subtotal"`
	Discount         string            `json:"discount"`
	DiscountReason   *string           `json:"discount_reason,omitempty"`
	DiscountApproval string            `json:"discount_approval"`
	TotalAmount      string            `json:"total_amount"`
	PaidAmount       string            `json:"paid_amount"`
	Balance          string            `json:"balance"`
	Status           string            `json:"status"`
	Items            []InvoiceItemView `json:"items"`
	CreatedAt        time.Time         `json:"created_at"`
}

func ToInvoiceView(inv *domain.Invoice) InvoiceView {
	items := make([]InvoiceItemView, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, InvoiceItemView{
			ID:          item.ID,
			ComponentID: item.ComponentID,
			Description: item.Description,
			Amount:      item.Amount.StringFixed(2),
		})
	}

	return InvoiceView{
		ID:               inv.ID,
		StudentID:        inv.StudentID,
		FeeDefinitionID:  inv.FeeDefinitionID,
		PeriodID:         inv.PeriodID,
		Number:           inv.Number,
		DueDate:          inv.DueDate,
		Subtotal:         inv.Subtotal.StringFixed(2),
		Discount:         inv.Discount.StringFixed(2),
		DiscountReason:   inv.DiscountReason,
		DiscountApproval: string(inv.DiscountApproval),
		TotalAmount:      inv.TotalAmount.StringFixed(2),
		PaidAmount:       inv.PaidAmount.StringFixed(2),
		Balance:          inv.Balance.StringFixed(2),
		Status:           string(inv.Status),
		Items:            items,
		CreatedAt:        inv.CreatedAt,
	}
}

type PaymentView struct {
	ID            string     `json:"id"`
	InvoiceID     string     `json:"invoice_id"`
	StudentID     string     `json:"student_id"`
	Amount        string     `json:"amount"`
	Method        string     `json:"method"`
	Gateway       *string    `json:"gateway,omitempty"`
	ExternalTxnID *string    `json:"external_txn_id,omitempty"`
	ReceiptNumber string     `json:"receipt_number"`
	Status        string     `json:"status"`
	PlanID        *string    `json:"plan_id,omitempty"`
	InstallmentNo *int       `json:"installment_no,omitempty"`
	ReceivedBy    string     `json:"received_by"`
	PaidAt        time.Time  `json:"paid_at"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	RefundedBy    *string    `json:"refunded_by,omitempty"`
	RefundReason  *string    `json:"refund_reason,omitempty"`
}

func ToPaymentView(p *domain.Payment) PaymentView {
	return PaymentView{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		StudentID:     p.StudentID,
		Amount:        p.Amount.StringFixed(2),
		Method:        string(p.Method),
		Gateway:       p.Gateway,
		ExternalTxnID: p.ExternalTxnID,
		ReceiptNumber: p.ReceiptNumber,
		Status:        string(p.Status),
		PlanID:        p.PlanID,
		InstallmentNo: p.InstallmentNo,
		ReceivedBy:    p.ReceivedBy,
		PaidAt:        p.PaidAt,
		RefundedAt:    p.RefundedAt,
		RefundedBy:    p.RefundedBy,
		RefundReason:  p.RefundReason,
	}
}

type PlanView struct {
	ID                   string    `json:"id"`
	InvoiceID            string    `json:"invoice_id"`
	StudentID            string    `json:"student_id"`
	TotalAmount          string    `json:"total_amount"`
	NumberOfInstallments int       `json:"number_of_installments"`
	InstallmentAmount    string    `json:"installment_amount"`
	Frequency            string    `json:"frequency"`
	StartDate            time.Time `json:"start_date"`
	Status               string    `json:"status"`
	PaidInstallments     int       `json:"paid_installments"`
}

func ToPlanView(plan *domain.InstallmentPlan, paidInstallments int) PlanView {
	return PlanView{
		ID:                   plan.ID,
		InvoiceID:            plan.InvoiceID,
		StudentID:            plan.StudentID,
		TotalAmount:          plan.TotalAmount.StringFixed(2),
		NumberOfInstallments: plan.NumberOfInstallments,
		InstallmentAmount:    plan.InstallmentAmount.StringFixed(2),
		Frequency:            string(plan.Frequency),
		StartDate:            plan.StartDate,
		Status:               string(plan.Status),
		PaidInstallments:     paidInstallments,
	}
}

type TransactionView struct {
	TransactionUUID string    `json:"transaction_uuid"`
	Gateway         string    `json:"gateway"`
	InvoiceID       string    `json:"invoice_id"`
	Amount          string    `json:"amount"`
	TaxAmount       string    `json:"tax_amount"`
	ServiceCharge   string    `json:"service_charge"`
	TotalAmount     string    `json:"total_amount"`
	Status          string    `json:"status"`
	ExpiresAt       time.Time `json:"expires_at"`
	PaymentID       *string   `json:"payment_id,omitempty"`
	FailureReason   *string   `json:"failure_reason,omitempty"`
}

func ToTransactionView(txn *domain.GatewayTransaction) TransactionView {
	return TransactionView{
		TransactionUUID: txn.TransactionUUID,
		Gateway:         txn.Gateway,
		InvoiceID:       txn.InvoiceID,
		Amount:          txn.Amount.StringFixed(2),
		TaxAmount:       txn.TaxAmount.StringFixed(2),
		ServiceCharge:   txn.ServiceCharge.StringFixed(2),
		TotalAmount:     txn.TotalAmount.StringFixed(2),
		Status:          string(txn.Status),
		ExpiresAt:       txn.ExpiresAt,
		PaymentID:       txn.PaymentID,
		FailureReason:   txn.FailureReason,
	}
}
