package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rajendrakhanal/schoolpay/internal/application/services"
	"github.com/rajendrakhanal/schoolpay/internal/domain"
	"github.com/rajendrakhanal/schoolpay/internal/interfaces/rest"
)

type processPaymentRequest struct {
	StudentID     string          `json:"student_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Date          *time.Time      `json:"date"`
	ReceivedBy    string          `json:"received_by"`
	ExternalTxnID *string         `json:"external_txn_id"`
}

func (h *Handlers) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	payment, err := h.paymentService.Process(r.Context(), services.ProcessPaymentCommand{
		InvoiceID:     r.PathValue("id"),
		StudentID:     req.StudentID,
		Amount:        req.Amount,
		Method:        domain.PaymentMethod(req.Method),
		Date:          date,
		ReceivedBy:    req.ReceivedBy,
		ExternalTxnID: req.ExternalTxnID,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.ToPaymentView(payment))
}

type refundRequest struct {
	RefundedBy string `json:"refunded_by"`
	Reason     string `json:"reason"`
}

func (h *Handlers) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if !h.decode(w, r, &req) {
		return
	}

	payment, err := h.paymentService.Refund(r.Context(), r.PathValue("id"), req.RefundedBy, req.Reason)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToPaymentView(payment))
}

func (h *Handlers) GetPaymentByReceipt(w http.ResponseWriter, r *http.Request) {
	payment, err := h.paymentService.GetByReceipt(r.Context(), r.PathValue("number"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToPaymentView(payment))
}

func (h *Handlers) ListInvoicePayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.paymentService.ListByInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	views := make([]rest.PaymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, rest.ToPaymentView(p))
	}
	rest.WriteJSON(w, http.StatusOK, views)
}
