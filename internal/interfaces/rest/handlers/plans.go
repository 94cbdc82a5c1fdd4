package handlers

import (
	"net/http"
	"time"

	"github.com/rajendrakhanal/schoolpay/internal/application/services"
	"github.com/rajendrakhanal/schoolpay/internal/domain"
	"github.com/rajendrakhanal/schoolpay/internal/interfaces/rest"
)

type createPlanRequest struct {
	NumberOfInstallments int       `json:"number_of_installments"`
	Frequency            string    `json:"frequency"`
	StartDate            time.Time `json:"start_date"`
}

func (h *Handlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	plan, err := h.installmentService.CreatePlan(r.Context(), services.CreatePlanCommand{
		InvoiceID:            r.PathValue("id"),
		NumberOfInstallments: req.NumberOfInstallments,
		Frequency:            domain.PlanFrequency(req.Frequency),
		StartDate:            req.StartDate,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.ToPlanView(plan, 0))
}

func (h *Handlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	summary, err := h.installmentService.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToPlanView(summary.Plan, summary.PaidInstallments))
}

type payInstallmentRequest struct {
	Index      int        `json:"index"`
	Method     string     `json:"method"`
	Date       *time.Time `json:"date"`
	ReceivedBy string     `json:"received_by"`
}

func (h *Handlers) PayInstallment(w http.ResponseWriter, r *http.Request) {
	var req payInstallmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	payment, err := h.installmentService.PayInstallment(r.Context(), services.PayInstallmentCommand{
		PlanID:     r.PathValue("id"),
		Index:      req.Index,
		Method:     domain.PaymentMethod(req.Method),
		Date:       date,
		ReceivedBy: req.ReceivedBy,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.ToPaymentView(payment))
}

func (h *Handlers) CancelPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.installmentService.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToPlanView(plan, 0))
}
