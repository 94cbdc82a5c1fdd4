package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rajendrakhanal/schoolpay/internal/application/services"
	"github.com/rajendrakhanal/schoolpay/internal/interfaces/rest"
)

type invoiceItemRequest struct {
	ComponentID string          `json:"component_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type createInvoiceRequest struct {
	StudentID       string               `json:"student_id"`
	FeeDefinitionID string               `json:"fee_definition_id"`
	PeriodID        string               `json:"period_id"`
	DueDate         time.Time            `json:"due_date"`
	Items           []invoiceItemRequest `json:"items"`
	Discount        decimal.Decimal      `json:"discount"`
	DiscountReason  *string              `json:"discount_reason"`
}

func (h *Handlers) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if !h.decode(w, r, &req) {
		return
	}

	items := make([]services.InvoiceItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.InvoiceItemInput{
			ComponentID: item.ComponentID,
			Description: item.Description,
			Amount:      item.Amount,
		})
	}

	inv, err := h.invoiceService.Create(r.Context(), services.CreateInvoiceCommand{
		StudentID:       req.StudentID,
		FeeDefinitionID: req.FeeDefinitionID,
		PeriodID:        req.PeriodID,
		DueDate:         req.DueDate,
		Items:           items,
		Discount:        req.Discount,
		DiscountReason:  req.DiscountReason,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.ToInvoiceView(inv))
}

func (h *Handlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoiceService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToInvoiceView(inv))
}

func (h *Handlers) ListStudentInvoices(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)

	invoices, err := h.invoiceService.ListByStudent(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	views := make([]rest.InvoiceView, 0, len(invoices))
	for _, inv := range invoices {
		views = append(views, rest.ToInvoiceView(inv))
	}
	rest.WriteJSON(w, http.StatusOK, views)
}

type discountRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason *string         `json:"reason"`
}

func (h *Handlers) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if !h.decode(w, r, &req) {
		return
	}

	inv, err := h.invoiceService.ApplyDiscount(r.Context(), r.PathValue("id"), req.Amount, req.Reason)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToInvoiceView(inv))
}

func (h *Handlers) ApproveDiscount(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoiceService.ApproveDiscount(r.Context(), r.PathValue("id"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToInvoiceView(inv))
}

func (h *Handlers) RejectDiscount(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoiceService.RejectDiscount(r.Context(), r.PathValue("id"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToInvoiceView(inv))
}

func (h *Handlers) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoiceService.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToInvoiceView(inv))
}

type regenerateRequest struct {
	DueDate time.Time `json:"due_date"`
}

func (h *Handlers) RegenerateInvoice(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if !h.decode(w, r, &req) {
		return
	}

	inv, err := h.invoiceService.Regenerate(r.Context(), r.PathValue("id"), req.DueDate)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, rest.ToInvoiceView(inv))
}

func paginationParams(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
