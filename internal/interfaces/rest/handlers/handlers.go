// Package handlers exposes the ledger services over HTTP. Handlers decode,
// delegate and encode; every business rule lives in the service layer.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rajendrakhanal/schoolpay/internal/application"
	"github.com/rajendrakhanal/schoolpay/internal/application/services"
	"github.com/rajendrakhanal/schoolpay/internal/interfaces/rest"
)

type Handlers struct {
	invoiceService     *services.InvoiceService
	paymentService     *services.PaymentService
	installmentService *services.InstallmentService
	gatewayService     *services.GatewayService
	logger             *slog.Logger
}

func NewHandlers(
	invoiceService *services.InvoiceService,
	paymentService *services.PaymentService,
	installmentService *services.InstallmentService,
	gatewayService *services.GatewayService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		invoiceService:     invoiceService,
		paymentService:     paymentService,
		installmentService: installmentService,
		gatewayService:     gatewayService,
		logger:             logger,
	}
}

// Routes registers every endpoint on the mux.
func (h *Handlers) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /invoices", h.CreateInvoice)
	mux.HandleFunc("GET /invoices/{id}", h.GetInvoice)
	mux.HandleFunc("GET /students/{id}/invoices", h.ListStudentInvoices)
	mux.HandleFunc("POST /invoices/{id}/discount", h.ApplyDiscount)
	mux.HandleFunc("POST /invoices/{id}/discount/approve", h.ApproveDiscount)
	mux.HandleFunc("POST /invoices/{id}/discount/reject", h.RejectDiscount)
	mux.HandleFunc("POST /invoices/{id}/cancel", h.CancelInvoice)
	mux.HandleFunc("POST /invoices/{id}/regenerate", h.RegenerateInvoice)

	mux.HandleFunc("POST /invoices/{id}/payments", h.ProcessPayment)
	mux.HandleFunc("GET /invoices/{id}/payments", h.ListInvoicePayments)
	mux.HandleFunc("POST /payments/{id}/refund", h.RefundPayment)
	mux.HandleFunc("GET /receipts/{number}", h.GetPaymentByReceipt)

	mux.HandleFunc("POST /invoices/{id}/installment-plans", h.CreatePlan)
	mux.HandleFunc("GET /installment-plans/{id}", h.GetPlan)
	mux.HandleFunc("POST /installment-plans/{id}/pay", h.PayInstallment)
	mux.HandleFunc("POST /installment-plans/{id}/cancel", h.CancelPlan)

	mux.HandleFunc("POST /gateway/initiate", h.InitiateGateway)
	mux.HandleFunc("POST /gateway/callback", h.GatewayCallback)
	mux.HandleFunc("POST /gateway/{uuid}/failure", h.GatewayFailure)
	mux.HandleFunc("GET /gateway/{uuid}", h.GetGatewayStatus)
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return false
	}
	return true
}
