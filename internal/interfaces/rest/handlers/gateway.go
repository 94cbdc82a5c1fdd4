package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rajendrakhanal/schoolpay/internal/application"
	"github.com/rajendrakhanal/schoolpay/internal/application/services"
	"github.com/rajendrakhanal/schoolpay/internal/infrastructure/gateway"
	"github.com/rajendrakhanal/schoolpay/internal/interfaces/rest"
)

// gatewayActor is recorded as the receiver on payments created from
// gateway callbacks, which arrive with no authenticated user.
const gatewayActor = "system:gateway"

type initiateRequest struct {
	InvoiceID     string          `json:"invoice_id"`
	StudentID     string          `json:"student_id"`
	Amount        decimal.Decimal `json:"amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
}

type initiateResponse struct {
	TransactionUUID string `json:"transaction_uuid"`
	TotalAmount     string `json:"total_amount"`
	ProductCode     string `json:"product_code"`
	Signature       string `json:"signature"`
	ExpiresAt       string `json:"expires_at"`
}

func (h *Handlers) InitiateGateway(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.gatewayService.Initiate(r.Context(), services.InitiateGatewayCommand{
		InvoiceID:     req.InvoiceID,
		StudentID:     req.StudentID,
		Amount:        req.Amount,
		TaxAmount:     req.TaxAmount,
		ServiceCharge: req.ServiceCharge,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, initiateResponse{
		TransactionUUID: result.TransactionUUID,
		TotalAmount:     result.TotalAmount.StringFixed(2),
		ProductCode:     result.ProductCode,
		Signature:       result.Signature,
		ExpiresAt:       result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type callbackResponse struct {
	TransactionUUID  string  `json:"transaction_uuid"`
	Status           string  `json:"status"`
	Message          string  `json:"message"`
	AlreadyProcessed bool    `json:"already_processed,omitempty"`
	PaymentID        *string `json:"payment_id,omitempty"`
}

// GatewayCallback receives the gateway's completion notification. The
// payload arrives either as form fields or a flat JSON object; rejected
// callbacks still get a 200 with the failure status in the body so the
// gateway stops retrying.
func (h *Handlers) GatewayCallback(w http.ResponseWriter, r *http.Request) {
	values, err := callbackValues(r)
	if err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	payload, err := gateway.ParseCallback(values)
	if err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	result, err := h.gatewayService.HandleCallback(r.Context(), payload, gatewayActor)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, callbackResponse{
		TransactionUUID:  result.TransactionUUID,
		Status:           string(result.Status),
		Message:          result.Message,
		AlreadyProcessed: result.AlreadyProcessed,
		PaymentID:        result.PaymentID,
	})
}

type failureRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) GatewayFailure(w http.ResponseWriter, r *http.Request) {
	var req failureRequest
	if !h.decode(w, r, &req) {
		return
	}

	txn, err := h.gatewayService.HandleFailure(r.Context(), r.PathValue("uuid"), req.Reason)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToTransactionView(txn))
}

func (h *Handlers) GetGatewayStatus(w http.ResponseWriter, r *http.Request) {
	txn, err := h.gatewayService.GetStatus(r.Context(), r.PathValue("uuid"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToTransactionView(txn))
}

// callbackValues flattens the delivery into field name/value pairs.
func callbackValues(r *http.Request) (map[string]string, error) {
	values := map[string]string{}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decode callback body: %w", err)
		}
		for k, v := range body {
			values[k] = fmt.Sprint(v)
		}
		return values, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse callback form: %w", err)
	}
	for k := range r.Form {
		values[k] = r.Form.Get(k)
	}
	return values, nil
}
