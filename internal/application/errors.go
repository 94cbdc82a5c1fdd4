// Package application carries the orchestration-level error surface shared
// by the services and the REST edge.
package application

import (
	"errors"
	"net/http"

	"github.com/rajendrakhanal/schoolpay/internal/domain"
)

// ServiceError wraps unexpected infrastructure failures so the edge can
// distinguish them from business rejections.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeInvalidInput = "INVALID_INPUT"
)

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}

// ToHTTPStatus maps domain and service errors to HTTP status codes.
func ToHTTPStatus(err error) int {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.HTTPStatus
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case domain.ErrCodeNotFound:
			return http.StatusNotFound
		case domain.ErrCodeDuplicateInvoice,
			domain.ErrCodeDuplicateTransaction,
			domain.ErrCodeInvalidState,
			domain.ErrCodePlanAlreadyActive,
			domain.ErrCodePlanCompleted,
			domain.ErrCodeAlreadyRefunded,
			domain.ErrCodeInvalidTransition,
			domain.ErrCodeExpired:
			return http.StatusConflict
		case domain.ErrCodeInvalidAmount,
			domain.ErrCodeNothingToApprove,
			domain.ErrCodeAmountMismatch:
			return http.StatusBadRequest
		case domain.ErrCodeSignatureInvalid:
			return http.StatusForbidden
		}
	}

	return http.StatusInternalServerError
}

// ToErrorCode extracts the machine-readable error code for the response body.
func ToErrorCode(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	return ErrCodeInternal
}
