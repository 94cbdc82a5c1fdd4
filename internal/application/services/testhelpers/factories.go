package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rajendrakhanal/schoolpay/internal/application/services"
	"github.com/rajendrakhanal/schoolpay/internal/domain"
)

// DefaultInvoiceCommand returns a valid create command for a two-item
// tuition invoice due a month from now.
func DefaultInvoiceCommand() services.CreateInvoiceCommand {
	return services.CreateInvoiceCommand{
		StudentID:       "student-" + uuid.New().String(),
		FeeDefinitionID: "fee-" + uuid.New().String(),
		PeriodID:        "period-" + uuid.New().String(),
		DueDate:         time.Now().Add(30 * 24 * time.Hour),
		Items: []services.InvoiceItemInput{
			{ComponentID: "tuition", Description: "Tuition fee", Amount: decimal.NewFromInt(10000)},
			{ComponentID: "transport", Description: "Transport fee", Amount: decimal.NewFromInt(2000)},
		},
		Discount: decimal.Zero,
	}
}

// CreateTestInvoice creates a real invoice through the service layer.
func CreateTestInvoice(
	t *testing.T,
	ctx context.Context,
	invoiceService *services.InvoiceService,
) *domain.Invoice {
	inv, err := invoiceService.Create(ctx, DefaultInvoiceCommand())
	require.NoError(t, err)
	require.NotNil(t, inv)
	require.Equal(t, domain.InvoicePending, inv.Status)

	return inv
}

// DefaultPaymentCommand returns a valid cash payment command against the
// given invoice.
func DefaultPaymentCommand(inv *domain.Invoice, amount decimal.Decimal) services.ProcessPaymentCommand {
	return services.ProcessPaymentCommand{
		InvoiceID:  inv.ID,
		StudentID:  inv.StudentID,
		Amount:     amount,
		Method:     domain.MethodCash,
		Date:       time.Now(),
		ReceivedBy: "accountant-" + uuid.New().String(),
	}
}

// PayTestInvoice records a cash payment and asserts it completed.
func PayTestInvoice(
	t *testing.T,
	ctx context.Context,
	paymentService *services.PaymentService,
	inv *domain.Invoice,
	amount decimal.Decimal,
) *domain.Payment {
	payment, err := paymentService.Process(ctx, DefaultPaymentCommand(inv, amount))
	require.NoError(t, err)
	require.NotNil(t, payment)
	require.Equal(t, domain.PaymentCompleted, payment.Status)

	return payment
}
