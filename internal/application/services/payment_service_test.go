package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/rajendrakhanal/schoolpay/internal/application/services"
	"github.com/rajendrakhanal/schoolpay/internal/application/services/testhelpers"
	"github.com/rajendrakhanal/schoolpay/internal/domain"
	"github.com/rajendrakhanal/schoolpay/internal/infrastructure/persistence/postgres"
)

type PaymentServiceTestSuite struct {
	suite.Suite
	testDB         *testhelpers.TestDatabase
	invoiceRepo    *postgres.InvoiceRepository
	paymentRepo    *postgres.PaymentRepository
	planRepo       *postgres.InstallmentRepository
	seqRepo        *postgres.SequenceRepository
	invoiceService *services.InvoiceService
	service        *services.PaymentService
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceTestSuite))
}

func (suite *PaymentServiceTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.invoiceRepo = postgres.NewInvoiceRepository(suite.testDB.DB.Pool)
	suite.paymentRepo = postgres.NewPaymentRepository(suite.testDB.DB.Pool)
	suite.planRepo = postgres.NewInstallmentRepository(suite.testDB.DB.Pool)
	suite.seqRepo = postgres.NewSequenceRepository(suite.testDB.DB.Pool)
}

func (suite *PaymentServiceTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *PaymentServiceTestSuite) SetupTest() {
	suite.testDB.CleanTables(suite.T())
	suite.invoiceService = services.NewInvoiceService(
		suite.invoiceRepo,
		suite.seqRepo,
		suite.testDB.DB.Pool,
	)
	suite.service = services.NewPaymentService(
		suite.invoiceRepo,
		suite.paymentRepo,
		suite.planRepo,
		suite.seqRepo,
		suite.testDB.DB.Pool,
	)
}

func (suite *PaymentServiceTestSuite) TearDownTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *PaymentServiceTestSuite) Test_Process_FullPayment() {
	ctx := context.Background()
	t := suite.T()

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.invoiceService)

	payment, err := suite.service.Process(ctx, testhelpers.DefaultPaymentCommand(inv, decimal.NewFromInt(12000)))
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentCompleted, payment.Status)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(12000)))

	expectedPrefix := fmt.Sprintf("RCP-%d-", time.Now().Year())
	assert.Contains(t, payment.ReceiptNumber, expectedPrefix)

	updated, err := suite.invoiceService.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, updated.Status)
	assert.True(t, updated.Balance.IsZero())
}

func (suite *PaymentServiceTestSuite) Test_Process_PartialPayments_AccumulateToPaid() {
	ctx := context.Background()
	t := suite.T()

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.invoiceService)

	testhelpers.PayTestInvoice(t, ctx, suite.service, inv, decimal.NewFromInt(5000))

	partial, err := suite.invoiceService.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePartial, partial.Status)
	assert.True(t, partial.Balance.Equal(decimal.NewFromInt(7000)))

	testhelpers.PayTestInvoice(t, ctx, suite.service, inv, decimal.NewFromInt(7000))

	paid, err := suite.invoiceService.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, paid.Status)
}

func (suite *PaymentServiceTestSuite) Test_Process_UniqueReceiptNumbers() {
	ctx := context.Background()
	t := suite.T()

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.invoiceService)

	first := testhelpers.PayTestInvoice(t, ctx, suite.service, inv, decimal.NewFromInt(1000))
	second := testhelpers.PayTestInvoice(t, ctx, suite.service, inv, decimal.NewFromInt(1000))

	assert.NotEqual(t, first.ReceiptNumber, second.ReceiptNumber)
}

func (suite *PaymentServiceTestSuite) Test_Process_AmountExceedsBalance() {
	ctx := context.Background()
	t := suite.T()

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.invoiceService)

	_, err := suite.service.Process(ctx, testhelpers.DefaultPaymentCommand(inv, decimal.NewFromInt(12001)))
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))

	// The rejected attempt must leave no trace.
	payments, err := suite.service.ListByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	untouched, err := suite.invoiceService.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, untouched.PaidAmount.IsZero())
}

func (suite *PaymentServiceTestSuite) Test_Process_NonPositiveAmount() {
	ctx := context.Background()
	t := suite.T()

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.invoiceService)

	_, err := suite.service.Process(ctx, testhelpers.DefaultPaymentCommand(inv, decimal.Zero))
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))
}

func (suite *PaymentServiceTestSuite) Test_Process_CancelledInvoice() {
	ctx := context.Background()
	t := suite.T()

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.invoiceService)
	_, err := suite.invoiceService.Cancel(ctx, inv.ID)
	require.NoError(t, err)

	_, err = suite.service.Process(ctx, testhelpers.DefaultPaymentCommand(inv, decimal.NewFromInt(1000)))
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidState))
}

func (suite *PaymentServiceTestSuite) Test_Process_DuplicateExternalTxn() {
	ctx := context.Background()
	t := suite.T()

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.invoiceService)
	externalID := "esewa-txn-001"

	cmd := testhelpers.DefaultPaymentCommand(inv, decimal.NewFromInt(1000))
	cmd.Method = domain.MethodGateway
	cmd.ExternalTxnID = &externalID

	_, err := suite.service.Process(ctx, cmd)
	require.NoError(t, err)

	replay := testhelpers.DefaultPaymentCommand(inv, decimal.NewFromInt(1000))
	replay.Method = domain.MethodGateway
	replay.ExternalTxnID = &externalID

	_, err = suite.service.Process(ctx, replay)
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeDuplicateTransaction))

	// Only the first payment landed.
	payments, err := suite.service.ListByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func (suite *PaymentServiceTestSuite) Test_Refund_RoundTrip() {
	ctx := context.Background()
	t := suite.T()

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.invoiceService)
	payment := testhelpers.PayTestInvoice(t, ctx, suite.service, inv, decimal.NewFromInt(12000))

	refunded, err := suite.service.Refund(ctx, payment.ID, "registrar-1", "withdrawal")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundedBy)
	assert.Equal(t, "registrar-1", *refunded.RefundedBy)
	require.NotNil(t, refunded.RefundReason)
	assert.Equal(t, "withdrawal", *refunded.RefundReason)

	restored, err := suite.invoiceService.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, restored.PaidAmount.IsZero())
	assert.True(t, restored.Balance.Equal(decimal.NewFromInt(12000)))
	assert.NotEqual(t, domain.InvoicePaid, restored.Status)
}

func (suite *PaymentServiceTestSuite) Test_Refund_Twice_Rejected() {
	ctx := context.Background()
	t := suite.T()

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.invoiceService)
	payment := testhelpers.PayTestInvoice(t, ctx, suite.service, inv, decimal.NewFromInt(1000))

	_, err := suite.service.Refund(ctx, payment.ID, "registrar-1", "error")
	require.NoError(t, err)

	_, err = suite.service.Refund(ctx, payment.ID, "registrar-1", "error again")
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeAlreadyRefunded))
}

func (suite *PaymentServiceTestSuite) Test_Refund_UnknownPayment() {
	ctx := context.Background()
	t := suite.T()

	_, err := suite.service.Refund(ctx, "missing-id", "registrar-1", "typo")
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeNotFound))
}

func (suite *PaymentServiceTestSuite) Test_GetByReceipt() {
	ctx := context.Background()
	t := suite.T()

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.invoiceService)
	payment := testhelpers.PayTestInvoice(t, ctx, suite.service, inv, decimal.NewFromInt(1000))

	found, err := suite.service.GetByReceipt(ctx, payment.ReceiptNumber)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, found.ID)

	_, err = suite.service.GetByReceipt(ctx, "RCP-1999-99999")
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeNotFound))
}
