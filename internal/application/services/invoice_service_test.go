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

type InvoiceServiceTestSuite struct {
	suite.Suite
	testDB      *testhelpers.TestDatabase
	invoiceRepo *postgres.InvoiceRepository
	seqRepo     *postgres.SequenceRepository
	service     *services.InvoiceService
}

func TestInvoiceServiceSuite(t *testing.T) {
	suite.Run(t, new(InvoiceServiceTestSuite))
}

func (suite *InvoiceServiceTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.invoiceRepo = postgres.NewInvoiceRepository(suite.testDB.DB.Pool)
	suite.seqRepo = postgres.NewSequenceRepository(suite.testDB.DB.Pool)
}

func (suite *InvoiceServiceTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *InvoiceServiceTestSuite) SetupTest() {
	suite.testDB.CleanTables(suite.T())
	suite.service = services.NewInvoiceService(
		suite.invoiceRepo,
		suite.seqRepo,
		suite.testDB.DB.Pool,
	)
}

func (suite *InvoiceServiceTestSuite) TearDownTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *InvoiceServiceTestSuite) Test_Create_Success() {
	ctx := context.Background()
	t := suite.T()

	inv, err := suite.service.Create(ctx, testhelpers.DefaultInvoiceCommand())

	require.NoError(t, err)
	require.NotNil(t, inv)

	assert.Equal(t, domain.InvoicePending, inv.Status)
	assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(12000)))
	assert.True(t, inv.Balance.Equal(decimal.NewFromInt(12000)))
	assert.Len(t, inv.Items, 2)

	expectedPrefix := fmt.Sprintf("INV-%d-", time.Now().Year())
	assert.Contains(t, inv.Number, expectedPrefix)

	saved, err := suite.invoiceRepo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, saved.Number)
	assert.Len(t, saved.Items, 2)
}

func (suite *InvoiceServiceTestSuite) Test_Create_SequentialNumbers() {
	ctx := context.Background()
	t := suite.T()

	first, err := suite.service.Create(ctx, testhelpers.DefaultInvoiceCommand())
	require.NoError(t, err)

	second, err := suite.service.Create(ctx, testhelpers.DefaultInvoiceCommand())
	require.NoError(t, err)

	assert.NotEqual(t, first.Number, second.Number)
}

func (suite *InvoiceServiceTestSuite) Test_Create_DuplicateActiveInvoice_Rejected() {
	ctx := context.Background()
	t := suite.T()
	cmd := testhelpers.DefaultInvoiceCommand()

	_, err := suite.service.Create(ctx, cmd)
	require.NoError(t, err)

	_, err = suite.service.Create(ctx, cmd)
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeDuplicateInvoice))
}

func (suite *InvoiceServiceTestSuite) Test_Create_DuplicateRejectedBeforeNumbering() {
	ctx := context.Background()
	t := suite.T()
	cmd := testhelpers.DefaultInvoiceCommand()

	first, err := suite.service.Create(ctx, cmd)
	require.NoError(t, err)

	// The pre-check fires before a number is drawn, so a rejected
	// duplicate leaves no gap in the sequence.
	_, err = suite.service.Create(ctx, cmd)
	require.Error(t, err)

	next, err := suite.service.Create(ctx, testhelpers.DefaultInvoiceCommand())
	require.NoError(t, err)

	var firstSeq, nextSeq int
	var year int
	_, err = fmt.Sscanf(first.Number, "INV-%d-%05d", &year, &firstSeq)
	require.NoError(t, err)
	_, err = fmt.Sscanf(next.Number, "INV-%d-%05d", &year, &nextSeq)
	require.NoError(t, err)
	assert.Equal(t, firstSeq+1, nextSeq)
}

func (suite *InvoiceServiceTestSuite) Test_Create_AfterCancel_Allowed() {
	ctx := context.Background()
	t := suite.T()
	cmd := testhelpers.DefaultInvoiceCommand()

	first, err := suite.service.Create(ctx, cmd)
	require.NoError(t, err)

	_, err = suite.service.Cancel(ctx, first.ID)
	require.NoError(t, err)

	second, err := suite.service.Create(ctx, cmd)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func (suite *InvoiceServiceTestSuite) Test_DiscountWorkflow() {
	ctx := context.Background()
	t := suite.T()
	reason := "scholarship"

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.service)

	inv, err := suite.service.ApplyDiscount(ctx, inv.ID, decimal.NewFromInt(2000), &reason)
	require.NoError(t, err)
	assert.Equal(t, domain.DiscountPendingApproval, inv.DiscountApproval)
	assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(10000)))

	inv, err = suite.service.ApproveDiscount(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DiscountApproved, inv.DiscountApproval)
	assert.True(t, inv.Balance.Equal(decimal.NewFromInt(10000)))
}

func (suite *InvoiceServiceTestSuite) Test_RejectDiscount_RestoresTotals() {
	ctx := context.Background()
	t := suite.T()
	reason := "sibling discount"

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.service)

	_, err := suite.service.ApplyDiscount(ctx, inv.ID, decimal.NewFromInt(2000), &reason)
	require.NoError(t, err)

	inv, err = suite.service.RejectDiscount(ctx, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.DiscountRejected, inv.DiscountApproval)
	assert.True(t, inv.Discount.IsZero())
	assert.True(t, inv.Balance.Equal(decimal.NewFromInt(12000)))
}

func (suite *InvoiceServiceTestSuite) Test_ApproveDiscount_NothingPending() {
	ctx := context.Background()
	t := suite.T()

	inv := testhelpers.CreateTestInvoice(t, ctx, suite.service)

	_, err := suite.service.ApproveDiscount(ctx, inv.ID)
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeNothingToApprove))
}

func (suite *InvoiceServiceTestSuite) Test_Regenerate_CancelsAndReplaces() {
	ctx := context.Background()
	t := suite.T()

	old := testhelpers.CreateTestInvoice(t, ctx, suite.service)
	newDue := time.Now().Add(60 * 24 * time.Hour)

	replacement, err := suite.service.Regenerate(ctx, old.ID, newDue)
	require.NoError(t, err)

	assert.NotEqual(t, old.ID, replacement.ID)
	assert.NotEqual(t, old.Number, replacement.Number)
	assert.Equal(t, old.StudentID, replacement.StudentID)
	assert.True(t, replacement.Subtotal.Equal(old.Subtotal))
	assert.Len(t, replacement.Items, len(old.Items))

	cancelled, err := suite.service.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceCancelled, cancelled.Status)
}

func (suite *InvoiceServiceTestSuite) Test_Get_NotFound() {
	ctx := context.Background()
	t := suite.T()

	_, err := suite.service.Get(ctx, "missing-id")
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeNotFound))
}

func (suite *InvoiceServiceTestSuite) Test_ListByStudent() {
	ctx := context.Background()
	t := suite.T()

	cmd := testhelpers.DefaultInvoiceCommand()
	first, err := suite.service.Create(ctx, cmd)
	require.NoError(t, err)

	other := testhelpers.DefaultInvoiceCommand()
	other.StudentID = cmd.StudentID
	_, err = suite.service.Create(ctx, other)
	require.NoError(t, err)

	invoices, err := suite.service.ListByStudent(ctx, first.StudentID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, invoices, 2)
}

func (suite *InvoiceServiceTestSuite) Test_MarkOverdueBatch_Sweep() {
	ctx := context.Background()
	t := suite.T()

	unpaid := testhelpers.CreateTestInvoice(t, ctx, suite.service)

	// Due in 30 days; sweeping from a point past that must flip it.
	future := time.Now().Add(31 * 24 * time.Hour)
	count, err := suite.service.MarkOverdueBatch(ctx, future)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	swept, err := suite.service.Get(ctx, unpaid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceOverdue, swept.Status)

	// Idempotent: a second sweep touches nothing.
	count, err = suite.service.MarkOverdueBatch(ctx, future)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func (suite *InvoiceServiceTestSuite) Test_MarkOverdueBatch_SkipsFutureDue() {
	ctx := context.Background()
	t := suite.T()

	testhelpers.CreateTestInvoice(t, ctx, suite.service)

	count, err := suite.service.MarkOverdueBatch(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
