package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajendrakhanal/schoolpay/internal/domain"
)

func testItems(amounts ...int64) []domain.InvoiceItem {
	items := make([]domain.InvoiceItem, 0, len(amounts))
	for i, a := range amounts {
		items = append(items, domain.InvoiceItem{
			ID:          "item-" + string(rune('a'+i)),
			ComponentID: "component-" + string(rune('a'+i)),
			Description: "fee component",
			Amount:      decimal.NewFromInt(a),
		})
	}
	return items
}

func newTestInvoice(t *testing.T, amounts ...int64) *domain.Invoice {
	t.Helper()
	inv, err := domain.NewInvoice(
		"inv-123", "student-1", "fee-1", "period-1", "INV-2026-00001",
		time.Now().Add(30*24*time.Hour),
		testItems(amounts...),
		decimal.Zero, nil,
		time.Now(),
	)
	require.NoError(t, err)
	return inv
}

func TestNewInvoice(t *testing.T) {
	t.Run("creates invoice with derived totals", func(t *testing.T) {
		inv := newTestInvoice(t, 10000, 2000)

		assert.Equal(t, domain.InvoicePending, inv.Status)
		assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(12000)))
		assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(12000)))
		assert.True(t, inv.Balance.Equal(decimal.NewFromInt(12000)))
		assert.True(t, inv.PaidAmount.IsZero())
		assert.Equal(t, domain.DiscountNone, inv.DiscountApproval)
	})

	t.Run("rejects empty item list", func(t *testing.T) {
		_, err := domain.NewInvoice(
			"inv-123", "student-1", "fee-1", "period-1", "INV-2026-00001",
			time.Now(), nil, decimal.Zero, nil, time.Now(),
		)
		assert.Error(t, err)
	})

	t.Run("rejects non-positive item amounts", func(t *testing.T) {
		_, err := domain.NewInvoice(
			"inv-123", "student-1", "fee-1", "period-1", "INV-2026-00001",
			time.Now(), testItems(0), decimal.Zero, nil, time.Now(),
		)
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))
	})

	t.Run("rejects discount exceeding subtotal", func(t *testing.T) {
		reason := "scholarship"
		_, err := domain.NewInvoice(
			"inv-123", "student-1", "fee-1", "period-1", "INV-2026-00001",
			time.Now(), testItems(1000), decimal.NewFromInt(1500), &reason, time.Now(),
		)
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))
	})

	t.Run("discount at creation starts pending approval", func(t *testing.T) {
		reason := "sibling discount"
		inv, err := domain.NewInvoice(
			"inv-123", "student-1", "fee-1", "period-1", "INV-2026-00001",
			time.Now().Add(24*time.Hour), testItems(10000), decimal.NewFromInt(1000), &reason, time.Now(),
		)
		require.NoError(t, err)

		assert.Equal(t, domain.DiscountPendingApproval, inv.DiscountApproval)
		assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(9000)))
		assert.True(t, inv.Balance.Equal(decimal.NewFromInt(9000)))
	})
}

func TestInvoiceRecordPayment(t *testing.T) {
	t.Run("partial payment moves to partial", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)

		err := inv.RecordPayment(decimal.NewFromInt(4000), time.Now())
		require.NoError(t, err)

		assert.Equal(t, domain.InvoicePartial, inv.Status)
		assert.True(t, inv.PaidAmount.Equal(decimal.NewFromInt(4000)))
		assert.True(t, inv.Balance.Equal(decimal.NewFromInt(6000)))
	})

	t.Run("full payment moves to paid", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)

		require.NoError(t, inv.RecordPayment(decimal.NewFromInt(10000), time.Now()))

		assert.Equal(t, domain.InvoicePaid, inv.Status)
		assert.True(t, inv.Balance.IsZero())
	})

	t.Run("balance always equals total minus paid", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)

		for _, amount := range []int64{1000, 2500, 500} {
			require.NoError(t, inv.RecordPayment(decimal.NewFromInt(amount), time.Now()))
			assert.True(t, inv.Balance.Equal(inv.TotalAmount.Sub(inv.PaidAmount)))
			assert.False(t, inv.Balance.IsNegative())
		}
	})

	t.Run("rejects amount exceeding balance", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)

		err := inv.RecordPayment(decimal.NewFromInt(10001), time.Now())
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)

		err := inv.RecordPayment(decimal.Zero, time.Now())
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))
	})

	t.Run("rejects payment on cancelled invoice", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)
		require.NoError(t, inv.Cancel())

		err := inv.RecordPayment(decimal.NewFromInt(100), time.Now())
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidState))
	})
}

func TestInvoiceDiscountFlow(t *testing.T) {
	t.Run("apply reduces totals immediately", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)
		reason := "scholarship"

		require.NoError(t, inv.ApplyDiscount(decimal.NewFromInt(2000), &reason, time.Now()))

		assert.Equal(t, domain.DiscountPendingApproval, inv.DiscountApproval)
		assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(8000)))
		assert.True(t, inv.Balance.Equal(decimal.NewFromInt(8000)))
	})

	t.Run("approve only flips approval state", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)
		reason := "scholarship"
		require.NoError(t, inv.ApplyDiscount(decimal.NewFromInt(2000), &reason, time.Now()))

		require.NoError(t, inv.ApproveDiscount())

		assert.Equal(t, domain.DiscountApproved, inv.DiscountApproval)
		assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(8000)))
	})

	t.Run("reject restores totals", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)
		reason := "scholarship"
		require.NoError(t, inv.ApplyDiscount(decimal.NewFromInt(2000), &reason, time.Now()))

		require.NoError(t, inv.RejectDiscount(time.Now()))

		assert.Equal(t, domain.DiscountRejected, inv.DiscountApproval)
		assert.True(t, inv.Discount.IsZero())
		assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(10000)))
		assert.True(t, inv.Balance.Equal(decimal.NewFromInt(10000)))
	})

	t.Run("approve without pending discount fails", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)

		err := inv.ApproveDiscount()
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeNothingToApprove))
	})

	t.Run("discount capped at unpaid portion", func(t *testing.T) {
		inv := newTestInvoice(t, 100)
		require.NoError(t, inv.RecordPayment(decimal.NewFromInt(90), time.Now()))

		err := inv.ApplyDiscount(decimal.NewFromInt(50), nil, time.Now())
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))
		assert.False(t, inv.Balance.IsNegative())
		assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(100)))

		require.NoError(t, inv.ApplyDiscount(decimal.NewFromInt(10), nil, time.Now()))
		assert.True(t, inv.Balance.IsZero())
	})

	t.Run("discount rejected on paid invoice", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)
		require.NoError(t, inv.RecordPayment(decimal.NewFromInt(10000), time.Now()))

		err := inv.ApplyDiscount(decimal.NewFromInt(1000), nil, time.Now())
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidState))
	})
}

func TestInvoiceReversePayment(t *testing.T) {
	t.Run("reverses a recorded payment", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)
		require.NoError(t, inv.RecordPayment(decimal.NewFromInt(10000), time.Now()))
		require.Equal(t, domain.InvoicePaid, inv.Status)

		require.NoError(t, inv.ReversePayment(decimal.NewFromInt(10000), time.Now()))

		assert.True(t, inv.PaidAmount.IsZero())
		assert.True(t, inv.Balance.Equal(decimal.NewFromInt(10000)))
		assert.NotEqual(t, domain.InvoicePaid, inv.Status)
	})

	t.Run("rejects reversal exceeding paid amount", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)
		require.NoError(t, inv.RecordPayment(decimal.NewFromInt(2000), time.Now()))

		err := inv.ReversePayment(decimal.NewFromInt(3000), time.Now())
		assert.Error(t, err)
	})
}

func TestInvoiceCancel(t *testing.T) {
	t.Run("cancels an unpaid invoice", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)

		require.NoError(t, inv.Cancel())
		assert.Equal(t, domain.InvoiceCancelled, inv.Status)
	})

	t.Run("rejects cancel once anything is paid", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)
		require.NoError(t, inv.RecordPayment(decimal.NewFromInt(1), time.Now()))

		err := inv.Cancel()
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidState))
	})
}

func TestInvoiceMarkOverdue(t *testing.T) {
	pastDue := func(t *testing.T) *domain.Invoice {
		t.Helper()
		inv, err := domain.NewInvoice(
			"inv-123", "student-1", "fee-1", "period-1", "INV-2026-00001",
			time.Now().Add(-24*time.Hour),
			testItems(10000),
			decimal.Zero, nil,
			time.Now().Add(-48*time.Hour),
		)
		require.NoError(t, err)
		return inv
	}

	t.Run("marks unpaid invoice past due date", func(t *testing.T) {
		inv := pastDue(t)

		assert.True(t, inv.MarkOverdue(time.Now()))
		assert.Equal(t, domain.InvoiceOverdue, inv.Status)
	})

	t.Run("marking twice is a no-op", func(t *testing.T) {
		inv := pastDue(t)

		require.True(t, inv.MarkOverdue(time.Now()))
		assert.False(t, inv.MarkOverdue(time.Now()))
		assert.Equal(t, domain.InvoiceOverdue, inv.Status)
	})

	t.Run("includes partially paid invoices", func(t *testing.T) {
		inv := pastDue(t)
		require.NoError(t, inv.RecordPayment(decimal.NewFromInt(4000), time.Now()))
		require.Equal(t, domain.InvoicePartial, inv.Status)

		assert.True(t, inv.MarkOverdue(time.Now()))
		assert.Equal(t, domain.InvoiceOverdue, inv.Status)
	})

	t.Run("skips paid invoices", func(t *testing.T) {
		inv := pastDue(t)
		require.NoError(t, inv.RecordPayment(decimal.NewFromInt(10000), time.Now()))

		assert.False(t, inv.MarkOverdue(time.Now()))
		assert.Equal(t, domain.InvoicePaid, inv.Status)
	})

	t.Run("skips invoices not yet due", func(t *testing.T) {
		inv := newTestInvoice(t, 10000)
		assert.False(t, inv.MarkOverdue(time.Now()))
	})
}
