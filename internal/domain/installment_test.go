package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajendrakhanal/schoolpay/internal/domain"
)

func TestNewInstallmentPlan(t *testing.T) {
	t.Run("splits total into equal charges", func(t *testing.T) {
		plan, err := domain.NewInstallmentPlan(
			"plan-1", "inv-1", "student-1",
			decimal.NewFromInt(12000), 4,
			domain.FrequencyMonthly, time.Now(), time.Now(),
		)
		require.NoError(t, err)

		assert.Equal(t, domain.PlanActive, plan.Status)
		assert.True(t, plan.InstallmentAmount.Equal(decimal.NewFromInt(3000)))
	})

	t.Run("rounds uneven splits to two places", func(t *testing.T) {
		plan, err := domain.NewInstallmentPlan(
			"plan-1", "inv-1", "student-1",
			decimal.NewFromInt(10000), 3,
			domain.FrequencyMonthly, time.Now(), time.Now(),
		)
		require.NoError(t, err)

		assert.Equal(t, "3333.33", plan.InstallmentAmount.StringFixed(2))
	})

	t.Run("stamps creation time from caller clock", func(t *testing.T) {
		created := time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)
		plan, err := domain.NewInstallmentPlan(
			"plan-1", "inv-1", "student-1",
			decimal.NewFromInt(12000), 4,
			domain.FrequencyMonthly, time.Now(), created,
		)
		require.NoError(t, err)

		assert.Equal(t, created, plan.CreatedAt)
	})

	t.Run("rejects fewer than two installments", func(t *testing.T) {
		_, err := domain.NewInstallmentPlan(
			"plan-1", "inv-1", "student-1",
			decimal.NewFromInt(12000), 1,
			domain.FrequencyMonthly, time.Now(), time.Now(),
		)
		assert.Error(t, err)
	})

	t.Run("rejects non-positive total", func(t *testing.T) {
		_, err := domain.NewInstallmentPlan(
			"plan-1", "inv-1", "student-1",
			decimal.Zero, 4,
			domain.FrequencyMonthly, time.Now(), time.Now(),
		)
		assert.Error(t, err)
	})
}

func TestInstallmentPlanLifecycle(t *testing.T) {
	newPlan := func(t *testing.T) *domain.InstallmentPlan {
		t.Helper()
		plan, err := domain.NewInstallmentPlan(
			"plan-1", "inv-1", "student-1",
			decimal.NewFromInt(12000), 4,
			domain.FrequencyMonthly, time.Now(), time.Now(),
		)
		require.NoError(t, err)
		return plan
	}

	t.Run("valid index range", func(t *testing.T) {
		plan := newPlan(t)

		assert.False(t, plan.ValidIndex(0))
		assert.True(t, plan.ValidIndex(1))
		assert.True(t, plan.ValidIndex(4))
		assert.False(t, plan.ValidIndex(5))
	})

	t.Run("completes an active plan", func(t *testing.T) {
		plan := newPlan(t)

		require.NoError(t, plan.Complete())
		assert.Equal(t, domain.PlanCompleted, plan.Status)
	})

	t.Run("cancel of completed plan fails", func(t *testing.T) {
		plan := newPlan(t)
		require.NoError(t, plan.Complete())

		err := plan.Cancel()
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodePlanCompleted))
	})

	t.Run("cancels an active plan", func(t *testing.T) {
		plan := newPlan(t)

		require.NoError(t, plan.Cancel())
		assert.Equal(t, domain.PlanCancelled, plan.Status)

		assert.Error(t, plan.Cancel())
	})
}
