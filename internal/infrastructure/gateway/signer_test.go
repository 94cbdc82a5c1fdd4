package gateway_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajendrakhanal/schoolpay/internal/infrastructure/gateway"
)

const testSecret = "8gBm/:&EnhH.1/q"

func validCallback(t *testing.T, signer *gateway.Signer) map[string]string {
	t.Helper()

	values := map[string]string{
		"transaction_uuid":   "uuid-123",
		"total_amount":       "1150.00",
		"status":             "COMPLETE",
		"transaction_code":   "000AWEO",
		"product_code":       "EPAYTEST",
		"signed_field_names": "transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names",
	}

	message := "transaction_code=000AWEO,status=COMPLETE,total_amount=1150.00," +
		"transaction_uuid=uuid-123,product_code=EPAYTEST," +
		"signed_field_names=transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names"
	values["signature"] = signer.Sign(message)

	return values
}

func TestSignInitiation(t *testing.T) {
	signer := gateway.NewSigner(testSecret)

	t.Run("deterministic for identical inputs", func(t *testing.T) {
		a := signer.SignInitiation(decimal.NewFromInt(100), "uuid-1", "EPAYTEST")
		b := signer.SignInitiation(decimal.NewFromInt(100), "uuid-1", "EPAYTEST")

		assert.NotEmpty(t, a)
		assert.Equal(t, a, b)
	})

	t.Run("changes with any input", func(t *testing.T) {
		base := signer.SignInitiation(decimal.NewFromInt(100), "uuid-1", "EPAYTEST")

		assert.NotEqual(t, base, signer.SignInitiation(decimal.NewFromInt(101), "uuid-1", "EPAYTEST"))
		assert.NotEqual(t, base, signer.SignInitiation(decimal.NewFromInt(100), "uuid-2", "EPAYTEST"))
		assert.NotEqual(t, base, signer.SignInitiation(decimal.NewFromInt(100), "uuid-1", "OTHER"))
	})

	t.Run("changes with the secret", func(t *testing.T) {
		other := gateway.NewSigner("different-secret")

		assert.NotEqual(t,
			signer.SignInitiation(decimal.NewFromInt(100), "uuid-1", "EPAYTEST"),
			other.SignInitiation(decimal.NewFromInt(100), "uuid-1", "EPAYTEST"),
		)
	})
}

func TestVerifyCallback(t *testing.T) {
	signer := gateway.NewSigner(testSecret)

	t.Run("accepts a correctly signed payload", func(t *testing.T) {
		payload, err := gateway.ParseCallback(validCallback(t, signer))
		require.NoError(t, err)

		assert.True(t, signer.VerifyCallback(payload))
	})

	t.Run("rejects signature from another secret", func(t *testing.T) {
		other := gateway.NewSigner("different-secret")
		payload, err := gateway.ParseCallback(validCallback(t, other))
		require.NoError(t, err)

		assert.False(t, signer.VerifyCallback(payload))
	})

	t.Run("rejects tampered amount", func(t *testing.T) {
		values := validCallback(t, signer)
		values["total_amount"] = "1.00"

		payload, err := gateway.ParseCallback(values)
		require.NoError(t, err)

		assert.False(t, signer.VerifyCallback(payload))
	})

	t.Run("rejects tampered status", func(t *testing.T) {
		values := validCallback(t, signer)
		values["status"] = "FULL_REFUND"

		payload, err := gateway.ParseCallback(values)
		require.NoError(t, err)

		assert.False(t, signer.VerifyCallback(payload))
	})

	t.Run("rejects missing signature", func(t *testing.T) {
		values := validCallback(t, signer)
		delete(values, "signature")

		payload, err := gateway.ParseCallback(values)
		require.NoError(t, err)

		assert.False(t, signer.VerifyCallback(payload))
	})

	t.Run("rejects missing signed field names", func(t *testing.T) {
		values := validCallback(t, signer)
		delete(values, "signed_field_names")

		payload, err := gateway.ParseCallback(values)
		require.NoError(t, err)

		assert.False(t, signer.VerifyCallback(payload))
	})

	t.Run("field order follows the declared list", func(t *testing.T) {
		values := map[string]string{
			"transaction_uuid":   "uuid-123",
			"total_amount":       "100",
			"signed_field_names": "total_amount,transaction_uuid",
		}
		values["signature"] = signer.Sign("total_amount=100,transaction_uuid=uuid-123")

		payload, err := gateway.ParseCallback(values)
		require.NoError(t, err)
		assert.True(t, signer.VerifyCallback(payload))

		// Same fields signed in the opposite order must not verify.
		values["signature"] = signer.Sign("transaction_uuid=uuid-123,total_amount=100")
		payload, err = gateway.ParseCallback(values)
		require.NoError(t, err)
		assert.False(t, signer.VerifyCallback(payload))
	})

	t.Run("nil payload verifies false", func(t *testing.T) {
		assert.False(t, signer.VerifyCallback(nil))
	})
}

func TestParseCallback(t *testing.T) {
	t.Run("requires transaction uuid", func(t *testing.T) {
		_, err := gateway.ParseCallback(map[string]string{"status": "COMPLETE"})
		assert.Error(t, err)
	})

	t.Run("keeps unknown fields in extra", func(t *testing.T) {
		payload, err := gateway.ParseCallback(map[string]string{
			"transaction_uuid": "uuid-123",
			"ref_id":           "xyz",
		})
		require.NoError(t, err)

		assert.Equal(t, "xyz", payload.Extra["ref_id"])
	})

	t.Run("amount tolerates thousands separators", func(t *testing.T) {
		payload, err := gateway.ParseCallback(map[string]string{
			"transaction_uuid": "uuid-123",
			"total_amount":     "1,150.00",
		})
		require.NoError(t, err)

		amount, err := payload.AmountDecimal()
		require.NoError(t, err)
		assert.True(t, amount.Equal(decimal.NewFromFloat(1150.00)))
	})
}
