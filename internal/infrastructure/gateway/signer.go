// Package gateway implements the wire format shared with the external
// payment gateway: the canonical signed message, the HMAC signature, and
// the untyped callback payload parsed at the trust boundary.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Signer produces and verifies the gateway's keyed signatures:
// base64(HMAC-SHA256(secret, "field1=value1,field2=value2,...")).
type Signer struct {
	secret []byte
}

func NewSigner(secretKey string) *Signer {
	return &Signer{secret: []byte(secretKey)}
}

// Sign computes the signature over an already canonical message.
func (s *Signer) Sign(message string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignInitiation builds and signs the canonical initiation message.
// The field order is fixed by the gateway contract and must stay bit-exact.
func (s *Signer) SignInitiation(totalAmount decimal.Decimal, transactionUUID, productCode string) string {
	message := fmt.Sprintf(
		"total_amount=%s,transaction_uuid=%s,product_code=%s",
		totalAmount, transactionUUID, productCode,
	)
	return s.Sign(message)
}

// VerifyCallback recomputes the signature over exactly the fields the
// gateway declares as signed, in the declared order, and compares it to
// the supplied one in constant time. Absent signature or field list, or
// any mismatch, verifies false. This is the single trust boundary of the
// ledger: no financial mutation happens unless this returns true.
func (s *Signer) VerifyCallback(p *CallbackPayload) bool {
	if p == nil || p.Signature == "" || p.SignedFieldNames == "" {
		return false
	}

	names := strings.Split(p.SignedFieldNames, ",")
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		value, _ := p.Field(name)
		pairs = append(pairs, name+"="+value)
	}

	expected := s.Sign(strings.Join(pairs, ","))
	return hmac.Equal([]byte(expected), []byte(p.Signature))
}
