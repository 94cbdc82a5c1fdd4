package gateway

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Well-known callback field names.
const (
	FieldTransactionUUID  = "transaction_uuid"
	FieldTotalAmount      = "total_amount"
	FieldStatus           = "status"
	FieldSignedFieldNames = "signed_field_names"
	FieldSignature        = "signature"
	FieldTransactionCode  = "transaction_code"
	FieldProductCode      = "product_code"
)

// CallbackPayload is the gateway's flat key-value callback, parsed at the
// boundary into a closed record of the named fields plus an opaque bag of
// whatever else the gateway sent. Nothing downstream touches loose maps.
type CallbackPayload struct {
	TransactionUUID  string
	TotalAmount      string
	Status           string
	TransactionCode  string
	ProductCode      string
	SignedFieldNames string
	Signature        string
	Extra            map[string]string

	raw map[string]string
}

// ParseCallback validates and types an inbound callback. Only the
// correlation key is mandatory at parse time; missing signature fields are
// rejected later by signature verification, so a malformed payload still
// reaches the transaction it names and parks it in a terminal state.
func ParseCallback(values map[string]string) (*CallbackPayload, error) {
	uuid, ok := values[FieldTransactionUUID]
	if !ok || uuid == "" {
		return nil, errors.New("callback payload missing transaction_uuid")
	}

	p := &CallbackPayload{
		TransactionUUID:  uuid,
		TotalAmount:      values[FieldTotalAmount],
		Status:           values[FieldStatus],
		TransactionCode:  values[FieldTransactionCode],
		ProductCode:      values[FieldProductCode],
		SignedFieldNames: values[FieldSignedFieldNames],
		Signature:        values[FieldSignature],
		Extra:            map[string]string{},
		raw:              make(map[string]string, len(values)),
	}

	known := map[string]bool{
		FieldTransactionUUID:  true,
		FieldTotalAmount:      true,
		FieldStatus:           true,
		FieldTransactionCode:  true,
		FieldProductCode:      true,
		FieldSignedFieldNames: true,
		FieldSignature:        true,
	}
	for k, v := range values {
		p.raw[k] = v
		if !known[k] {
			p.Extra[k] = v
		}
	}

	return p, nil
}

// Field returns the raw value of a named field, known or extra. Used to
// reconstruct the signed message exactly as the gateway built it.
func (p *CallbackPayload) Field(name string) (string, bool) {
	v, ok := p.raw[name]
	return v, ok
}

// AmountDecimal parses total_amount, tolerating the gateway's thousands
// separators ("1,150.00").
func (p *CallbackPayload) AmountDecimal() (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(p.TotalAmount, ",", "")
	if cleaned == "" {
		return decimal.Zero, errors.New("callback payload missing total_amount")
	}
	return decimal.NewFromString(cleaned)
}

// RawJSON serializes the full payload for audit storage.
func (p *CallbackPayload) RawJSON() []byte {
	b, err := json.Marshal(p.raw)
	if err != nil {
		return nil
	}
	return b
}
