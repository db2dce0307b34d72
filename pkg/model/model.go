package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Verdict is the backend's authorization decision for a submitted wallet token.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictDeclined Verdict = "declined"
	VerdictPending  Verdict = "pending"
)

// VerdictFromState maps an EveryPay payment_state to a Verdict. The settled
// states count as approved, the transient states as pending, and everything
// else (failed, abandoned, voided, unknown) as declined.
func VerdictFromState(paymentState string) Verdict {
	switch paymentState {
	case "completed", "authorized", "captured", "settled":
		return VerdictApproved
	case "initial", "sent_for_processing", "waiting_for_3ds_response", "waiting_for_sca":
		return VerdictPending
	default:
		return VerdictDeclined
	}
}

// InitResult holds the backend's response to the payment initialization call.
// Raw carries the full original response body for passthrough to the caller.
type InitResult struct {
	PaymentReference string          `json:"payment_reference"`
	OrderReference   string          `json:"order_reference"`
	AccessToken      string          `json:"mobile_access_token"`
	AccountName      string          `json:"account_name"`
	APIUsername      string          `json:"api_username"`
	MerchantID       string          `json:"merchant_id,omitempty"`
	Amount           decimal.Decimal `json:"standing_amount"`
	CurrencyCode     string          `json:"currency"`
	PaymentState     string          `json:"payment_state"`
	Raw              json.RawMessage `json:"-"`
}

// LinkData holds payment link details fetched from the detail endpoint,
// used for recurring/link payments. The payload is backend-defined.
type LinkData struct {
	PaymentReference string          `json:"payment_reference"`
	Raw              json.RawMessage `json:"-"`
}

// AuthorizeResult is the backend's answer to a wallet token authorization.
// A declined Verdict is a completed call, not an error.
type AuthorizeResult struct {
	Verdict          Verdict         `json:"verdict"`
	PaymentState     string          `json:"payment_state"`
	PaymentReference string          `json:"payment_reference"`
	Raw              json.RawMessage `json:"-"`
}

// IdentifierResult is the tri-state outcome of a wallet identifier lookup:
// Found with an Identifier, or not Found (the account simply has no wallet
// payment method configured; not an error).
type IdentifierResult struct {
	Found      bool
	Identifier string
	Available  bool
}

// PaymentResult is delivered to the caller's success continuation when an
// attempt concludes approved. InitResponse and AuthorizeResponse are the raw
// backend bodies for callers that need fields the SDK does not map.
type PaymentResult struct {
	PaymentReference  string          `json:"payment_reference"`
	Verdict           Verdict         `json:"verdict"`
	AuthorizeResponse json.RawMessage `json:"response,omitempty"`
	InitResponse      json.RawMessage `json:"init_data,omitempty"`
	LinkData          *LinkData       `json:"link_data,omitempty"`
}
