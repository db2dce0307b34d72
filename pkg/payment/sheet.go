package payment

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Status signals the outcome the sheet should display while closing.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failure"
}

// SummaryItem is one line on the payment sheet.
type SummaryItem struct {
	Label  string
	Amount decimal.Decimal
}

// Request carries everything the native sheet needs to present.
type Request struct {
	MerchantID   string
	CountryCode  string
	CurrencyCode string
	SummaryItems []SummaryItem
}

// Token is the opaque wallet payment credential produced when the user
// authorizes on the sheet. PaymentData is the decoded token payload forwarded
// verbatim to the backend.
type Token struct {
	PaymentData   json.RawMessage
	TransactionID string
	PaymentMethod string
}

// Callbacks are the sheet's signals back into the session. Per presentation
// the sheet emits exactly one of Authorized or Cancelled, and emits Dismissed
// after the session requests Close. The session tolerates duplicate or
// out-of-order delivery.
type Callbacks struct {
	Authorized func(Token)
	Cancelled  func()
	Dismissed  func()
}

// Sheet abstracts the native payment UI session. Implementations own a modal
// presentation; the session drives Close before resolving the caller so the
// modal never outlives the attempt.
type Sheet interface {
	// CanMakePayments reports whether the device/environment can present
	// wallet payments at all.
	CanMakePayments() bool
	// Present shows the sheet for the given request and registers callbacks.
	Present(req Request, cb Callbacks) error
	// Close dismisses the sheet showing the given status. The sheet must
	// call Callbacks.Dismissed when dismissal completes.
	Close(status Status)
}
