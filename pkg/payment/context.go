package payment

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/everypay/everypay-sdk-go/pkg/config"
	"github.com/everypay/everypay-sdk-go/pkg/model"
)

// Context holds all data needed to drive one payment attempt: caller
// configuration, backend-derived identifiers, and endpoint URLs. A Context is
// immutable once handed to a session; the With* methods return updated copies
// for the fields that legitimately arrive mid-flow.
type Context struct {
	// Credentials and account, from caller config.
	APIUsername string
	APISecret   string
	AccountName string
	Locale      string

	// Sheet parameters.
	MerchantID   string
	CountryCode  string
	CurrencyCode string
	PaymentLabel string
	Amount       decimal.Decimal

	// Backend-derived identifiers.
	AlreadyInitialized bool
	PaymentReference   string
	OrderReference     string
	AccessToken        string
	InitResponse       json.RawMessage

	// Endpoint URLs.
	MobileOneoffURL     string
	AuthorizePaymentURL string
	PaymentSessionURL   string
	PaymentDetailURL    string
	PaymentMethodsURL   string
}

// NewContext builds the context for one attempt from validated configuration.
// It fails with a validation error when a field the flow can never recover is
// missing: currency, country, a positive amount, the authorize URL, or a
// merchant identifier with no payment-methods URL to look one up from.
func NewContext(cfg *config.Config) (Context, error) {
	if cfg.CurrencyCode == "" {
		return Context{}, model.NewValidationError("currency code is required")
	}
	if cfg.CountryCode == "" {
		return Context{}, model.NewValidationError("country code is required")
	}
	if cfg.Amount.LessThanOrEqual(decimal.Zero) {
		return Context{}, model.NewValidationError("amount must be greater than zero")
	}
	if cfg.Endpoints.AuthorizePaymentURL == "" {
		return Context{}, model.NewValidationError("authorize payment URL is required")
	}
	if cfg.MerchantID == "" && cfg.Endpoints.PaymentMethodsURL == "" {
		return Context{}, model.NewValidationError("merchant identifier is required")
	}

	label := cfg.Label
	if label == "" {
		label = cfg.AccountName
	}

	return Context{
		APIUsername: cfg.Auth.APIUsername,
		APISecret:   cfg.Auth.APISecret,
		AccountName: cfg.AccountName,
		Locale:      cfg.Locale,

		MerchantID:   cfg.MerchantID,
		CountryCode:  cfg.CountryCode,
		CurrencyCode: cfg.CurrencyCode,
		PaymentLabel: label,
		Amount:       cfg.Amount,

		AlreadyInitialized: cfg.AlreadyInitialized(),
		PaymentReference:   cfg.PaymentReference,
		AccessToken:        cfg.AccessToken,

		MobileOneoffURL:     cfg.Endpoints.MobileOneoffURL,
		AuthorizePaymentURL: cfg.Endpoints.AuthorizePaymentURL,
		PaymentSessionURL:   cfg.Endpoints.PaymentSessionURL,
		PaymentDetailURL:    cfg.Endpoints.PaymentDetailURL,
		PaymentMethodsURL:   cfg.Endpoints.PaymentMethodsURL,
	}, nil
}

// WithMerchantIdentifier returns a copy with the merchant identifier filled
// in, for the case where it is looked up after the rest of the config.
func (c Context) WithMerchantIdentifier(id string) Context {
	c.MerchantID = id
	return c
}

// WithInitResult returns a copy merged with the backend initialization
// response. Backend-derived fields win over caller-supplied placeholders.
func (c Context) WithInitResult(res *model.InitResult) Context {
	c.AlreadyInitialized = true
	c.PaymentReference = res.PaymentReference
	c.OrderReference = res.OrderReference
	c.AccessToken = res.AccessToken
	c.InitResponse = res.Raw
	if res.CurrencyCode != "" {
		c.CurrencyCode = res.CurrencyCode
	}
	if !res.Amount.IsZero() {
		c.Amount = res.Amount
	}
	if res.MerchantID != "" {
		c.MerchantID = res.MerchantID
	}
	return c
}

// ValidForStartingPayment re-checks the full invariant set before the sheet
// may be presented. Mandatory gate: fields arrive from caller config and the
// backend response at different times, so context validity cannot be assumed
// from construction alone.
func (c Context) ValidForStartingPayment() bool {
	return c.MerchantID != "" &&
		c.CurrencyCode != "" &&
		c.CountryCode != "" &&
		c.Amount.GreaterThan(decimal.Zero) &&
		c.AuthorizePaymentURL != "" &&
		c.PaymentReference != "" &&
		c.AccessToken != ""
}
