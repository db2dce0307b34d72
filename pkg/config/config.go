package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/everypay/everypay-sdk-go/pkg/model"
)

// EveryPay v4 API paths appended to the base URL by EndpointsFromBase.
const (
	OneoffPath         = "/api/v4/payments/oneoff"
	AuthorizePath      = "/api/v4/apple_pay/payment_data"
	PaymentSessionPath = "/api/v4/apple_pay/payment_session"
	LinkDataPath       = "/api/v4/apple_pay/link_data"
	PaymentMethodsPath = "/api/v4/sdk/payment_methods"
)

// Auth holds the merchant API credentials used for the Basic-auth
// initialization call.
type Auth struct {
	APIUsername string `json:"api_username"`
	APISecret   string `json:"api_secret"`
}

// Endpoints lists the backend URLs driving one payment attempt. Usually
// derived from Config.BaseURL; callers may override individual URLs.
// PaymentDetailURL and PaymentMethodsURL are optional; when empty the
// corresponding step is skipped.
type Endpoints struct {
	MobileOneoffURL     string `json:"mobile_oneoff_url"`
	AuthorizePaymentURL string `json:"authorize_payment_url"`
	PaymentSessionURL   string `json:"payment_session_url"`
	PaymentDetailURL    string `json:"payment_detail_url"`
	PaymentMethodsURL   string `json:"payment_methods_url"`
}

// EndpointsFromBase derives the full EveryPay v4 endpoint set from a merchant
// base URL. Returns a validation error when the base URL is empty or not
// parseable as an absolute URL.
func EndpointsFromBase(baseURL string) (Endpoints, error) {
	if baseURL == "" {
		return Endpoints{}, model.NewValidationError("payment base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || !u.IsAbs() {
		return Endpoints{}, model.NewValidationError("invalid payment base URL: " + baseURL)
	}
	base := strings.TrimSuffix(baseURL, "/")
	return Endpoints{
		MobileOneoffURL:     base + OneoffPath,
		AuthorizePaymentURL: base + AuthorizePath,
		PaymentSessionURL:   base + PaymentSessionPath,
		PaymentDetailURL:    base + LinkDataPath,
		PaymentMethodsURL:   base + PaymentMethodsPath,
	}, nil
}

// Timeouts controls per-operation deadlines for backend calls.
// Zero values are replaced by defaults in WithDefaults.
type Timeouts struct {
	Initialize time.Duration // oneoff init POST
	Authorize  time.Duration // wallet token authorization POST
	Fetch      time.Duration // link data / identifier GETs
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	Initialize: 30s
//	Authorize:  30s
//	Fetch:      15s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.Initialize == 0 {
		tt.Initialize = 30 * time.Second
	}
	if tt.Authorize == 0 {
		tt.Authorize = 30 * time.Second
	}
	if tt.Fetch == 0 {
		tt.Fetch = 15 * time.Second
	}
	return tt
}

// Config holds all settings for one payment attempt. Use Validate to fill
// implicit defaults and to check for required fields before handing the
// config to the session.
type Config struct {
	// Auth carries the merchant API credentials (required unless the backend
	// session was already initialized by the caller's own backend).
	Auth Auth `json:"auth"`
	// AccountName is the EveryPay processing account (e.g. "EUR3D1").
	AccountName string `json:"account_name"`
	// Amount is the exact payment amount. Never a float.
	Amount decimal.Decimal `json:"amount"`
	// CurrencyCode is the ISO 4217 currency (e.g. "EUR").
	CurrencyCode string `json:"currency_code"`
	// CountryCode is the ISO 3166-1 alpha-2 country (e.g. "EE").
	CountryCode string `json:"country_code"`
	// Label is shown on the payment sheet (e.g. "Total"). Defaults to
	// AccountName when empty.
	Label string `json:"label"`
	// Locale for backend messages. Default "en".
	Locale string `json:"locale"`
	// MerchantID is the wallet merchant identifier. When empty and
	// Endpoints.PaymentMethodsURL is set, the session looks it up.
	MerchantID string `json:"merchant_id"`
	// OrderReference in the merchant's system; generated when empty.
	OrderReference string `json:"order_reference"`
	// CustomerURL is the redirect URL required by the init endpoint.
	CustomerURL   string `json:"customer_url"`
	CustomerEmail string `json:"customer_email"`
	CustomerIP    string `json:"customer_ip"`

	// PaymentReference and AccessToken, when both supplied, mark the backend
	// session as already initialized by the caller's backend; the SDK then
	// skips the init call.
	PaymentReference string `json:"payment_reference"`
	AccessToken      string `json:"access_token"`

	// BaseURL of the merchant backend; Endpoints are derived from it when
	// not set explicitly.
	BaseURL   string    `json:"base_url"`
	Endpoints Endpoints `json:"endpoints"`

	// Timeouts configures per-call deadlines. See Timeouts.WithDefaults.
	Timeouts Timeouts `json:"timeouts"`
	// Debug enables verbose logging.
	Debug bool `json:"debug"`
}

// AlreadyInitialized reports whether the caller's backend has already created
// the payment session, in which case the SDK skips the init call.
func (c *Config) AlreadyInitialized() bool {
	return c.PaymentReference != "" && c.AccessToken != ""
}

// Validate normalizes the configuration by applying implicit defaults for
// Locale, Label, CustomerURL and Endpoints (derived from BaseURL when unset)
// and verifies the fields every attempt needs. Returns a validation error on
// the first missing requirement.
func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = "en"
	}
	if c.Label == "" {
		c.Label = c.AccountName
	}
	if c.CustomerURL == "" {
		c.CustomerURL = "https://example.com/mobile/callback"
	}

	if c.Endpoints.AuthorizePaymentURL == "" {
		eps, err := EndpointsFromBase(c.BaseURL)
		if err != nil {
			return err
		}
		c.Endpoints = eps
	}

	if c.AccountName == "" {
		return model.NewValidationError("account name is required")
	}
	if c.CurrencyCode == "" {
		return model.NewValidationError("currency code is required")
	}
	if c.CountryCode == "" {
		return model.NewValidationError("country code is required")
	}
	if c.Amount.LessThanOrEqual(decimal.Zero) {
		return model.NewValidationError("amount must be greater than zero")
	}
	if !c.AlreadyInitialized() && c.Auth.APIUsername == "" {
		return model.NewValidationError("API username is required to initialize a payment")
	}

	c.Timeouts = c.Timeouts.WithDefaults()
	return nil
}
