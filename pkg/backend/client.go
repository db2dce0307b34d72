package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/everypay/everypay-sdk-go/pkg/config"
	"github.com/everypay/everypay-sdk-go/pkg/model"
)

// Service is the backend API surface consumed by the payment session.
type Service interface {
	// Initialize creates a payment on the backend and returns the references
	// and access token needed for the rest of the flow.
	Initialize(ctx context.Context, cfg *config.Config) (*model.InitResult, error)
	// FetchLinkData retrieves payment link details for recurring/link flows.
	FetchLinkData(ctx context.Context, detailURL, paymentReference, accessToken string) (*model.LinkData, error)
	// Authorize submits the wallet token payload for the given payment
	// reference and returns the backend's verdict. A declined verdict is a
	// successful call, not an error.
	Authorize(ctx context.Context, tokenData json.RawMessage, paymentReference, authorizeURL, accessToken string) (*model.AuthorizeResult, error)
	// FetchIdentifier looks up the wallet merchant identifier for an account.
	// Not finding one is a successful lookup with Found false.
	FetchIdentifier(ctx context.Context, accountName, apiUsername string, amount decimal.Decimal, paymentMethodsURL string) (*model.IdentifierResult, error)
}

// Client implements Service over net/http.
type Client struct {
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient builds a backend client. A nil httpClient falls back to
// http.DefaultClient; per-call deadlines come from the caller's context.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, log: zap.L()}
}

// initRequest is the JSON body of the oneoff initialization call.
type initRequest struct {
	APIUsername    string `json:"api_username"`
	AccountName    string `json:"account_name"`
	Amount         string `json:"amount"`
	OrderReference string `json:"order_reference"`
	Nonce          string `json:"nonce"`
	Timestamp      string `json:"timestamp"`
	MobilePayment  bool   `json:"mobile_payment"`
	CustomerURL    string `json:"customer_url"`
	Locale         string `json:"locale"`
	CustomerIP     string `json:"customer_ip"`
	CustomerEmail  string `json:"customer_email,omitempty"`
}

// Initialize posts the merchant/account/amount payload to the mobile oneoff
// endpoint with Basic auth, a fresh nonce, and an ISO-8601 UTC timestamp.
// The response must carry payment_reference and mobile_access_token.
func (c *Client) Initialize(ctx context.Context, cfg *config.Config) (*model.InitResult, error) {
	orderReference := cfg.OrderReference
	if orderReference == "" {
		orderReference = "mobile-payment-" + uuid.NewString()
	}

	body := initRequest{
		APIUsername:    cfg.Auth.APIUsername,
		AccountName:    cfg.AccountName,
		Amount:         cfg.Amount.StringFixed(2),
		OrderReference: orderReference,
		Nonce:          uuid.NewString(),
		Timestamp:      iso8601Timestamp(time.Now()),
		MobilePayment:  true,
		CustomerURL:    cfg.CustomerURL,
		Locale:         cfg.Locale,
		CustomerIP:     cfg.CustomerIP,
		CustomerEmail:  cfg.CustomerEmail,
	}

	c.log.Debug("sending init request", zap.String("url", cfg.Endpoints.MobileOneoffURL))

	raw, err := c.doJSON(ctx, http.MethodPost, cfg.Endpoints.MobileOneoffURL, body, func(h http.Header) {
		h.Set("Authorization", basicAuthHeader(cfg.Auth.APIUsername, cfg.Auth.APISecret))
	})
	if err != nil {
		return nil, err
	}

	var res model.InitResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, model.NewBackendError(http.StatusOK, "malformed init response: "+err.Error())
	}
	if res.PaymentReference == "" || res.AccessToken == "" {
		return nil, model.NewBackendError(http.StatusOK,
			"missing required fields in init response: payment_reference or mobile_access_token")
	}
	res.Raw = raw

	c.log.Info("payment initialized",
		zap.String("payment_reference", res.PaymentReference),
		zap.String("payment_state", res.PaymentState))
	return &res, nil
}

// FetchLinkData gets payment link details with the mobile access token as
// Bearer credential.
func (c *Client) FetchLinkData(ctx context.Context, detailURL, paymentReference, accessToken string) (*model.LinkData, error) {
	u, err := withQuery(detailURL, map[string]string{"payment_reference": paymentReference})
	if err != nil {
		return nil, model.NewValidationError("invalid payment detail URL: " + detailURL)
	}

	raw, err := c.doJSON(ctx, http.MethodGet, u, nil, func(h http.Header) {
		h.Set("Authorization", "Bearer "+accessToken)
	})
	if err != nil {
		return nil, err
	}

	data := model.LinkData{PaymentReference: paymentReference, Raw: raw}
	// payment_reference in the body, when present, wins over the query value.
	var probe struct {
		PaymentReference string `json:"payment_reference"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.PaymentReference != "" {
		data.PaymentReference = probe.PaymentReference
	}
	return &data, nil
}

// authorizeRequest is the JSON body of the wallet token authorization call.
type authorizeRequest struct {
	PaymentReference string          `json:"payment_reference"`
	MobileApp        bool            `json:"ios_app"`
	PaymentData      json.RawMessage `json:"paymentData"`
	Timestamp        string          `json:"timestamp"`
}

// Authorize posts the wallet-issued token payload to the authorize endpoint
// and maps the backend payment_state to a verdict.
func (c *Client) Authorize(ctx context.Context, tokenData json.RawMessage, paymentReference, authorizeURL, accessToken string) (*model.AuthorizeResult, error) {
	body := authorizeRequest{
		PaymentReference: paymentReference,
		MobileApp:        true,
		PaymentData:      tokenData,
		Timestamp:        iso8601Timestamp(time.Now()),
	}

	c.log.Debug("sending authorization request", zap.String("url", authorizeURL))

	raw, err := c.doJSON(ctx, http.MethodPost, authorizeURL, body, func(h http.Header) {
		h.Set("Authorization", "Bearer "+accessToken)
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		PaymentState     string `json:"payment_state"`
		State            string `json:"state"`
		PaymentReference string `json:"payment_reference"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, model.NewBackendError(http.StatusOK, "malformed authorize response: "+err.Error())
	}
	state := resp.PaymentState
	if state == "" {
		state = resp.State
	}
	if state == "" {
		return nil, model.NewBackendError(http.StatusOK, "authorize response missing payment state")
	}

	res := model.AuthorizeResult{
		Verdict:          model.VerdictFromState(state),
		PaymentState:     state,
		PaymentReference: resp.PaymentReference,
		Raw:              raw,
	}
	if res.PaymentReference == "" {
		res.PaymentReference = paymentReference
	}

	c.log.Info("authorization response received",
		zap.String("payment_state", state),
		zap.String("verdict", string(res.Verdict)))
	return &res, nil
}

// FetchIdentifier queries the payment methods endpoint for the account and
// scans for an apple_pay entry. An account without one yields Found false,
// not an error.
func (c *Client) FetchIdentifier(ctx context.Context, accountName, apiUsername string, amount decimal.Decimal, paymentMethodsURL string) (*model.IdentifierResult, error) {
	u, err := withQuery(paymentMethodsURL+"/"+url.PathEscape(accountName), map[string]string{
		"api_username": apiUsername,
		"amount":       amount.StringFixed(2),
	})
	if err != nil {
		return nil, model.NewValidationError("invalid payment methods URL: " + paymentMethodsURL)
	}

	raw, err := c.doJSON(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		PaymentMethods []struct {
			Source        string `json:"source"`
			IOSIdentifier string `json:"ios_identifier"`
			Available     bool   `json:"available"`
		} `json:"payment_methods"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, model.NewBackendError(http.StatusOK, "malformed payment methods response: "+err.Error())
	}

	for _, m := range resp.PaymentMethods {
		if m.Source != "apple_pay" {
			continue
		}
		if m.IOSIdentifier == "" {
			return nil, model.NewBackendError(http.StatusOK,
				"wallet merchant identifier missing from payment methods response")
		}
		return &model.IdentifierResult{Found: true, Identifier: m.IOSIdentifier, Available: m.Available}, nil
	}

	c.log.Debug("no wallet payment method for account", zap.String("account", accountName))
	return &model.IdentifierResult{Found: false}, nil
}

// doJSON performs a single JSON request/response exchange. Transport failures
// map to network errors, non-2xx statuses to backend errors carrying the
// status code and response body.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, body any, decorate func(http.Header)) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, model.NewValidationError("encode request body: " + err.Error())
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, model.NewValidationError("build request: " + err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if decorate != nil {
		decorate(req.Header)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewNetworkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("backend request failed",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode))
		return nil, model.NewBackendError(resp.StatusCode, backendErrorMessage(raw, resp.StatusCode))
	}
	return raw, nil
}

// backendErrorMessage pulls a usable message out of an error response body,
// falling back to the HTTP status.
func backendErrorMessage(raw []byte, statusCode int) string {
	var probe struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil {
		if probe.Error != "" {
			return probe.Error
		}
		if probe.Message != "" {
			return probe.Message
		}
	}
	return fmt.Sprintf("request failed with HTTP status %d", statusCode)
}

// iso8601Timestamp formats t as an ISO-8601 UTC timestamp with second
// precision, the format the EveryPay API expects.
func iso8601Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// basicAuthHeader builds the Basic auth value for the init call.
func basicAuthHeader(username, secret string) string {
	credentials := username + ":" + secret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
}

// withQuery appends query parameters to a URL string.
func withQuery(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
