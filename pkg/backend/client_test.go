package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everypay/everypay-sdk-go/pkg/config"
	"github.com/everypay/everypay-sdk-go/pkg/model"
)

var timestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

func initConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Auth:         config.Auth{APIUsername: "test-user", APISecret: "test-secret"},
		AccountName:  "EUR3D1",
		Amount:       decimal.RequireFromString("10.99"),
		CurrencyCode: "EUR",
		CountryCode:  "EE",
		BaseURL:      baseURL,
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestInitializeSendsExpectedRequest(t *testing.T) {
	var gotBody map[string]any
	var gotAuth, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"payment_reference":   "PR1",
			"mobile_access_token": "tok-1",
			"account_name":        "EUR3D1",
			"api_username":        "test-user",
			"order_reference":     gotBody["order_reference"],
			"standing_amount":     "10.99",
			"currency":            "EUR",
			"payment_state":       "initial",
		})
	}))
	defer srv.Close()

	cfg := initConfig(t, srv.URL)
	res, err := NewClient(srv.Client()).Initialize(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "/api/v4/payments/oneoff", gotPath)
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("test-user:test-secret"))
	assert.Equal(t, wantAuth, gotAuth)

	assert.Equal(t, "test-user", gotBody["api_username"])
	assert.Equal(t, "EUR3D1", gotBody["account_name"])
	assert.Equal(t, "10.99", gotBody["amount"])
	assert.Equal(t, true, gotBody["mobile_payment"])
	assert.NotEmpty(t, gotBody["nonce"])
	assert.NotEmpty(t, gotBody["order_reference"])
	assert.Regexp(t, timestampRe, gotBody["timestamp"])

	assert.Equal(t, "PR1", res.PaymentReference)
	assert.Equal(t, "tok-1", res.AccessToken)
	assert.Equal(t, "EUR", res.CurrencyCode)
	assert.True(t, decimal.RequireFromString("10.99").Equal(res.Amount))
	assert.NotEmpty(t, res.Raw)
}

func TestInitializeKeepsCallerOrderReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "order-42", body["order_reference"])
		json.NewEncoder(w).Encode(map[string]any{
			"payment_reference":   "PR1",
			"mobile_access_token": "tok-1",
		})
	}))
	defer srv.Close()

	cfg := initConfig(t, srv.URL)
	cfg.OrderReference = "order-42"
	_, err := NewClient(srv.Client()).Initialize(context.Background(), cfg)
	require.NoError(t, err)
}

func TestInitializeMissingRequiredFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"payment_reference": "PR1"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client()).Initialize(context.Background(), initConfig(t, srv.URL))
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.CodeBackend))
}

func TestInitializeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": "invalid credentials"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client()).Initialize(context.Background(), initConfig(t, srv.URL))
	require.Error(t, err)

	var pe *model.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.CodeBackend, pe.Code)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Equal(t, "invalid credentials", pe.Message)
}

func TestInitializeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := NewClient(nil).Initialize(context.Background(), initConfig(t, srv.URL))
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.CodeNetwork))
}

func TestAuthorizeApproved(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"payment_state":     "completed",
			"payment_reference": "PR1",
		})
	}))
	defer srv.Close()

	token := json.RawMessage(`{"data":"opaque","signature":"sig"}`)
	res, err := NewClient(srv.Client()).Authorize(context.Background(), token, "PR1", srv.URL, "tok-1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "PR1", gotBody["payment_reference"])
	assert.Equal(t, true, gotBody["ios_app"])
	assert.Regexp(t, timestampRe, gotBody["timestamp"])
	assert.NotNil(t, gotBody["paymentData"])

	assert.Equal(t, model.VerdictApproved, res.Verdict)
	assert.Equal(t, "completed", res.PaymentState)
	assert.Equal(t, "PR1", res.PaymentReference)
}

// A backend decline is a completed authorization call, not an error.
func TestAuthorizeDeclinedIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"payment_state": "failed"})
	}))
	defer srv.Close()

	res, err := NewClient(srv.Client()).Authorize(context.Background(),
		json.RawMessage(`{}`), "PR1", srv.URL, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictDeclined, res.Verdict)
}

// Some backend versions report "state" rather than "payment_state".
func TestAuthorizeLegacyStateField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"state": "authorized"})
	}))
	defer srv.Close()

	res, err := NewClient(srv.Client()).Authorize(context.Background(),
		json.RawMessage(`{}`), "PR1", srv.URL, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictApproved, res.Verdict)
}

func TestAuthorizeMissingState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"other": "field"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client()).Authorize(context.Background(),
		json.RawMessage(`{}`), "PR1", srv.URL, "tok-1")
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.CodeBackend))
}

func TestFetchLinkData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "PR1", r.URL.Query().Get("payment_reference"))
		json.NewEncoder(w).Encode(map[string]any{
			"payment_reference": "PR1",
			"payment_link":      "https://pay.example.com/l/abc",
		})
	}))
	defer srv.Close()

	data, err := NewClient(srv.Client()).FetchLinkData(context.Background(), srv.URL, "PR1", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "PR1", data.PaymentReference)
	assert.Contains(t, string(data.Raw), "payment_link")
}

func TestFetchIdentifierFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/EUR3D1", r.URL.Path)
		assert.Equal(t, "test-user", r.URL.Query().Get("api_username"))
		assert.Equal(t, "10.99", r.URL.Query().Get("amount"))
		json.NewEncoder(w).Encode(map[string]any{
			"payment_methods": []map[string]any{
				{"source": "card", "available": true},
				{"source": "apple_pay", "ios_identifier": "merchant.com.example", "available": true},
			},
		})
	}))
	defer srv.Close()

	res, err := NewClient(srv.Client()).FetchIdentifier(context.Background(),
		"EUR3D1", "test-user", decimal.RequireFromString("10.99"), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "merchant.com.example", res.Identifier)
	assert.True(t, res.Available)
}

// No apple_pay entry is a successful lookup with Found false, not an error.
func TestFetchIdentifierAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"payment_methods": []map[string]any{{"source": "card"}},
		})
	}))
	defer srv.Close()

	res, err := NewClient(srv.Client()).FetchIdentifier(context.Background(),
		"EUR3D1", "test-user", decimal.RequireFromString("5.00"), srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestFetchIdentifierMissingIdentifierField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"payment_methods": []map[string]any{{"source": "apple_pay", "available": true}},
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client()).FetchIdentifier(context.Background(),
		"EUR3D1", "test-user", decimal.RequireFromString("5.00"), srv.URL)
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.CodeBackend))
}

func TestFetchIdentifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client()).FetchIdentifier(context.Background(),
		"EUR3D1", "test-user", decimal.RequireFromString("5.00"), srv.URL)
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.CodeBackend))
}

func TestISO8601Timestamp(t *testing.T) {
	loc := time.FixedZone("EET", 2*60*60)
	ts := iso8601Timestamp(time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, loc))
	assert.Equal(t, "2026-03-14T13:09:26Z", ts)
}
