package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everypay/everypay-sdk-go/pkg/config"
	"github.com/everypay/everypay-sdk-go/pkg/model"
	"github.com/everypay/everypay-sdk-go/pkg/payment"
)

// merchantBackend serves the three endpoints one happy-path attempt touches.
func merchantBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/payments/oneoff", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"payment_reference":   "PR1",
			"mobile_access_token": "tok-1",
			"order_reference":     "OR1",
			"standing_amount":     "10.00",
			"currency":            "EUR",
			"payment_state":       "initial",
		})
	})
	mux.HandleFunc("/api/v4/apple_pay/link_data", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"payment_reference": "PR1"})
	})
	mux.HandleFunc("/api/v4/apple_pay/payment_data", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"payment_state":     "completed",
			"payment_reference": "PR1",
		})
	})
	return httptest.NewServer(mux)
}

func sdkConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Auth:         config.Auth{APIUsername: "test-user", APISecret: "test-secret"},
		AccountName:  "EUR3D1",
		Amount:       decimal.RequireFromString("10.00"),
		CurrencyCode: "EUR",
		CountryCode:  "EE",
		MerchantID:   "merchant.test",
		BaseURL:      baseURL,
	}
}

var sdkToken = payment.Token{PaymentData: json.RawMessage(`{"data":"opaque"}`)}

func TestPayEndToEnd(t *testing.T) {
	srv := merchantBackend(t)
	defer srv.Close()

	sheet := &payment.MockSheet{Available: true, AuthorizeWith: &sdkToken}
	client := New(sheet, WithHTTPClient(srv.Client()))

	res, err := client.Pay(context.Background(), sdkConfig(t, srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "PR1", res.PaymentReference)
	assert.Equal(t, model.VerdictApproved, res.Verdict)
	assert.False(t, client.InProgress())
}

func TestPayCancelled(t *testing.T) {
	srv := merchantBackend(t)
	defer srv.Close()

	sheet := &payment.MockSheet{Available: true, Cancel: true}
	client := New(sheet, WithHTTPClient(srv.Client()))

	_, err := client.Pay(context.Background(), sdkConfig(t, srv.URL))
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.CodeCancelled))
}

func TestListenersFire(t *testing.T) {
	srv := merchantBackend(t)
	defer srv.Close()

	sheet := &payment.MockSheet{Available: true, AuthorizeWith: &sdkToken}
	client := New(sheet, WithHTTPClient(srv.Client()))

	var mu sync.Mutex
	var succeeded []string
	var failed []string
	client.OnPaymentSuccess(func(res *model.PaymentResult) {
		mu.Lock()
		succeeded = append(succeeded, res.PaymentReference)
		mu.Unlock()
	})
	client.OnPaymentFailed(func(err error) {
		mu.Lock()
		failed = append(failed, model.CodeOf(err))
		mu.Unlock()
	})

	_, err := client.Pay(context.Background(), sdkConfig(t, srv.URL))
	require.NoError(t, err)

	sheet.Cancel = true
	sheet.AuthorizeWith = nil
	_, err = client.Pay(context.Background(), sdkConfig(t, srv.URL))
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PR1"}, succeeded)
	assert.Equal(t, []string{model.CodeCancelled}, failed)
}

func TestCanMakePayments(t *testing.T) {
	assert.True(t, New(&payment.MockSheet{Available: true}).CanMakePayments())
	assert.False(t, New(&payment.MockSheet{}).CanMakePayments())
}
