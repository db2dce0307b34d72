// Package sdk provides the high-level entry point for taking a mobile wallet
// payment through an EveryPay-compatible backend.
//
// # Quick Start
//
// Create an SDK instance around a payment sheet implementation, then start a
// payment:
//
//	import (
//		"context"
//
//		"github.com/shopspring/decimal"
//
//		"github.com/everypay/everypay-sdk-go/pkg/config"
//		"github.com/everypay/everypay-sdk-go/pkg/payment"
//		"github.com/everypay/everypay-sdk-go/pkg/sdk"
//	)
//
//	func main() {
//		client := sdk.New(nativeSheet) // your payment.Sheet implementation
//
//		cfg := &config.Config{
//			Auth:         config.Auth{APIUsername: "user", APISecret: "secret"},
//			AccountName:  "EUR3D1",
//			Amount:       decimal.RequireFromString("10.00"),
//			CurrencyCode: "EUR",
//			CountryCode:  "EE",
//			MerchantID:   "merchant.com.example",
//			BaseURL:      "https://pay.example.com",
//		}
//
//		result, err := client.Pay(context.Background(), cfg)
//		if err != nil {
//			// branch on model.CodeOf(err)
//		}
//		_ = result
//	}
//
// Callers preferring callbacks over the blocking Pay use StartPayment, or
// register listeners with OnPaymentSuccess/OnPaymentFailed.
package sdk
