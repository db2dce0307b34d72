// Package backend implements the HTTP client for the EveryPay v4 API: payment
// initialization, link data fetch, wallet token authorization, and wallet
// identifier lookup. The client is stateless request/response mapping; it owns
// no session state and is safe to reuse across payment attempts.
package backend
