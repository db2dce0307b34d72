// Package config defines the caller-supplied configuration for a payment
// attempt: merchant account and auth credentials, the amount and currency,
// backend endpoint URLs, and operation timeouts. It provides validation and
// defaulting helpers plus derivation of the EveryPay v4 endpoint set from a
// single base URL.
package config
