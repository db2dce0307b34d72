// Package model defines the shared data structures exchanged between the
// backend client, the payment session, and SDK callers: initialization and
// authorization results, the backend verdict, and the discriminated payment
// error taxonomy. These structs mirror the JSON documents produced by the
// EveryPay v4 API.
package model
