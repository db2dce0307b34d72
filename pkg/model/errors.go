package model

import (
	"errors"
	"fmt"
)

// Error codes carried by PaymentError. Callers branch on these, never on the
// message text.
const (
	// CodeValidation means caller configuration or the payment context is
	// incomplete; no network call was made for this failure.
	CodeValidation = "validation_error"
	// CodeNetwork means a transport-level failure with no HTTP response.
	CodeNetwork = "network_error"
	// CodeBackend means the backend answered with a non-success HTTP status
	// or a response missing required fields.
	CodeBackend = "backend_error"
	// CodeCancelled means the user dismissed the payment sheet without
	// authorizing. A legitimate terminal outcome, not a defect.
	CodeCancelled = "cancelled"
	// CodeInProgress rejects a StartPayment issued while another attempt is
	// still in flight.
	CodeInProgress = "payment_in_progress"
	// CodeDeclined means authorization completed but the backend refused the
	// payment. Distinct from a transport or protocol error.
	CodeDeclined = "backend_declined"
)

// PaymentError is the discriminated error type surfaced by every failing SDK
// operation. Code identifies the kind, StatusCode is set for backend errors,
// and Message is human-readable.
type PaymentError struct {
	Code       string `json:"code"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
	cause      error
}

func (e *PaymentError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying transport error, if any.
func (e *PaymentError) Unwrap() error {
	return e.cause
}

// NewValidationError reports incomplete caller configuration or context.
func NewValidationError(message string) *PaymentError {
	return &PaymentError{Code: CodeValidation, Message: message}
}

// NewNetworkError wraps a transport failure that produced no HTTP response.
func NewNetworkError(cause error) *PaymentError {
	return &PaymentError{Code: CodeNetwork, Message: cause.Error(), cause: cause}
}

// NewBackendError reports a non-success HTTP status or a malformed response.
func NewBackendError(statusCode int, message string) *PaymentError {
	return &PaymentError{Code: CodeBackend, StatusCode: statusCode, Message: message}
}

// NewCancelledError reports user-initiated dismissal before authorization.
func NewCancelledError() *PaymentError {
	return &PaymentError{Code: CodeCancelled, Message: "payment cancelled by user"}
}

// NewInProgressError rejects an overlapping payment attempt.
func NewInProgressError() *PaymentError {
	return &PaymentError{Code: CodeInProgress, Message: "another payment is already in progress"}
}

// NewDeclinedError reports a backend-refused authorization with the backend's
// payment state for diagnostics.
func NewDeclinedError(paymentState string) *PaymentError {
	return &PaymentError{
		Code:    CodeDeclined,
		Message: fmt.Sprintf("payment rejected by backend (state: %s)", paymentState),
	}
}

// CodeOf returns the payment error code of err, or an empty string when err is
// not a PaymentError.
func CodeOf(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// HasCode reports whether err is a PaymentError with the given code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}
