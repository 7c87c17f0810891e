package entities

import "errors"

// Input errors. Returned before any record is created.
var (
	ErrInvalidPlan        = errors.New("plan amount is not offered")
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
)

// Idempotency signals. Callers treat these as "someone else already did it".
var (
	ErrDuplicateCorrelation = errors.New("correlation id already in use by an open investment")
	ErrStaleState           = errors.New("investment status changed concurrently")
	ErrUnknownCorrelation   = errors.New("no investment matches correlation id")
)

// Gateway errors.
var (
	// ErrGatewayUnavailable covers transport failures, timeouts, 5xx responses and
	// credential refresh failures. Always retryable.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected means the gateway declined the request itself.
	ErrGatewayRejected = errors.New("payment gateway rejected request")
	// ErrPaymentPending means the customer has not answered the prompt yet.
	ErrPaymentPending = errors.New("payment is still being processed")
)

var (
	ErrInvestmentNotFound = errors.New("investment not found")
	ErrInvalidTransition  = errors.New("invalid investment status transition")
)

// IsRetryable reports whether err is a transient condition the caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable) || errors.Is(err, ErrPaymentPending)
}
