package mpesa

import (
	"fmt"
	"strings"
)

// GatewayError describes a failed gateway call. It unwraps to its Kind, one of
// entities.ErrGatewayUnavailable, entities.ErrGatewayRejected or
// entities.ErrPaymentPending, and to the underlying cause if there is one.
type GatewayError struct {
	Op         string // "token", "initiate" or "query"
	Kind       error
	StatusCode int    // HTTP status, 0 if no response was received
	Code       string // gateway errorCode or ResponseCode
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mpesa %s: %v", e.Op, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *GatewayError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
