package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Error taxonomy for the complaints pipeline. Validation errors never reach
// the network; functional errors are downstream rejections and are not
// retried; transport errors are retried only where idempotent (lookups).

// FieldErrors maps a field name to its (single) validation message.
type FieldErrors map[string]string

// ErrValidation carries field-scoped validation failures. All failing
// fields are reported in one pass.
type ErrValidation struct {
	Fields FieldErrors
}

func (e *ErrValidation) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("validation failed on: %s", strings.Join(keys, ", "))
}

// ErrFunctional is an explicit downstream rejection (non-2xx with a
// response in hand). Not transient, never retried. Message holds the
// human-readable error extracted from the response body when the body is
// the gateway's {"error": ...} shape; it is shown to the user verbatim.
type ErrFunctional struct {
	Service string
	Status  int
	Body    string
	Message string
}

func (e *ErrFunctional) Error() string {
	return fmt.Sprintf("%s rejected the request (status %d)", e.Service, e.Status)
}

// ErrTransport is a network-level failure: connection refused, timeout,
// unreadable response. Retried where the operation is idempotent.
type ErrTransport struct {
	Service string
	Err     error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("transport error [%s]: %v", e.Service, e.Err)
}

func (e *ErrTransport) Unwrap() error {
	return e.Err
}

// ErrConfiguration indicates missing or inconsistent configuration. Fatal
// for setup tooling; the live gateway logs and degrades where it can.
type ErrConfiguration struct {
	Setting string
	Reason  string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("configuration error [%s]: %s", e.Setting, e.Reason)
}

// ErrRateLimit indicates the caller exceeded the request budget.
type ErrRateLimit struct {
	RetryAfter string
}

func (e *ErrRateLimit) Error() string {
	return "rate limit exceeded"
}

// ErrTimeout indicates a downstream call exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// APIError is the uniform client-facing error shape produced by the
// gateway regardless of failure origin.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}
