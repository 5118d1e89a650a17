package eventmodels

import (
	"errors"
	"fmt"
)

// ErrCapabilityUnavailable signals a known limitation of the selected
// integration mode. It is not a failure: nothing was sent to the terminal.
var ErrCapabilityUnavailable = fmt.Errorf("capability not available in file-drop mode")

var ErrNotConnected = fmt.Errorf("session is not connected")

type ValidationReason string

const (
	MissingMagic          ValidationReason = "missing_magic"
	UnknownSymbol         ValidationReason = "unknown_symbol"
	InvalidSide           ValidationReason = "invalid_side"
	InvalidQuantity       ValidationReason = "invalid_quantity"
	InvalidOrderKind      ValidationReason = "invalid_order_kind"
	InvalidPrice          ValidationReason = "invalid_price"
	InvalidBracket        ValidationReason = "invalid_bracket"
	MissingReferencePrice ValidationReason = "missing_reference_price"
)

type ValidationError struct {
	Reason ValidationReason
	Field  string
	Value  interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): field %q, value %v", e.Reason, e.Field, e.Value)
}

// Is matches another *ValidationError with the same reason, so callers can
// write errors.Is(err, &ValidationError{Reason: InvalidSide}).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}

	return t.Reason == e.Reason
}

func NewValidationError(reason ValidationReason, field string, value interface{}) *ValidationError {
	return &ValidationError{
		Reason: reason,
		Field:  field,
		Value:  value,
	}
}

func IsValidationReason(err error, reason ValidationReason) bool {
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		return false
	}

	return vErr.Reason == reason
}

type ConnectivityError struct {
	TerminalID TerminalID
	Cause      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("terminal %s: connectivity: %v", e.TerminalID, e.Cause)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Cause
}

func NewConnectivityError(terminalID TerminalID, cause error) *ConnectivityError {
	return &ConnectivityError{
		TerminalID: terminalID,
		Cause:      cause,
	}
}

type ConfigurationError struct {
	Key   string
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%q", e.Key, e.Value)
}

func NewConfigurationError(key, value string) *ConfigurationError {
	return &ConfigurationError{
		Key:   key,
		Value: value,
	}
}

// BrokerRejection is returned when the terminal was reached but reported a
// failure, or when the transport to it failed mid-call.
type BrokerRejection struct {
	Command    string
	StatusCode int
	Body       string
	Cause      error
}

func (e *BrokerRejection) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s rejected: %v", e.Command, e.Cause)
	}

	return fmt.Sprintf("%s rejected: status %d: %s", e.Command, e.StatusCode, e.Body)
}

func (e *BrokerRejection) Unwrap() error {
	return e.Cause
}
