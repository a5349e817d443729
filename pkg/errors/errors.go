package errors

import (
	"context"
	"errors"
	"fmt"
)

// ProbeError is the structured error carried by probe and sampling
// operations. Nothing in the collector core treats these as fatal; they are
// surfaced to callers as typed results.
type ProbeError struct {
	Code    string
	Message string
	Cause   error
	Host    string
}

func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProbeError) Unwrap() error { return e.Cause }

const (
	ErrCodeUnavailable  = "UNAVAILABLE"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeProbeFailed  = "PROBE_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeBusy         = "BUSY"
)

// ErrUnavailable marks an optional capability that was not detected at
// startup.
func ErrUnavailable(msg string) *ProbeError {
	return &ProbeError{
		Code:    ErrCodeUnavailable,
		Message: msg,
	}
}

func ErrProbeFailed(msg string, cause error) *ProbeError {
	return &ProbeError{
		Code:    ErrCodeProbeFailed,
		Message: msg,
		Cause:   cause,
	}
}

func ErrProbeTimeout(host string, cause error) *ProbeError {
	return &ProbeError{
		Code:    ErrCodeTimeout,
		Message: "probe timed out",
		Cause:   cause,
		Host:    host,
	}
}

// ErrBusy marks an operation that is serialized and currently in flight.
func ErrBusy(msg string) *ProbeError {
	return &ProbeError{
		Code:    ErrCodeBusy,
		Message: msg,
	}
}

func ErrInvalidInput(msg string) *ProbeError {
	return &ProbeError{
		Code:    ErrCodeInvalidInput,
		Message: msg,
	}
}

func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
