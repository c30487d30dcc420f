package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Code classifies a failure inside the service. Codes are used as metric
// label values, so the set is fixed.
type Code string

// Service error codes.
const (
	ErrProbeNotFound    Code = "PROBE_NOT_FOUND"
	ErrProbeTimeout     Code = "PROBE_TIMEOUT"
	ErrProbeExitStatus  Code = "PROBE_EXIT_STATUS"
	ErrProbeExecFailed  Code = "PROBE_EXEC_FAILED"
	ErrProbeNoData      Code = "PROBE_NO_DATA"
	ErrProbeParseSkip   Code = "PROBE_PARSE_SKIP"
	ErrComputeFailed    Code = "COMPUTE_FAILED"
	ErrComputeSaturated Code = "COMPUTE_SATURATED"
)

// Reason returns the lower-case metric label form of the code,
// e.g. "probe_timeout".
func (c Code) Reason() string {
	return strings.ToLower(string(c))
}

// AppError is a typed error with code, component, and optional wrapped error.
type AppError struct {
	Code      Code
	Message   string
	Component string
	Err       error
}

// New builds an AppError.
func New(code Code, component, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Component: component, Err: err}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility.
func (e *AppError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first AppError in err's chain, or "" if
// there is none.
func CodeOf(err error) Code {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
