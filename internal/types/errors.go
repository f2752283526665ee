package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for Itinera engine errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Planning error codes
const (
	CONSTRAINT_CONFLICT ErrorCode = "CONSTRAINT_CONFLICT"
	DATA_GAP            ErrorCode = "DATA_GAP"
	STAGE_TIMEOUT       ErrorCode = "STAGE_TIMEOUT"
	BUDGET_EXHAUSTED    ErrorCode = "BUDGET_EXHAUSTED"
	LEDGER_MISMATCH     ErrorCode = "LEDGER_MISMATCH"
)

// Graph error codes
const (
	GRAPH_CYCLE_DETECTED     ErrorCode = "GRAPH_CYCLE_DETECTED"
	GRAPH_MISSING_DEPENDENCY ErrorCode = "GRAPH_MISSING_DEPENDENCY"
	GRAPH_DEADLOCK           ErrorCode = "GRAPH_DEADLOCK"
	GRAPH_INVALID            ErrorCode = "GRAPH_INVALID"
	RUN_CANCELLED            ErrorCode = "RUN_CANCELLED"
)

// Stage error codes
const (
	STAGE_NOT_FOUND        ErrorCode = "STAGE_NOT_FOUND"
	STAGE_INVOKE_FAILED    ErrorCode = "STAGE_INVOKE_FAILED"
	STAGE_BAD_REDIRECT     ErrorCode = "STAGE_BAD_REDIRECT"
	SUPPLY_QUERY_FAILED    ErrorCode = "SUPPLY_QUERY_FAILED"
	BLACKBOARD_KEY_MISSING ErrorCode = "BLACKBOARD_KEY_MISSING"
)

// EngineError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type EngineError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is an EngineError with the same Code.
func (e *EngineError) Is(target error) bool {
	var engineErr *EngineError
	if errors.As(target, &engineErr) {
		return e.Code == engineErr.Code
	}
	return false
}

// NewError creates a new non-retryable EngineError with the given code and message.
func NewError(code ErrorCode, message string) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a new retryable EngineError with the given code and message.
// Use this for errors that may succeed on a narrowed re-run (e.g., a feasibility
// conflict that a repaired search pass can resolve).
func NewRetryableError(code ErrorCode, message string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a new non-retryable EngineError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRetryable reports whether err carries a retryable EngineError anywhere
// in its chain.
func IsRetryable(err error) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or returns an empty code if err
// is not an EngineError.
func CodeOf(err error) ErrorCode {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	return ""
}
