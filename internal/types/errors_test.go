package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEngineErrorFormatting verifies the [CODE] message rendering with
// and without a cause.
func TestEngineErrorFormatting(t *testing.T) {
	plain := NewError(DATA_GAP, "no offers")
	assert.Equal(t, "[DATA_GAP] no offers", plain.Error())

	wrapped := WrapError(SUPPLY_QUERY_FAILED, "query failed", errors.New("timeout"))
	assert.Equal(t, "[SUPPLY_QUERY_FAILED] query failed: timeout", wrapped.Error())
}

// TestEngineErrorUnwrapping verifies errors.Is/As work through wrapping
// and that Is matches by code.
func TestEngineErrorUnwrapping(t *testing.T) {
	cause := errors.New("socket closed")
	err := WrapError(SUPPLY_QUERY_FAILED, "query failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, fmt.Errorf("outer: %w", err), NewError(SUPPLY_QUERY_FAILED, "anything"))

	var engineErr *EngineError
	require.ErrorAs(t, fmt.Errorf("outer: %w", err), &engineErr)
	assert.Equal(t, SUPPLY_QUERY_FAILED, engineErr.Code)
}

// TestCodeOf verifies code extraction across wrapping and non-engine
// errors.
func TestCodeOf(t *testing.T) {
	err := WrapError(CONSTRAINT_CONFLICT, "bad dates", errors.New("x"))
	assert.Equal(t, CONSTRAINT_CONFLICT, CodeOf(fmt.Errorf("wrap: %w", err)))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

// TestIsRetryable verifies the retryability hint survives wrapping.
func TestIsRetryable(t *testing.T) {
	retryable := NewRetryableError(DATA_GAP, "transient gap")
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", retryable)))
	assert.False(t, IsRetryable(NewError(DATA_GAP, "permanent")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
