package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorType_String(t *testing.T) {
	assert.Equal(t, "rate_limit", ErrorTypeRateLimit.String())
	assert.Equal(t, "transient", ErrorTypeTransient.String())
	assert.Equal(t, "non_retryable", ErrorTypeNonRetryable.String())
	assert.Equal(t, "config_invalid", ErrorTypeConfigInvalid.String())
	assert.Equal(t, "agent_not_found", ErrorTypeAgentNotFound.String())
	assert.Equal(t, "exhausted", ErrorTypeExhausted.String())
	assert.Equal(t, "cancelled", ErrorTypeCancelled.String())
	assert.Equal(t, "client_closed", ErrorTypeClientClosed.String())
	assert.Equal(t, "unknown", ErrorTypeUnknown.String())
	assert.Equal(t, "invalid", ErrorType(99).String())
}

func TestErrorType_ZeroValueIsUnknown(t *testing.T) {
	var et ErrorType
	assert.Equal(t, ErrorTypeUnknown, et)
	assert.Equal(t, "unknown", et.String())
	assert.Equal(t, "unknown", (&Error{}).Error())
}

func TestError_Retryable(t *testing.T) {
	retryable := []ErrorType{ErrorTypeRateLimit, ErrorTypeTransient, ErrorTypeUnknown}
	for _, et := range retryable {
		assert.True(t, NewError(et, "x").Retryable(), et.String())
	}

	terminal := []ErrorType{
		ErrorTypeNonRetryable, ErrorTypeConfigInvalid, ErrorTypeAgentNotFound,
		ErrorTypeExhausted, ErrorTypeCancelled, ErrorTypeClientClosed,
	}
	for _, et := range terminal {
		assert.False(t, NewError(et, "x").Retryable(), et.String())
	}
}

func TestError_Error(t *testing.T) {
	cause := errors.New("connection reset")

	assert.Equal(t, "transient: upstream hiccup: connection reset", NewErrorWithCause(ErrorTypeTransient, cause, "upstream hiccup").Error())
	assert.Equal(t, "rate_limit: slow down", NewError(ErrorTypeRateLimit, "slow down").Error())
	assert.Equal(t, "transient: connection reset", (&Error{Type: ErrorTypeTransient, Err: cause}).Error())
	assert.Equal(t, "unknown", (&Error{Type: ErrorTypeUnknown}).Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewErrorWithCause(ErrorTypeExhausted, cause, "retries exhausted")

	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("dispatch failed: %w", err)
	assert.True(t, IsErrorType(wrapped, ErrorTypeExhausted))
	assert.Equal(t, ErrorTypeExhausted, TypeOf(wrapped))
}

func TestIsErrorType_NonFrameworkError(t *testing.T) {
	assert.False(t, IsErrorType(errors.New("plain"), ErrorTypeTransient))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}
