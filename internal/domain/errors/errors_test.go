package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name: "with wrapped error",
			err: &DomainError{
				Code:    "transfer_failed",
				Message: "transfer could not be committed",
				Err:     errors.New("lock timeout"),
			},
			expected: "transfer could not be committed: lock timeout",
		},
		{
			name: "without wrapped error",
			err: &DomainError{
				Code:    "invalid_state",
				Message: "session already revoked",
				Err:     nil,
			},
			expected: "session already revoked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	domainErr := NewDomainError("test", "test message", originalErr)

	assert.Equal(t, originalErr, domainErr.Unwrap())
	assert.ErrorIs(t, domainErr, originalErr)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Field:   "email",
		Message: "must be a valid email address",
	}

	expected := "validation failed for field email: must be a valid email address"
	assert.Equal(t, expected, err.Error())
}

func TestValidationError_IsInvalidInput(t *testing.T) {
	err := NewValidationError("national_id", "invalid check digits")

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, fmt.Errorf("register: %w", err), ErrInvalidInput)
	assert.False(t, errors.Is(err, ErrInvalidAmount))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization conflict", ErrSerializationConflict, true},
		{"wrapped conflict", fmt.Errorf("commit tx: %w", ErrSerializationConflict), true},
		{"insufficient funds", ErrInsufficientFunds, false},
		{"unavailable", ErrServiceUnavailable, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
