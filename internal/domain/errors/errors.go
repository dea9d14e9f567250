package errors

import (
	"errors"
	"fmt"
)

var (
	// Input errors
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("account already exists with this email or national id")

	// Authentication errors
	ErrUnauthorized = errors.New("invalid credentials")

	// Lookup errors
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSessionNotFound     = errors.New("session not found")

	// Transfer errors
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrInvalidSelfTransfer = errors.New("cannot transfer to yourself")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransferFailed      = errors.New("transfer failed, please retry")

	// Storage errors
	ErrServiceUnavailable      = errors.New("service unavailable")
	ErrSerializationConflict   = errors.New("serialization conflict")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error. It matches ErrInvalidInput
// under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsRetryable reports whether err is a transient storage conflict that a
// fresh attempt of the same unit of work may resolve.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerializationConflict)
}
