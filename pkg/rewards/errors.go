package rewards

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the rewards core.
var (
	ErrNotAuthenticated     = errors.New("no authenticated user")
	ErrProfileNotFound      = errors.New("account profile not found")
	ErrRedemptionNotFound   = errors.New("redemption request not found")
	ErrRedemptionClosed     = errors.New("redemption request already settled")
	ErrUpstream             = errors.New("upstream store unavailable")
	ErrInconsistentWrite    = errors.New("paired record write failed")
	ErrInvalidPoints        = errors.New("invalid point amount")
	ErrInvalidEntryKind     = errors.New("invalid entry kind")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// InsufficientBalanceError reports a redemption larger than the redeemable
// balance, carrying the amount for display.
type InsufficientBalanceError struct {
	Available Points
	Requested Points
}

// Error returns the formatted message.
func (balanceError InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %d points available, %d requested", balanceError.Available, balanceError.Requested)
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
