package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrNoActiveGateway    = errors.New("no active payment gateway configured")
)

// ValidationError reports an unmet checkout precondition. No external call is
// made when one of these is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// GatewayError wraps a transport failure or a provider-side rejection.
type GatewayError struct {
	Gateway string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %s: %v", e.Gateway, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s", e.Gateway, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func NewGatewayError(gateway, message string, err error) *GatewayError {
	return &GatewayError{Gateway: gateway, Message: message, Err: err}
}

// ReconciliationError marks a webhook body we could not make sense of.
// Receivers log it and still acknowledge the delivery, so the sender does not
// enter a retry storm.
type ReconciliationError struct {
	Gateway string
	Reason  string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile %s: %s", e.Gateway, e.Reason)
}

// ProvisioningError reports a failed account creation/extension after a payment
// was already marked approved. The payment stays approved; the repair path can
// re-run provisioning later.
type ProvisioningError struct {
	PaymentID string
	Err       error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning payment %s: %v", e.PaymentID, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }
