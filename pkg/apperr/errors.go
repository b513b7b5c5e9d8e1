package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors — match with errors.Is()
var (
	// ErrNotFound is returned when a budget, category, item or owning record is absent.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for missing required fields, negative amounts or unknown status values.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when re-transitioning a terminal item/proposal or re-adding to inventory.
	ErrConflict = errors.New("conflict")

	// ErrInsufficientFunds is returned when a debit exceeds the current spendable amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvariantViolation indicates a stored aggregate disagrees with its recomputed value.
	// This is a bug, never silently corrected.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrConcurrentModification is returned when an optimistic version check loses the race.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// NotFoundError carries the entity kind and identifier that could not be resolved.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError carries the offending field and a human-readable message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError carries the entity whose state forbids the attempted transition.
type ConflictError struct {
	Entity  string
	ID      string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Message)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InsufficientFundsError carries the attempted debit and the balance it exceeded.
type InsufficientFundsError struct {
	BudgetItemID string
	Requested    decimal.Decimal
	Available    decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on budget item %s: requested %s, available %s",
		e.BudgetItemID, e.Requested.String(), e.Available.String())
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// InvariantViolationError reports a stored aggregate value that disagrees with
// the value recomputed from its children.
type InvariantViolationError struct {
	Entity   string
	ID       string
	Field    string
	Stored   decimal.Decimal
	Computed decimal.Decimal
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s %s: stored %s=%s, computed %s",
		e.Entity, e.ID, e.Field, e.Stored.String(), e.Computed.String())
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is a terminal-state or duplicate-action conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsRetryable reports whether a compound operation might succeed on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrConcurrentModification) }
