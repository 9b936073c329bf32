/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All engine error types in one place. Callers (the API layer) map these to
  HTTP responses; the engine itself raises them and nothing else.

TAXONOMY:
  ValidationError  - malformed or invariant-violating input; caller can fix
                     and resubmit, never retried automatically
  NotFoundError    - referenced entity missing or not owned by the store
  ErrUnauthorized  - no identity, or identity has no store
  InternalError    - storage-layer failure, surfaced opaque

USAGE:
  if ledger.IsValidation(err) { ... 400 }
  if ledger.IsNotFound(err)   { ... 404 }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is the base of every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrValidation is the base of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned when no valid identity is attached to a
	// request, or the identity has no associated store.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal is the base of every InternalError.
	ErrInternal = errors.New("internal error")

	// ErrDuplicatePhone is returned when a customer or supplier phone number
	// is already registered. Phone numbers are unique across the system.
	ErrDuplicatePhone = errors.New("phone number already registered")
)

// =============================================================================
// STRUCTURED ERRORS - Carry field/index context
// =============================================================================

// ValidationError identifies what failed and where. Index is the offending
// line-item position, or -1 when the error is not item-scoped.
type ValidationError struct {
	Field   string
	Index   int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("item %d: %s", e.Index, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// validationf builds a record-scoped ValidationError.
func validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Index: -1, Message: fmt.Sprintf(format, args...)}
}

// itemErrorf builds an item-scoped ValidationError.
func itemErrorf(index int, format string, args ...any) *ValidationError {
	return &ValidationError{Field: "items", Index: index, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names the missing entity. A record that exists but belongs to
// another store is reported the same way: cross-tenant reads must not reveal
// existence.
type NotFoundError struct {
	Resource string // "customer", "supplier", "product", "record"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InternalError wraps a storage failure. The cause stays attached for server
// logs but callers only see an opaque kind.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return ErrInternal }

// internal wraps err unless it is already one of the engine's typed errors.
func internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) || IsNotFound(err) || errors.Is(err, ErrDuplicatePhone) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }
func IsInternal(err error) bool     { return errors.Is(err, ErrInternal) }
