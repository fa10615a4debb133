/*
errors.go - Store-level error types for the generic engine

PURPOSE:
  Errors raised by the record store and typed collections. Business rule
  errors (insufficient stock, unknown party, ...) live in the textile
  package and wrap nothing from here except ErrRecordNotFound lookups,
  which the ledger translates into domain-specific reference errors.

USAGE:
  doc, err := store.Get(ctx, kind, tenant, id)
  if errors.Is(err, generic.ErrRecordNotFound) {
      // translate to a domain error
  }

SEE ALSO:
  - store.go: Uses these errors
  - textile/errors.go: Domain error taxonomy
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRecordNotFound is returned by Get when the id does not exist
	// within the requested tenant.
	ErrRecordNotFound = errors.New("record not found")

	// ErrTenantRequired is returned when a read or write omits the tenant.
	ErrTenantRequired = errors.New("tenant id is required")

	// ErrIDRequired is returned when saving a record without an id.
	ErrIDRequired = errors.New("record id is required")

	// ErrTenantMismatch is returned when an upsert would move an existing
	// record to another tenant.
	ErrTenantMismatch = errors.New("record belongs to another tenant")

	// ErrLockNotObtained is returned when the tenant writer lock is held elsewhere.
	ErrLockNotObtained = errors.New("tenant lock not obtained")

	// ErrTransactionFailed is returned when a unit of work cannot be committed.
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotFoundError names the missing document.
type NotFoundError struct {
	Kind     Kind
	TenantID TenantID
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found for tenant %q", e.Kind, e.ID, e.TenantID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrRecordNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockNotObtained)
}
