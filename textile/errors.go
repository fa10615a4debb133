/*
errors.go - Ledger error taxonomy

PURPOSE:
  Every rejection raised by the ledger, catalog and tenant services.
  All of them happen before any state change; none are retried.

ERROR CATEGORIES:
  1. Validation      - malformed input (missing fields, negative amounts)
  2. Stock           - consumption exceeds what a batch holds
  3. Reference       - dangling entityId, batchId, sourceBatchId, articleId
  4. Lineage         - a batch that would break the forest invariants
  5. Tenant          - read-only (expired subscription) tenants

USAGE:
  _, err := ledger.RecordTransaction(ctx, sale)
  var short *textile.InsufficientStockError
  if errors.As(err, &short) {
      // short.BatchID, short.Shortfall
  }

SEE ALSO:
  - generic/errors.go: Store-level errors
  - api/handlers.go: Maps these to HTTP status codes
*/
package textile

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/textile-ledger/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidAmount is returned for negative amounts, quantities or prices.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientStock is returned when a sale or work consumes more than a batch holds.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrReferenceNotFound is the parent of every dangling-reference error.
	ErrReferenceNotFound = errors.New("reference not found")

	ErrSourceBatchNotFound = errors.New("source batch not found")
	ErrBatchNotFound       = errors.New("batch not found")
	ErrUnknownParty        = errors.New("unknown party")
	ErrArticleNotFound     = errors.New("article not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrBranchNotFound      = errors.New("branch not found")
	ErrTenantNotFound      = errors.New("tenant not found")

	// ErrLineageIntegrity is returned when a batch would violate the forest invariants.
	ErrLineageIntegrity = errors.New("lineage integrity violated")

	// ErrBranchMismatch is returned when a transaction consumes stock held by another branch.
	ErrBranchMismatch = errors.New("batch belongs to another branch")

	// ErrOverpayment is returned when a payment or recovery exceeds the open balance.
	ErrOverpayment = errors.New("amount exceeds outstanding balance")

	// ErrNotClearable is returned by SetClearance for non-instrument transactions.
	ErrNotClearable = errors.New("only payment and recovery transactions can be cleared")

	// ErrReadOnlyTenant is returned for commands issued by a tenant whose subscription expired.
	ErrReadOnlyTenant = errors.New("tenant is read-only: subscription expired")

	// ErrUsernameTaken is returned by registration when the username exists.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidCredentials is returned by Authenticate.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidAmountError is a ValidationError for numeric fields.
type InvalidAmountError struct {
	Field string
	Value decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount for %s: %s", e.Field, e.Value)
}

func (e *InvalidAmountError) Unwrap() []error {
	return []error{ErrInvalidAmount, ErrValidation}
}

// InsufficientStockError identifies the batch and the shortfall.
// ItemIndex is the first line item that referenced the batch.
type InsufficientStockError struct {
	BatchID   string
	ItemIndex int
	Available decimal.Decimal
	Requested decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock in batch %s (item %d): available %s, requested %s, shortfall %s",
		e.BatchID, e.ItemIndex, e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

func shortage(batch StockBatch, itemIndex int, requested decimal.Decimal) *InsufficientStockError {
	return &InsufficientStockError{
		BatchID:   batch.ID,
		ItemIndex: itemIndex,
		Available: batch.CurrentQuantity,
		Requested: requested,
		Shortfall: requested.Sub(batch.CurrentQuantity),
	}
}

// ReferenceNotFoundError is a dangling id. Kind is one of the specific
// sentinels (ErrSourceBatchNotFound, ErrUnknownParty, ...).
type ReferenceNotFoundError struct {
	Kind error
	Ref  string
	ID   string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Ref, e.ID, e.Kind)
}

func (e *ReferenceNotFoundError) Unwrap() []error {
	return []error{e.Kind, ErrReferenceNotFound}
}

func notFound(kind error, ref, id string) error {
	return &ReferenceNotFoundError{Kind: kind, Ref: ref, ID: id}
}

// LineageIntegrityError describes a batch that cannot join the forest.
type LineageIntegrityError struct {
	BatchID string
	Reason  string
}

func (e *LineageIntegrityError) Error() string {
	return fmt.Sprintf("lineage integrity: batch %s: %s", e.BatchID, e.Reason)
}

func (e *LineageIntegrityError) Unwrap() error {
	return ErrLineageIntegrity
}

// BranchMismatchError is a validation failure for cross-branch consumption.
type BranchMismatchError struct {
	BatchID     string
	BatchBranch generic.BranchID
	TxBranch    generic.BranchID
}

func (e *BranchMismatchError) Error() string {
	return fmt.Sprintf("batch %s is held by branch %s, not %s", e.BatchID, e.BatchBranch, e.TxBranch)
}

func (e *BranchMismatchError) Unwrap() []error {
	return []error{ErrBranchMismatch, ErrValidation}
}

// OverpaymentError reports the open balance a payment tried to exceed.
type OverpaymentError struct {
	PartyID     string
	Outstanding decimal.Decimal
	Amount      decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("amount %s exceeds outstanding balance %s of %s", e.Amount, e.Outstanding, e.PartyID)
}

func (e *OverpaymentError) Unwrap() error {
	return ErrOverpayment
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotClearable) ||
		errors.Is(err, generic.ErrTenantRequired) ||
		errors.Is(err, generic.ErrIDRequired)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrReferenceNotFound) ||
		errors.Is(err, generic.ErrRecordNotFound)
}

// IsConflict returns true for business-rule conflicts the caller must resolve.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrUsernameTaken) ||
		generic.IsRetryable(err)
}
