/*
store.go - Persistence interface for tenant-scoped records

PURPOSE:
  Defines the interface between the ledger logic and the database.
  The ledger never touches storage directly; it only calls the get,
  filter and save primitives below. Different implementations can use
  SQLite, PostgreSQL, or in-memory maps.

KEY INTERFACES:
  Store:        Collection-of-records primitives keyed by Kind
  TxStore:      Store plus all-or-nothing execution of a unit of work
  TenantLocker: Serializes writers of one tenant

TENANT SCOPING:
  FilterByTenant and Get require a TenantID. A record saved for tenant A
  is invisible to a Get issued for tenant B even when the ids collide.
  Cross-tenant interference is impossible by construction.

ATOMIC UNITS:
  WithTx() runs fn against a transactional view. If fn returns an error,
  every write made through the view is discarded. Recording a sale that
  touches three batches and one customer is one unit.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory, snapshot + restore
  - store/sqlite/sqlite.go: SQLite, one JSON document per row
  - store/postgres/postgres.go: PostgreSQL via pgx, JSONB documents

SEE ALSO:
  - collection.go: Typed access on top of Store
  - textile/ledger.go: The only writer in normal operation
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Collection-of-records primitives
// =============================================================================

// Store persists tenant-scoped documents. SaveOrUpdate is an atomic
// single-record upsert; the scans return documents ordered by id.
type Store interface {
	// GetAll returns every document of a kind across all tenants.
	// Used by administrative tooling only.
	GetAll(ctx context.Context, kind Kind) ([]Document, error)

	// FilterByTenant returns the documents of a kind owned by tenant.
	FilterByTenant(ctx context.Context, kind Kind, tenant TenantID) ([]Document, error)

	// Get returns one document. Returns ErrRecordNotFound if the id does not
	// exist for this tenant.
	Get(ctx context.Context, kind Kind, tenant TenantID, id string) (Document, error)

	// SaveOrUpdate inserts or replaces the document with the same kind and id.
	SaveOrUpdate(ctx context.Context, doc Document) error
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
// Use this when several records must change together (recording a transaction).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// TENANT LOCK - Single writer per tenant
// =============================================================================

// TenantLocker grants exclusive write access to one tenant's records.
// The returned release func must be called exactly once.
type TenantLocker interface {
	Lock(ctx context.Context, tenant TenantID) (release func(), err error)
}

// LockTTL bounds how long a distributed tenant lock may be held.
const LockTTL = 30 * time.Second
