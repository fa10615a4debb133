/*
Package generic provides the domain-agnostic record engine.

PURPOSE:
  This package contains the pieces every shop ledger needs regardless of
  what it sells: tenant-scoped identifiers, a collection-of-records store
  interface, typed collections on top of it, exact decimal helpers and the
  per-tenant writer lock. The textile package builds the inventory and
  costing rules on top of these primitives.

KEY CONCEPTS IN THIS FILE (types.go):
  - TenantID / BranchID: Type-safe scope identifiers
  - Kind: Name of a record collection (articles, batches, ...)
  - Document: One stored record, framed as JSON
  - Record: What a domain type must expose to live in a Collection

DESIGN PRINCIPLES:
  1. Tenant scoping: every read and write takes a TenantID
  2. Precision: quantities and money use decimal.Decimal
  3. Persistence agnostic: the store only sees kind, id, tenant and bytes

USAGE:
  articles := generic.NewCollection[Article](KindArticles)
  err := articles.Save(ctx, store, Article{ID: "art-1", TenantID: "t-1"})
  list, err := articles.Filter(ctx, store, "t-1")

SEE ALSO:
  - store.go: Store / TxStore interfaces
  - collection.go: Typed access over a Store
  - store/memory.go: In-memory implementation
*/
package generic

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type BranchID string

// Kind names a record collection. The set of kinds is owned by the domain
// package; the store treats it as an opaque partition key.
type Kind string

// =============================================================================
// DOCUMENT - The unit of persistence
// =============================================================================

// Document is a single stored record. Body holds the JSON encoding of the
// domain value; ID is unique within a Kind.
type Document struct {
	Kind     Kind
	ID       string
	TenantID TenantID
	Body     json.RawMessage
}

// Record is implemented by every domain type stored through a Collection.
type Record interface {
	RecordID() string
	RecordTenant() TenantID
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Dec is shorthand for building decimals from integers in tests and seeds.
func Dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// SumDecimals adds up a list of values.
func SumDecimals(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
