// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/textile-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	docs map[generic.Kind]map[string]generic.Document
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[generic.Kind]map[string]generic.Document),
	}
}

func (m *Memory) GetAll(_ context.Context, kind generic.Kind) ([]generic.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanLocked(kind, ""), nil
}

func (m *Memory) FilterByTenant(_ context.Context, kind generic.Kind, tenant generic.TenantID) ([]generic.Document, error) {
	if tenant == "" {
		return nil, generic.ErrTenantRequired
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanLocked(kind, tenant), nil
}

func (m *Memory) Get(_ context.Context, kind generic.Kind, tenant generic.TenantID, id string) (generic.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(kind, tenant, id)
}

// SaveOrUpdate upserts a single document.
func (m *Memory) SaveOrUpdate(_ context.Context, doc generic.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(doc)
}

func (m *Memory) scanLocked(kind generic.Kind, tenant generic.TenantID) []generic.Document {
	result := make([]generic.Document, 0, len(m.docs[kind]))
	for _, doc := range m.docs[kind] {
		if tenant != "" && doc.TenantID != tenant {
			continue
		}
		result = append(result, cloneDoc(doc))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *Memory) getLocked(kind generic.Kind, tenant generic.TenantID, id string) (generic.Document, error) {
	if tenant == "" {
		return generic.Document{}, generic.ErrTenantRequired
	}
	doc, ok := m.docs[kind][id]
	if !ok || doc.TenantID != tenant {
		return generic.Document{}, &generic.NotFoundError{Kind: kind, TenantID: tenant, ID: id}
	}
	return cloneDoc(doc), nil
}

func (m *Memory) saveLocked(doc generic.Document) error {
	if doc.TenantID == "" {
		return generic.ErrTenantRequired
	}
	if doc.ID == "" {
		return generic.ErrIDRequired
	}
	byID, ok := m.docs[doc.Kind]
	if !ok {
		byID = make(map[string]generic.Document)
		m.docs[doc.Kind] = byID
	}
	if existing, ok := byID[doc.ID]; ok && existing.TenantID != doc.TenantID {
		return generic.ErrTenantMismatch
	}
	byID[doc.ID] = cloneDoc(doc)
	return nil
}

// Bodies are copied on the way in and out so callers can never alias stored state.
func cloneDoc(doc generic.Document) generic.Document {
	body := make([]byte, len(doc.Body))
	copy(body, doc.Body)
	doc.Body = body
	return doc
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	txStore := &txMemoryView{parent: tm}

	if err := fn(txStore); err != nil {
		tm.restore(snapshot)
		return err
	}

	// Commit (already done via direct writes)
	return nil
}

func (tm *TxMemory) snapshot() map[generic.Kind]map[string]generic.Document {
	docsCopy := make(map[generic.Kind]map[string]generic.Document, len(tm.docs))
	for kind, byID := range tm.docs {
		inner := make(map[string]generic.Document, len(byID))
		for id, doc := range byID {
			inner[id] = doc
		}
		docsCopy[kind] = inner
	}
	return docsCopy
}

func (tm *TxMemory) restore(s map[generic.Kind]map[string]generic.Document) {
	tm.docs = s
}

// txMemoryView runs with the parent's write lock already held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) GetAll(_ context.Context, kind generic.Kind) ([]generic.Document, error) {
	return tv.parent.scanLocked(kind, ""), nil
}

func (tv *txMemoryView) FilterByTenant(_ context.Context, kind generic.Kind, tenant generic.TenantID) ([]generic.Document, error) {
	if tenant == "" {
		return nil, generic.ErrTenantRequired
	}
	return tv.parent.scanLocked(kind, tenant), nil
}

func (tv *txMemoryView) Get(_ context.Context, kind generic.Kind, tenant generic.TenantID, id string) (generic.Document, error) {
	return tv.parent.getLocked(kind, tenant, id)
}

func (tv *txMemoryView) SaveOrUpdate(_ context.Context, doc generic.Document) error {
	return tv.parent.saveLocked(doc)
}
