/*
Package lock provides generic.TenantLocker implementations.

PURPOSE:
  Recording a transaction reads batches and balances, then writes them
  back. Two writers of the same tenant interleaving that read-modify-write
  would lose updates, so the ledger holds a per-tenant lock around it.

IMPLEMENTATIONS:
  Local: one mutex per tenant, for a single server process
  Redis: bsm/redislock, for several server processes sharing one database

SEE ALSO:
  - generic/store.go: TenantLocker interface
  - textile/ledger.go: Takes the lock in RecordTransaction
*/
package lock

import (
	"context"
	"sync"

	"github.com/warp/textile-ledger/generic"
)

// =============================================================================
// LOCAL - In-process mutex per tenant
// =============================================================================

type Local struct {
	mu      sync.Mutex
	tenants map[generic.TenantID]chan struct{}
}

func NewLocal() *Local {
	return &Local{tenants: make(map[generic.TenantID]chan struct{})}
}

// Lock blocks until the tenant is free or ctx is done.
// A one-slot channel is used instead of sync.Mutex so waiting honours ctx.
func (l *Local) Lock(ctx context.Context, tenant generic.TenantID) (func(), error) {
	if tenant == "" {
		return nil, generic.ErrTenantRequired
	}
	slot := l.slot(tenant)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}

func (l *Local) slot(tenant generic.TenantID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.tenants[tenant]
	if !ok {
		slot = make(chan struct{}, 1)
		l.tenants[tenant] = slot
	}
	return slot
}
