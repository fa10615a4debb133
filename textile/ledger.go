/*
ledger.go - The single write path for stock and balances

PURPOSE:
  Ledger.RecordTransaction is the only operation that creates or consumes
  batches and moves party balances. Every call is one unit:

    validate header -> lock tenant -> plan (all reads + checks) -> write batches
    -> write party balance -> append transaction

  Planning performs every lookup and every rule check before the first
  write. The writes then run inside TxStore.WithTx, so even a storage
  failure half way through leaves nothing behind.

CONCURRENCY:
  Writers of one tenant are serialized through a generic.TenantLocker.
  The default is an in-process mutex; multi-instance deployments inject
  the Redis locker from package lock.

SEE ALSO:
  - posting.go: Per-type planning rules
  - balances.go: Replay of the balance side effects
  - queries.go: Read side
*/
package textile

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/textile-ledger/generic"
	"github.com/warp/textile-ledger/lock"
)

// Ledger records transactions and answers stock and party queries for all tenants.
type Ledger struct {
	store generic.TxStore
	locks generic.TenantLocker
	now   func() time.Time
	newID func() string
	log   *logrus.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLocker replaces the in-process tenant lock.
func WithLocker(locks generic.TenantLocker) Option {
	return func(l *Ledger) { l.locks = locks }
}

// WithClock sets the time source used for CreatedAt and subscription checks.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator sets the id source for transactions and batches.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithLogger sets the logger for recorded and rejected transactions.
func WithLogger(log *logrus.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// NewLedger creates a ledger over store with an in-process lock and a silent logger.
func NewLedger(store generic.TxStore, opts ...Option) *Ledger {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	l := &Ledger{
		store: store,
		locks: lock.NewLocal(),
		now:   time.Now,
		newID: uuid.NewString,
		log:   quiet,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store exposes the underlying store to sibling services (catalog, tenants).
func (l *Ledger) Store() generic.TxStore { return l.store }

// =============================================================================
// RECORD TRANSACTION
// =============================================================================

// RecordTransaction validates cmd, applies its batch and balance side effects
// and appends the transaction. On error nothing is persisted.
func (l *Ledger) RecordTransaction(ctx context.Context, cmd Command) (*Transaction, error) {
	cmd, err := concrete(cmd)
	if err != nil {
		return nil, err
	}
	h := cmd.header()
	if err := h.validate(); err != nil {
		l.rejected(h, cmd.Type(), err)
		return nil, err
	}

	var recorded Transaction
	err = l.write(ctx, h.TenantID, func(s generic.Store) error {
		p, err := l.plan(ctx, s, cmd)
		if err != nil {
			return err
		}
		if err := p.apply(ctx, s); err != nil {
			return err
		}
		recorded = p.tx
		return nil
	})
	if err != nil {
		l.rejected(h, cmd.Type(), err)
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"tenant_id": recorded.TenantID,
		"branch_id": recorded.BranchID,
		"tx_type":   recorded.Type,
		"tx_id":     recorded.ID,
		"amount":    recorded.Amount.String(),
	}).Info("transaction recorded")
	return &recorded, nil
}

func (l *Ledger) rejected(h Header, t TxType, err error) {
	entry := l.log.WithFields(logrus.Fields{
		"tenant_id": h.TenantID,
		"branch_id": h.BranchID,
		"tx_type":   t,
	}).WithError(err)
	if IsClientError(err) || IsNotFound(err) || IsConflict(err) || errors.Is(err, ErrReadOnlyTenant) {
		entry.Warn("transaction rejected")
		return
	}
	entry.Error("transaction failed")
}

// write runs fn as one unit of work for tenant after the read-only check.
func (l *Ledger) write(ctx context.Context, tenant generic.TenantID, fn func(generic.Store) error) error {
	return l.unit(ctx, tenant, func(s generic.Store) error {
		if err := l.checkWritable(ctx, s, tenant); err != nil {
			return err
		}
		return fn(s)
	})
}

// unit holds the tenant lock and runs fn inside WithTx.
func (l *Ledger) unit(ctx context.Context, tenant generic.TenantID, fn func(generic.Store) error) error {
	release, err := l.locks.Lock(ctx, tenant)
	if err != nil {
		return err
	}
	defer release()
	return l.store.WithTx(ctx, fn)
}

// checkWritable rejects commands from tenants whose subscription expired.
// Tenants without a profile record (tests, imports) are writable.
func (l *Ledger) checkWritable(ctx context.Context, s generic.Store, tenant generic.TenantID) error {
	t, found, err := tenants.Find(ctx, s, tenant, string(tenant))
	if err != nil {
		return err
	}
	if found && t.ReadOnly(l.now()) {
		return ErrReadOnlyTenant
	}
	return nil
}

// =============================================================================
// CLEARANCE
// =============================================================================

// SetClearance flips the clearance flag of a PAYMENT or RECOVERY.
// Amounts and balances are never touched.
func (l *Ledger) SetClearance(ctx context.Context, tenant generic.TenantID, txID string, isCleared bool, note string) (*Transaction, error) {
	if tenant == "" {
		return nil, invalid("tenant_id", "is required")
	}
	var updated Transaction
	err := l.write(ctx, tenant, func(s generic.Store) error {
		tx, found, err := transactions.Find(ctx, s, tenant, txID)
		if err != nil {
			return err
		}
		if !found {
			return notFound(ErrTransactionNotFound, "transaction_id", txID)
		}
		if tx.Type != TxPayment && tx.Type != TxRecovery {
			return ErrNotClearable
		}

		tx.IsCleared = isCleared
		tx.ClearanceNote = note
		tx.ClearedAt = nil
		if isCleared {
			at := l.now()
			tx.ClearedAt = &at
		}
		updated = tx
		return transactions.Save(ctx, s, tx)
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"tenant_id":  tenant,
		"tx_id":      txID,
		"is_cleared": isCleared,
	}).Info("clearance updated")
	return &updated, nil
}
