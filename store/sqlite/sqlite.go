/*
Package sqlite provides a SQLite-backed implementation of generic.TxStore.

PURPOSE:
  Persists every ledger record (tenants, branches, articles, parties,
  batches, transactions) as one JSON document per row. The ledger only
  needs get, filter-by-tenant and upsert, so a single keyed table is
  enough and new record kinds need no migration.

KEY TABLE:
  records(kind, id, tenant_id, body, updated_at)
    PRIMARY KEY (kind, id)
    idx_records_kind_tenant: FilterByTenant (hot path)

TENANT SAFETY:
  The upsert only replaces a row whose tenant_id matches. A write that
  would move a record to another tenant affects zero rows and is
  reported as generic.ErrTenantMismatch.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole unit of work, and its view reads through the sql.Tx so it sees
  its own uncommitted writes.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := textile.NewLedger(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: Same schema on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/textile-ledger/generic"
)

// Store implements generic.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		body TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_kind_tenant
		ON records(kind, tenant_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STORE (generic.Store interface)
// =============================================================================

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) GetAll(ctx context.Context, kind generic.Kind) ([]generic.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scan(ctx, s.db, kind, "")
}

func (s *Store) FilterByTenant(ctx context.Context, kind generic.Kind, tenant generic.TenantID) ([]generic.Document, error) {
	if tenant == "" {
		return nil, generic.ErrTenantRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scan(ctx, s.db, kind, tenant)
}

func (s *Store) Get(ctx context.Context, kind generic.Kind, tenant generic.TenantID, id string) (generic.Document, error) {
	if tenant == "" {
		return generic.Document{}, generic.ErrTenantRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(ctx, s.db, kind, tenant, id)
}

func (s *Store) SaveOrUpdate(ctx context.Context, doc generic.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return save(ctx, s.db, doc)
}

func scan(ctx context.Context, q queryer, kind generic.Kind, tenant generic.TenantID) ([]generic.Document, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if tenant == "" {
		rows, err = q.QueryContext(ctx,
			`SELECT id, tenant_id, body FROM records WHERE kind = ? ORDER BY id`, string(kind))
	} else {
		rows, err = q.QueryContext(ctx,
			`SELECT id, tenant_id, body FROM records WHERE kind = ? AND tenant_id = ? ORDER BY id`,
			string(kind), string(tenant))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]generic.Document, 0)
	for rows.Next() {
		var (
			id, tenantID, body string
		)
		if err := rows.Scan(&id, &tenantID, &body); err != nil {
			return nil, err
		}
		docs = append(docs, generic.Document{
			Kind:     kind,
			ID:       id,
			TenantID: generic.TenantID(tenantID),
			Body:     []byte(body),
		})
	}
	return docs, rows.Err()
}

func get(ctx context.Context, q queryer, kind generic.Kind, tenant generic.TenantID, id string) (generic.Document, error) {
	var body string
	err := q.QueryRowContext(ctx,
		`SELECT body FROM records WHERE kind = ? AND id = ? AND tenant_id = ?`,
		string(kind), id, string(tenant)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Document{}, &generic.NotFoundError{Kind: kind, TenantID: tenant, ID: id}
	}
	if err != nil {
		return generic.Document{}, err
	}
	return generic.Document{Kind: kind, ID: id, TenantID: tenant, Body: []byte(body)}, nil
}

func save(ctx context.Context, q queryer, doc generic.Document) error {
	if doc.TenantID == "" {
		return generic.ErrTenantRequired
	}
	if doc.ID == "" {
		return generic.ErrIDRequired
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO records (kind, id, tenant_id, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
		WHERE records.tenant_id = excluded.tenant_id
	`, string(doc.Kind), doc.ID, string(doc.TenantID), string(doc.Body), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrTenantMismatch
		}
		return fmt.Errorf("failed to save %s %q: %w", doc.Kind, doc.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrTenantMismatch
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", generic.ErrTransactionFailed, err)
	}
	return nil
}

// txStore runs with the parent's write lock already held.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetAll(ctx context.Context, kind generic.Kind) ([]generic.Document, error) {
	return scan(ctx, ts.tx, kind, "")
}

func (ts *txStore) FilterByTenant(ctx context.Context, kind generic.Kind, tenant generic.TenantID) ([]generic.Document, error) {
	if tenant == "" {
		return nil, generic.ErrTenantRequired
	}
	return scan(ctx, ts.tx, kind, tenant)
}

func (ts *txStore) Get(ctx context.Context, kind generic.Kind, tenant generic.TenantID, id string) (generic.Document, error) {
	if tenant == "" {
		return generic.Document{}, generic.ErrTenantRequired
	}
	return get(ctx, ts.tx, kind, tenant, id)
}

func (ts *txStore) SaveOrUpdate(ctx context.Context, doc generic.Document) error {
	return save(ctx, ts.tx, doc)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
