/*
Package postgres provides a PostgreSQL implementation of generic.TxStore.

PURPOSE:
  Same document layout as the SQLite store, for multi-instance
  deployments. Bodies are stored as JSONB so ad-hoc reporting can query
  into them; the ledger itself only uses kind, id and tenant_id.

CONCURRENCY:
  No process mutex. WithTx runs at SERIALIZABLE isolation and PostgreSQL
  resolves conflicting writers. A serialization failure is reported as
  generic.ErrTransactionFailed; the tenant lock (local or Redis) normally
  keeps writers of one tenant from ever colliding.

USAGE:
  store, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlite/sqlite.go: Single-file equivalent
  - lock/redis.go: Cross-instance tenant lock
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/warp/textile-ledger/generic"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			body JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (kind, id)
		);
		CREATE INDEX IF NOT EXISTS idx_records_kind_tenant ON records(kind, tenant_id, id);
	`)
	return err
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) GetAll(ctx context.Context, kind generic.Kind) ([]generic.Document, error) {
	return scan(ctx, s.db, kind, "")
}

func (s *Store) FilterByTenant(ctx context.Context, kind generic.Kind, tenant generic.TenantID) ([]generic.Document, error) {
	if tenant == "" {
		return nil, generic.ErrTenantRequired
	}
	return scan(ctx, s.db, kind, tenant)
}

func (s *Store) Get(ctx context.Context, kind generic.Kind, tenant generic.TenantID, id string) (generic.Document, error) {
	if tenant == "" {
		return generic.Document{}, generic.ErrTenantRequired
	}
	return get(ctx, s.db, kind, tenant, id)
}

func (s *Store) SaveOrUpdate(ctx context.Context, doc generic.Document) error {
	return save(ctx, s.db, doc)
}

// WithTx runs fn in a SERIALIZABLE transaction.
func (s *Store) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&txStore{tx: tx}); err != nil {
		return mapTxError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapTxError(err)
	}
	return nil
}

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

func scan(ctx context.Context, q queryer, kind generic.Kind, tenant generic.TenantID) ([]generic.Document, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if tenant == "" {
		rows, err = q.QueryContext(ctx, `
			SELECT id, tenant_id, body FROM records WHERE kind = $1 ORDER BY id
		`, string(kind))
	} else {
		rows, err = q.QueryContext(ctx, `
			SELECT id, tenant_id, body FROM records WHERE kind = $1 AND tenant_id = $2 ORDER BY id
		`, string(kind), string(tenant))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]generic.Document, 0)
	for rows.Next() {
		var (
			id, tenantID string
			body         []byte
		)
		if err := rows.Scan(&id, &tenantID, &body); err != nil {
			return nil, err
		}
		docs = append(docs, generic.Document{Kind: kind, ID: id, TenantID: generic.TenantID(tenantID), Body: body})
	}
	return docs, rows.Err()
}

func get(ctx context.Context, q queryer, kind generic.Kind, tenant generic.TenantID, id string) (generic.Document, error) {
	var body []byte
	err := q.QueryRowContext(ctx, `
		SELECT body FROM records WHERE kind = $1 AND id = $2 AND tenant_id = $3
	`, string(kind), id, string(tenant)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Document{}, &generic.NotFoundError{Kind: kind, TenantID: tenant, ID: id}
	}
	if err != nil {
		return generic.Document{}, err
	}
	return generic.Document{Kind: kind, ID: id, TenantID: tenant, Body: body}, nil
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
		VALUES ($1, $2, $3, $4::jsonb, now())
		ON CONFLICT (kind, id) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
		WHERE records.tenant_id = EXCLUDED.tenant_id
	`, string(doc.Kind), doc.ID, string(doc.TenantID), string(doc.Body))
	if err != nil {
		return err
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

// mapTxError turns serialization and deadlock failures into ErrTransactionFailed.
func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: %s", generic.ErrTransactionFailed, pgErr.Message)
	}
	return err
}
