/*
open.go - Backend selection

PURPOSE:
  Maps DB_DRIVER to a concrete TxStore and REDIS_ADDR to a tenant lock, so
  the server and ledgerctl open the ledger the same way.

DRIVERS:
  memory    generic/store.TxMemory, lost on exit
  sqlite    store/sqlite, single file (DB_PATH)
  postgres  store/postgres, DATABASE_URL

SEE ALSO:
  - config/config.go: Environment variables
  - lock/redis.go: Cross-process tenant lock
*/
package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warp/textile-ledger/config"
	"github.com/warp/textile-ledger/generic"
	memory "github.com/warp/textile-ledger/generic/store"
	"github.com/warp/textile-ledger/lock"
	"github.com/warp/textile-ledger/store/postgres"
	"github.com/warp/textile-ledger/store/sqlite"
	"github.com/warp/textile-ledger/textile"
)

// Open returns the configured store and a function that releases it.
func Open(ctx context.Context, cfg config.Config) (generic.TxStore, func() error, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		return memory.NewTxMemory(), func() error { return nil }, nil
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

// OpenLedger opens the store, attaches the Redis lock when REDIS_ADDR is
// set, and returns a ledger plus its cleanup.
func OpenLedger(ctx context.Context, cfg config.Config, log *logrus.Logger) (*textile.Ledger, func(), error) {
	st, closeStore, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	closers := []func() error{closeStore}
	opts := []textile.Option{textile.WithLogger(log)}

	if cfg.RedisAddr != "" {
		rl, err := lock.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, log)
		if err != nil {
			_ = closeStore()
			return nil, nil, err
		}
		closers = append(closers, rl.Close)
		opts = append(opts, textile.WithLocker(rl))
		log.WithField("addr", cfg.RedisAddr).Info("using redis tenant lock")
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.WithError(err).Warn("close")
			}
		}
	}
	return textile.NewLedger(st, opts...), cleanup, nil
}
