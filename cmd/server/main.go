/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the textile ledger API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment, apply command-line overrides
  2. Open the store (memory, SQLite or Postgres) and tenant lock
  3. Optionally seed the demo shop
  4. Create API handler, session issuer and router
  5. Start the balance audit
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -driver  memory | sqlite | postgres (overrides DB_DRIVER)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database
  -seed    Load the demo shop on startup (overrides SEED_DEMO)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the balance audit
  4. Close the lock client and database
  5. Exit

EXAMPLES:
  # Run with file database
  AUTH_SECRET=... ./server -db="./data/textile.db"

  # Throwaway demo
  AUTH_SECRET=... ./server -driver=memory -seed

ENVIRONMENT:
  PORT, DB_DRIVER, DB_PATH, DATABASE_URL, REDIS_ADDR, REDIS_PASSWORD,
  AUTH_SECRET, ACCESS_TOKEN_TTL_MINUTES, ALLOWED_ORIGINS, LOG_LEVEL,
  SEED_DEMO. See config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/open.go: Backend selection
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/textile-ledger/api"
	"github.com/warp/textile-ledger/config"
	"github.com/warp/textile-ledger/store"
)

func main() {
	cfg := config.Load()

	// Flags
	port := flag.String("port", cfg.Port, "HTTP server port")
	driver := flag.String("driver", cfg.DBDriver, "store driver: memory, sqlite or postgres")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	seed := flag.Bool("seed", cfg.SeedDemo, "load the demo shop on startup")
	flag.Parse()
	cfg.Port, cfg.DBDriver, cfg.DBPath, cfg.SeedDemo = *port, *driver, *dbPath, *seed

	log := config.NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx := context.Background()
	ledger, cleanup, err := store.OpenLedger(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize ledger")
	}
	defer cleanup()

	if cfg.SeedDemo {
		if _, err := api.SeedDemo(ctx, ledger, log); err != nil {
			log.WithError(err).Warn("failed to seed demo shop")
		}
	}

	// Initialize handler
	sessions := api.NewSessions(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute)
	handler := api.NewHandler(ledger, sessions, log)

	// Create router
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	audit := api.NewBalanceAudit(ledger, log)
	audit.Start()

	// Create server
	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("addr", server.Addr).WithField("driver", cfg.DBDriver).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	audit.Stop()

	log.Info("server stopped")
}
