/*
main.go - Ledger maintenance CLI

PURPOSE:
  Offline checks against the same store the server uses. Party balances
  are cached projections of the transaction log; ledgerctl replays the
  log and reports (or fixes) any drift.

COMMANDS:
  tenants            List registered shops and their subscription state
  verify             Report drifted balances, exit 1 if any
  repair             Overwrite drifted balances with replayed values

COMMAND-LINE FLAGS:
  -tenant  Restrict verify/repair to one tenant id (default: all)
  -driver  memory | sqlite | postgres (overrides DB_DRIVER)
  -db      SQLite database path (overrides DB_PATH)

EXAMPLES:
  ./ledgerctl -db=./data/textile.db verify
  ./ledgerctl -tenant=7f3c... repair

SEE ALSO:
  - textile/balances.go: Replay, verify and repair
  - api/scheduler.go: The server's periodic audit
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/textile-ledger/config"
	"github.com/warp/textile-ledger/generic"
	"github.com/warp/textile-ledger/store"
	"github.com/warp/textile-ledger/textile"
)

func main() {
	cfg := config.Load()

	tenant := flag.String("tenant", "", "tenant id (default: all tenants)")
	driver := flag.String("driver", cfg.DBDriver, "store driver: memory, sqlite or postgres")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: ledgerctl [flags] tenants|verify|repair\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	cfg.DBDriver, cfg.DBPath = *driver, *dbPath

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log := config.NewLogger(cfg.LogLevel)
	log.SetOutput(os.Stderr)

	ctx := context.Background()
	ledger, cleanup, err := store.OpenLedger(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize ledger")
	}
	code := run(ctx, ledger, flag.Arg(0), generic.TenantID(*tenant), log)
	cleanup()
	os.Exit(code)
}

type report struct {
	TenantID generic.TenantID       `json:"tenant_id"`
	Drifts   []textile.BalanceDrift `json:"drifts"`
	Error    string                 `json:"error,omitempty"`
}

func run(ctx context.Context, ledger *textile.Ledger, cmd string, tenant generic.TenantID, log *logrus.Logger) int {
	tenants := textile.NewTenants(ledger)
	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")

	if cmd == "tenants" {
		shops, err := tenants.List(ctx)
		if err != nil {
			log.WithError(err).Error("list tenants")
			return 1
		}
		now := time.Now()
		for _, shop := range shops {
			st := shop.Status(now)
			fmt.Printf("%s\t%s\t%s\t%s\t%d days\n", shop.ID, shop.Username, shop.ShopName, st.Status, st.DaysRemaining)
		}
		return 0
	}

	var check func(context.Context, generic.TenantID) ([]textile.BalanceDrift, error)
	switch cmd {
	case "verify":
		check = ledger.VerifyBalances
	case "repair":
		check = ledger.RepairBalances
	default:
		flag.Usage()
		return 2
	}

	ids := []generic.TenantID{tenant}
	if tenant == "" {
		shops, err := tenants.List(ctx)
		if err != nil {
			log.WithError(err).Error("list tenants")
			return 1
		}
		ids = ids[:0]
		for _, shop := range shops {
			ids = append(ids, shop.ID)
		}
	}

	code := 0
	for _, id := range ids {
		drifts, err := check(ctx, id)
		r := report{TenantID: id, Drifts: drifts}
		if err != nil {
			r.Error = err.Error()
			code = 1
		} else if cmd == "verify" && len(drifts) > 0 {
			code = 1
		}
		if err := out.Encode(r); err != nil {
			log.WithError(err).Error("write report")
			return 1
		}
	}
	return code
}
