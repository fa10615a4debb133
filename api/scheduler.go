/*
scheduler.go - Periodic balance audit

PURPOSE:
  Cached party balances are a projection of the transaction log. The
  audit periodically replays every tenant's log and logs any party whose
  cached balance drifted. It never repairs on its own; repair is an
  operator decision (POST /api/admin/balances/repair or ledgerctl repair).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Walks every registered tenant
  - One failing tenant does not stop the run

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the audit is active (default: true)

USAGE:
  audit := NewBalanceAudit(ledger, log)
  audit.Start()
  // ... later
  audit.Stop()

SEE ALSO:
  - textile/balances.go: VerifyBalances
  - cmd/ledgerctl: Manual verify and repair
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/textile-ledger/textile"
)

// AuditResult summarizes one pass over all tenants.
type AuditResult struct {
	Tenants int
	Drifts  int
	Failed  int
}

// BalanceAudit verifies cached balances on a timer.
type BalanceAudit struct {
	Ledger        *textile.Ledger
	CheckInterval time.Duration
	Enabled       bool

	log    *logrus.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewBalanceAudit(ledger *textile.Ledger, log *logrus.Logger) *BalanceAudit {
	return &BalanceAudit{
		Ledger:        ledger,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		log:           log,
	}
}

// Start begins the audit loop.
func (a *BalanceAudit) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled {
		a.log.Info("balance audit disabled")
		return
	}
	if a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.CheckInterval)
	a.stop = make(chan struct{})
	a.wg.Add(1)
	go a.run()

	a.log.WithField("interval", a.CheckInterval.String()).Info("balance audit started")
}

// Stop waits for an in-flight pass to finish.
func (a *BalanceAudit) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker == nil {
		return
	}
	a.ticker.Stop()
	close(a.stop)
	a.wg.Wait()
	a.ticker = nil
	a.log.Info("balance audit stopped")
}

func (a *BalanceAudit) run() {
	defer a.wg.Done()

	// Run immediately on start
	a.RunOnce(context.Background())

	for {
		select {
		case <-a.ticker.C:
			a.RunOnce(context.Background())
		case <-a.stop:
			return
		}
	}
}

// RunOnce verifies every tenant and logs each drift at Warn.
func (a *BalanceAudit) RunOnce(ctx context.Context) AuditResult {
	var res AuditResult
	shops, err := textile.NewTenants(a.Ledger).List(ctx)
	if err != nil {
		a.log.WithError(err).Error("balance audit: list tenants")
		res.Failed++
		return res
	}

	for _, shop := range shops {
		res.Tenants++
		drifts, err := a.Ledger.VerifyBalances(ctx, shop.ID)
		if err != nil {
			res.Failed++
			a.log.WithError(err).WithField("tenant_id", shop.ID).Error("balance audit: verify")
			continue
		}
		for _, d := range drifts {
			res.Drifts++
			a.log.WithFields(logrus.Fields{
				"tenant_id": shop.ID,
				"kind":      d.Kind,
				"party_id":  d.PartyID,
				"stored":    d.Stored.String(),
				"replayed":  d.Replayed.String(),
			}).Warn("balance drift")
		}
	}

	if res.Drifts > 0 || res.Failed > 0 {
		a.log.WithFields(logrus.Fields{
			"tenants": res.Tenants,
			"drifts":  res.Drifts,
			"failed":  res.Failed,
		}).Warn("balance audit completed with findings")
	}
	return res
}
