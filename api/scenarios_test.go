package api

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/textile-ledger/generic"
	"github.com/warp/textile-ledger/generic/store"
	"github.com/warp/textile-ledger/textile"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSeedDemo_BuildsConsistentShop(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: The demo shop is seeded twice
	// THEN: The second call is a no-op and the balances match the history

	ctx := context.Background()
	log := quietLogger()
	ledger := textile.NewLedger(store.NewTxMemory(), textile.WithLogger(log))

	shop, err := SeedDemo(ctx, ledger, log)
	require.NoError(t, err)
	again, err := SeedDemo(ctx, ledger, log)
	require.NoError(t, err)
	assert.Equal(t, shop.ID, again.ID)

	txs, err := ledger.ListTransactionsByTenant(ctx, shop.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 7)

	payables, err := ledger.ListPartiesWithOutstandingBalance(ctx, shop.ID, textile.PartySupplier)
	require.NoError(t, err)
	owed := map[string]string{}
	for _, p := range payables {
		owed[p.Name] = p.Balance.String()
	}
	assert.Equal(t, map[string]string{"Faisalabad Mills": "20000", "Rang Printers": "6000"}, owed)

	receivables, err := ledger.ListPartiesWithOutstandingBalance(ctx, shop.ID, textile.PartyCustomer)
	require.NoError(t, err)
	require.Len(t, receivables, 1)
	assert.True(t, receivables[0].Balance.Equal(generic.Dec(2000)))

	drifts, err := ledger.VerifyBalances(ctx, shop.ID)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestBalanceAudit_RunOnceCountsDrift(t *testing.T) {
	// GIVEN: The demo shop with one supplier balance edited behind the ledger
	// WHEN: The audit runs
	// THEN: It reports exactly that drift and leaves the balance untouched

	ctx := context.Background()
	log := quietLogger()
	ledger := textile.NewLedger(store.NewTxMemory(), textile.WithLogger(log))
	shop, err := SeedDemo(ctx, ledger, log)
	require.NoError(t, err)

	audit := NewBalanceAudit(ledger, log)
	clean := audit.RunOnce(ctx)
	assert.Equal(t, AuditResult{Tenants: 1}, clean)

	suppliers := generic.NewCollection[textile.Party](textile.KindSuppliers)
	all, err := suppliers.Filter(ctx, ledger.Store(), shop.ID)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	tampered := all[0]
	tampered.Balance = tampered.Balance.Add(generic.Dec(1))
	require.NoError(t, suppliers.Save(ctx, ledger.Store(), tampered))

	res := audit.RunOnce(ctx)
	assert.Equal(t, AuditResult{Tenants: 1, Drifts: 1}, res)

	still, err := suppliers.Get(ctx, ledger.Store(), shop.ID, tampered.ID)
	require.NoError(t, err)
	assert.True(t, still.Balance.Equal(tampered.Balance), "audit never repairs")

	fixed, err := ledger.RepairBalances(ctx, shop.ID)
	require.NoError(t, err)
	assert.Len(t, fixed, 1)
	assert.Equal(t, AuditResult{Tenants: 1}, audit.RunOnce(ctx))
}

func TestBalanceAudit_StartStop(t *testing.T) {
	audit := NewBalanceAudit(textile.NewLedger(store.NewTxMemory()), quietLogger())
	audit.Start()
	audit.Start()
	audit.Stop()
	audit.Stop()

	audit.Enabled = false
	audit.Start()
	assert.Nil(t, audit.ticker)
}
