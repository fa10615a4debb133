package textile_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/textile-ledger/generic"
	"github.com/warp/textile-ledger/generic/store"
	"github.com/warp/textile-ledger/textile"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	tenantA    generic.TenantID = "tenant-a"
	tenantB    generic.TenantID = "tenant-b"
	branchMain generic.BranchID = "branch-main"
	branchMall generic.BranchID = "branch-mall"
	branchB    generic.BranchID = "branch-b-main"

	// tenantC has no seeded branches.
	tenantC generic.TenantID = "tenant-c"
)

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *store.TxMemory
	ledger  *textile.Ledger
	catalog *textile.Catalog
	now     time.Time

	processorID string
}

func newFixture(t *testing.T, opts ...textile.Option) *fixture {
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store.NewTxMemory(),
		now:   time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC),
	}
	opts = append([]textile.Option{textile.WithClock(func() time.Time { return f.now })}, opts...)
	f.ledger = textile.NewLedger(f.store, opts...)
	f.catalog = textile.NewCatalog(f.ledger)
	f.seedBranches()
	return f
}

// seedBranches stores branches under the fixed ids the tests post to.
func (f *fixture) seedBranches() {
	seed := []textile.Branch{
		{ID: string(branchMain), TenantID: tenantA, Name: "Main", IsDefault: true},
		{ID: string(branchMall), TenantID: tenantA, Name: "Mall"},
		{ID: string(branchB), TenantID: tenantB, Name: "Main", IsDefault: true},
	}
	col := generic.NewCollection[textile.Branch](textile.KindBranches)
	err := f.store.WithTx(f.ctx, func(s generic.Store) error {
		for _, b := range seed {
			if err := col.Save(f.ctx, s, b); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(f.t, err)
}

func (f *fixture) article(name string) string {
	a, err := f.catalog.CreateArticle(f.ctx, tenantA, name, "Meter")
	require.NoError(f.t, err)
	return a.ID
}

func (f *fixture) supplier(name string) string {
	p, err := f.catalog.CreateParty(f.ctx, tenantA, textile.PartySupplier, name, "0300-0000000")
	require.NoError(f.t, err)
	return p.ID
}

func (f *fixture) customer(name string) string {
	p, err := f.catalog.CreateParty(f.ctx, tenantA, textile.PartyCustomer, name, "0321-0000000")
	require.NoError(f.t, err)
	return p.ID
}

// processor is the processing vendor used by f.work, created on first use.
func (f *fixture) processor() string {
	if f.processorID == "" {
		f.processorID = f.supplier("Processor")
	}
	return f.processorID
}

func (f *fixture) balance(kind textile.PartyKind, id string) decimal.Decimal {
	p, err := f.catalog.GetParty(f.ctx, tenantA, kind, id)
	require.NoError(f.t, err)
	return p.Balance
}

func (f *fixture) batch(id string) textile.StockBatch {
	all, err := f.ledger.ListBatchesByTenant(f.ctx, tenantA)
	require.NoError(f.t, err)
	for _, b := range all {
		if b.ID == id {
			return b
		}
	}
	f.t.Fatalf("batch %s not found", id)
	return textile.StockBatch{}
}

// purchase buys qty at price from supplier with nothing paid and returns the new batch id.
func (f *fixture) purchase(supplierID, articleID string, qty, price string) string {
	amount := dec(qty).Mul(dec(price))
	tx, err := f.ledger.RecordTransaction(f.ctx, textile.Purchase{
		Header:     header(amount.String(), "0", 1),
		SupplierID: supplierID,
		Items:      []textile.PurchaseItem{{ArticleID: articleID, Quantity: dec(qty), Price: dec(price)}},
	})
	require.NoError(f.t, err)
	return tx.Items[0].BatchID
}

// work transforms qty of src at pricePerUnit and returns the child batch id.
func (f *fixture) work(src string, stage textile.Stage, qty, pricePerUnit string) string {
	amount := dec(qty).Mul(dec(pricePerUnit))
	tx, err := f.ledger.RecordTransaction(f.ctx, textile.Work{
		Header:        header(amount.String(), amount.String(), 2),
		VendorID:      f.processor(),
		SourceBatchID: src,
		Stage:         stage,
		Quantity:      dec(qty),
		PricePerUnit:  dec(pricePerUnit),
	})
	require.NoError(f.t, err)
	return tx.Items[0].BatchID
}

func header(amount, paid string, day int) textile.Header {
	return textile.Header{
		TenantID:   tenantA,
		BranchID:   branchMain,
		Date:       date(day),
		Amount:     dec(amount),
		PaidAmount: dec(paid),
	}
}

func date(day int) time.Time {
	return time.Date(2026, time.March, day, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, what string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s, got %s", what, want, got.String())
}
