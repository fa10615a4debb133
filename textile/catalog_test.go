package textile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/textile-ledger/textile"
)

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalog_Articles(t *testing.T) {
	f := newFixture(t)
	lawn, err := f.catalog.CreateArticle(f.ctx, tenantA, "  Lawn ", "")
	require.NoError(t, err)
	assert.Equal(t, "Lawn", lawn.Name)
	assert.Equal(t, textile.DefaultUnit, lawn.Unit)

	_, err = f.catalog.CreateArticle(f.ctx, tenantA, "Chiffon", "Yard")
	require.NoError(t, err)
	_, err = f.catalog.CreateArticle(f.ctx, tenantA, " ", "Yard")
	assert.ErrorIs(t, err, textile.ErrValidation)

	renamed, err := f.catalog.RenameArticle(f.ctx, tenantA, lawn.ID, "Premium Lawn")
	require.NoError(t, err)
	assert.Equal(t, "Premium Lawn", renamed.Name)
	assert.Equal(t, textile.DefaultUnit, renamed.Unit, "rename keeps the unit")

	list, err := f.catalog.ListArticles(f.ctx, tenantA)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Chiffon", list[0].Name)
	assert.Equal(t, "Premium Lawn", list[1].Name)

	_, err = f.catalog.RenameArticle(f.ctx, tenantA, "ghost", "x")
	assert.ErrorIs(t, err, textile.ErrArticleNotFound)

	others, err := f.catalog.ListArticles(f.ctx, tenantB)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestCatalog_PartyUpdateKeepsBalance(t *testing.T) {
	// GIVEN: A supplier with a payable from a purchase
	// WHEN: Its contact details are edited
	// THEN: The balance is untouched

	f := newFixture(t)
	sup := f.supplier("Mill")
	f.purchase(sup, f.article("Silk"), "10", "10")

	updated, err := f.catalog.UpdateParty(f.ctx, tenantA, textile.PartySupplier, sup, "Mill & Sons", "0301-1111111")
	require.NoError(t, err)
	assert.Equal(t, "Mill & Sons", updated.Name)
	assertDec(t, "100", updated.Balance, "balance survives edit")
	assertDec(t, "100", f.balance(textile.PartySupplier, sup), "stored balance")

	_, err = f.catalog.UpdateParty(f.ctx, tenantA, textile.PartyCustomer, sup, "x", "")
	assert.ErrorIs(t, err, textile.ErrUnknownParty, "a supplier is not a customer")

	_, err = f.catalog.CreateParty(f.ctx, tenantA, "vendor", "x", "")
	assert.ErrorIs(t, err, textile.ErrValidation)

	fresh, err := f.catalog.CreateParty(f.ctx, tenantA, textile.PartyCustomer, "New", "")
	require.NoError(t, err)
	assert.True(t, fresh.Balance.IsZero())

	customers, err := f.catalog.ListParties(f.ctx, tenantA, textile.PartyCustomer)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, textile.PartyCustomer, customers[0].Kind)
}

func TestCatalog_Branches(t *testing.T) {
	f := newFixture(t)
	first, err := f.catalog.CreateBranch(f.ctx, tenantC, "Main Outlet", "Shop #12", false)
	require.NoError(t, err)
	assert.True(t, first.IsDefault, "first branch becomes the default")

	second, err := f.catalog.CreateBranch(f.ctx, tenantC, "Anarkali", "", false)
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	third, err := f.catalog.CreateBranch(f.ctx, tenantC, "Liberty", "", true)
	require.NoError(t, err)

	def, err := f.catalog.DefaultBranch(f.ctx, tenantC)
	require.NoError(t, err)
	assert.Equal(t, third.ID, def.ID)

	list, err := f.catalog.ListBranches(f.ctx, tenantC)
	require.NoError(t, err)
	require.Len(t, list, 3)
	defaults := 0
	for _, b := range list {
		if b.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
	assert.Equal(t, "Anarkali", list[1].Name)

	_, err = f.catalog.GetBranch(f.ctx, tenantC, "ghost")
	assert.ErrorIs(t, err, textile.ErrBranchNotFound)
	_, err = f.catalog.DefaultBranch(f.ctx, "tenant-without-branches")
	assert.ErrorIs(t, err, textile.ErrBranchNotFound)
}

// =============================================================================
// TENANTS
// =============================================================================

func TestTenants_RegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	tenants := textile.NewTenants(f.ledger)

	shop, branch, err := tenants.Register(f.ctx, textile.Registration{
		Username:      " Aqeel ",
		Password:      "1234",
		ShopName:      "Aqeel Fabrics",
		OwnerName:     "Aqeel Ahmad",
		BranchAddress: "Shop #12, Fabric Market",
	})
	require.NoError(t, err)
	assert.Equal(t, "aqeel", shop.Username)
	assert.NotEqual(t, "1234", shop.PasswordHash)
	require.NotNil(t, shop.Subscription)
	assert.Equal(t, textile.SubscriptionDemo, shop.Subscription.Type)
	assert.Equal(t, "Main Outlet", branch.Name)
	assert.True(t, branch.IsDefault)

	def, err := textile.NewCatalog(f.ledger).DefaultBranch(f.ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, branch.ID, def.ID)

	_, _, err = tenants.Register(f.ctx, textile.Registration{Username: "AQEEL", Password: "abcd", ShopName: "Copy"})
	assert.ErrorIs(t, err, textile.ErrUsernameTaken)

	_, _, err = tenants.Register(f.ctx, textile.Registration{Username: "x", Password: "1", ShopName: "Short"})
	assert.ErrorIs(t, err, textile.ErrValidation)

	got, err := tenants.Authenticate(f.ctx, "aqeel", "1234")
	require.NoError(t, err)
	assert.Equal(t, shop.ID, got.ID)

	_, err = tenants.Authenticate(f.ctx, "aqeel", "wrong")
	assert.ErrorIs(t, err, textile.ErrInvalidCredentials)
	_, err = tenants.Authenticate(f.ctx, "nobody", "1234")
	assert.ErrorIs(t, err, textile.ErrInvalidCredentials)

	all, err := tenants.List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTenants_SubscriptionStatus(t *testing.T) {
	f := newFixture(t)
	tenants := textile.NewTenants(f.ledger)
	shop, _, err := tenants.Register(f.ctx, textile.Registration{Username: "shop", Password: "pass", ShopName: "Shop"})
	require.NoError(t, err)

	status, err := tenants.Status(f.ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, textile.StatusTrial, status.Status)
	assert.Equal(t, textile.TrialDays, status.DaysRemaining)
	assert.False(t, status.ReadOnly)

	f.now = f.now.AddDate(0, 0, 10)
	status, err = tenants.Status(f.ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, textile.TrialDays-10, status.DaysRemaining)

	f.now = f.now.AddDate(0, 0, 25)
	status, err = tenants.Status(f.ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, textile.StatusExpired, status.Status)
	assert.True(t, status.ReadOnly)

	premium := textile.Tenant{Subscription: &textile.Subscription{
		Type:    textile.SubscriptionPremium,
		EndDate: f.now.AddDate(1, 0, 0),
	}}
	assert.Equal(t, textile.StatusActive, premium.Status(f.now).Status)
	assert.Equal(t, textile.StatusActive, textile.Tenant{}.Status(f.now).Status)

	_, err = tenants.Status(f.ctx, "ghost")
	assert.ErrorIs(t, err, textile.ErrTenantNotFound)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestReports_SummaryAndDashboard(t *testing.T) {
	// GIVEN: buy 100 @10 (400 paid), print 40 @5 (unpaid), sell 10 @25 (150 paid),
	//        expense 50, cheque recovery 30
	f := newFixture(t)
	sup := f.supplier("S1")
	cust := f.customer("C1")
	tx, err := f.ledger.RecordTransaction(f.ctx, textile.Purchase{
		Header:     header("1000", "400", 1),
		SupplierID: sup,
		Items:      []textile.PurchaseItem{{ArticleID: f.article("Silk"), Quantity: dec("100"), Price: dec("10")}},
	})
	require.NoError(t, err)
	raw := tx.Items[0].BatchID
	printed := f.work(raw, textile.StagePrinted, "40", "5") // 200, paid in full
	_, err = f.ledger.RecordTransaction(f.ctx, textile.Sale{
		Header:     header("250", "150", 3),
		CustomerID: cust,
		Items:      []textile.SaleItem{{BatchID: printed, Quantity: dec("10"), Price: dec("25")}},
	})
	require.NoError(t, err)
	_, err = f.ledger.RecordTransaction(f.ctx, textile.Expense{Header: header("50", "50", 4), Category: "Rent"})
	require.NoError(t, err)
	_, err = f.ledger.RecordTransaction(f.ctx, textile.Recovery{
		Header: header("30", "0", 5), CustomerID: cust, Mode: textile.PaymentCheque,
	})
	require.NoError(t, err)

	sum, err := f.ledger.FinancialSummary(f.ctx, tenantA, textile.Range{})
	require.NoError(t, err)
	assertDec(t, "250", sum.Revenue, "revenue")
	assertDec(t, "150", sum.COGS, "cogs = 10 x 15")
	assertDec(t, "100", sum.GrossProfit, "gross")
	assertDec(t, "50", sum.Expenses, "expenses")
	assertDec(t, "50", sum.NetProfit, "net")
	assertDec(t, "1000", sum.PurchaseValue, "purchases")
	assertDec(t, "200", sum.WorkValue, "work")
	assertDec(t, "1050", sum.StockValue, "60 x 10 + 30 x 15")
	assertDec(t, "70", sum.Receivables, "100 - 30")
	assertDec(t, "600", sum.Payables, "1000 - 400")

	early, err := f.ledger.FinancialSummary(f.ctx, tenantA, textile.Range{To: date(2)})
	require.NoError(t, err)
	assertDec(t, "0", early.Revenue, "no sales before day 3")
	assertDec(t, "1000", early.PurchaseValue, "purchase on day 1")

	dash, err := f.ledger.BranchDashboard(f.ctx, tenantA, branchMain)
	require.NoError(t, err)
	assert.Equal(t, 5, dash.TransactionCount)
	assertDec(t, "250", dash.TotalSales, "sales")
	assertDec(t, "180", dash.CashReceived, "150 + 30")
	assertDec(t, "50", dash.TotalExpenses, "expenses")
	assert.Equal(t, 2, dash.ActiveBatches)
	assert.Equal(t, 1, dash.PendingClearance)
	assert.Len(t, dash.Recent, textile.RecentLimit)

	empty, err := f.ledger.BranchDashboard(f.ctx, tenantA, branchMall)
	require.NoError(t, err)
	assert.Zero(t, empty.TransactionCount)
	assert.Zero(t, empty.ActiveBatches)
	assertDec(t, "70", empty.Receivables, "parties are tenant-wide")
}
