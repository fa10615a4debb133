package textile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/textile-ledger/generic"
)

// =============================================================================
// REPORTS - Read-only aggregates over the log and the batch projection
// =============================================================================

// Range bounds a report by transaction date, inclusive. Zero ends are open.
type Range struct {
	From time.Time
	To   time.Time
}

func (r Range) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// FinancialSummary is the profit and loss view of a tenant.
// COGS uses the unit cost snapshotted on each sale line, so a later work
// step on a sibling batch never changes the margin of a past sale.
type FinancialSummary struct {
	Revenue       decimal.Decimal `json:"revenue"`
	COGS          decimal.Decimal `json:"cogs"`
	GrossProfit   decimal.Decimal `json:"gross_profit"`
	Expenses      decimal.Decimal `json:"expenses"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	PurchaseValue decimal.Decimal `json:"purchase_value"`
	WorkValue     decimal.Decimal `json:"work_value"`
	StockValue    decimal.Decimal `json:"stock_value"`
	Receivables   decimal.Decimal `json:"receivables"`
	Payables      decimal.Decimal `json:"payables"`
}

func (l *Ledger) FinancialSummary(ctx context.Context, tenant generic.TenantID, r Range) (*FinancialSummary, error) {
	txs, err := transactions.Filter(ctx, l.store, tenant)
	if err != nil {
		return nil, err
	}
	sum := FinancialSummary{}
	for _, tx := range txs {
		if !r.contains(tx.Date) {
			continue
		}
		switch tx.Type {
		case TxSale:
			sum.Revenue = sum.Revenue.Add(tx.Amount)
			for _, item := range tx.Items {
				sum.COGS = sum.COGS.Add(item.Quantity.Mul(item.UnitCost))
			}
		case TxExpense:
			sum.Expenses = sum.Expenses.Add(tx.Amount)
		case TxPurchase:
			sum.PurchaseValue = sum.PurchaseValue.Add(tx.Amount)
		case TxWork:
			sum.WorkValue = sum.WorkValue.Add(tx.Amount)
		}
	}
	sum.GrossProfit = sum.Revenue.Sub(sum.COGS)
	sum.NetProfit = sum.GrossProfit.Sub(sum.Expenses)

	active, err := l.ListActiveBatches(ctx, tenant)
	if err != nil {
		return nil, err
	}
	for _, b := range active {
		sum.StockValue = sum.StockValue.Add(b.Value())
	}

	if sum.Receivables, err = l.outstanding(ctx, tenant, PartyCustomer); err != nil {
		return nil, err
	}
	if sum.Payables, err = l.outstanding(ctx, tenant, PartySupplier); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (l *Ledger) outstanding(ctx context.Context, tenant generic.TenantID, kind PartyKind) (decimal.Decimal, error) {
	open, err := l.ListPartiesWithOutstandingBalance(ctx, tenant, kind)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range open {
		total = total.Add(p.Balance)
	}
	return total, nil
}

// BranchDashboard is the landing view of one outlet.
type BranchDashboard struct {
	BranchID         generic.BranchID `json:"branch_id"`
	TotalSales       decimal.Decimal  `json:"total_sales"`
	CashReceived     decimal.Decimal  `json:"cash_received"`
	TotalExpenses    decimal.Decimal  `json:"total_expenses"`
	Receivables      decimal.Decimal  `json:"receivables"`
	Payables         decimal.Decimal  `json:"payables"`
	TransactionCount int              `json:"transaction_count"`
	ActiveBatches    int              `json:"active_batches"`
	StockValue       decimal.Decimal  `json:"stock_value"`
	PendingClearance int              `json:"pending_clearance"`
	Recent           []Transaction    `json:"recent"`
}

// RecentLimit caps BranchDashboard.Recent.
const RecentLimit = 5

// BranchDashboard totals one branch. Receivables and payables are tenant-wide
// because parties are shared by all branches.
func (l *Ledger) BranchDashboard(ctx context.Context, tenant generic.TenantID, branch generic.BranchID) (*BranchDashboard, error) {
	txs, err := l.ListTransactionsByBranch(ctx, tenant, branch)
	if err != nil {
		return nil, err
	}
	d := BranchDashboard{BranchID: branch, TransactionCount: len(txs)}
	for _, tx := range txs {
		switch tx.Type {
		case TxSale:
			d.TotalSales = d.TotalSales.Add(tx.Amount)
			d.CashReceived = d.CashReceived.Add(tx.PaidAmount)
		case TxRecovery:
			d.CashReceived = d.CashReceived.Add(tx.Amount)
		case TxExpense:
			d.TotalExpenses = d.TotalExpenses.Add(tx.Amount)
		}
		if (tx.Type == TxPayment || tx.Type == TxRecovery) && !tx.IsCleared {
			d.PendingClearance++
		}
	}
	if len(txs) > RecentLimit {
		d.Recent = txs[:RecentLimit]
	} else {
		d.Recent = txs
	}

	active, err := l.ListActiveBatches(ctx, tenant)
	if err != nil {
		return nil, err
	}
	for _, b := range active {
		if b.BranchID == branch {
			d.ActiveBatches++
			d.StockValue = d.StockValue.Add(b.Value())
		}
	}

	if d.Receivables, err = l.outstanding(ctx, tenant, PartyCustomer); err != nil {
		return nil, err
	}
	if d.Payables, err = l.outstanding(ctx, tenant, PartySupplier); err != nil {
		return nil, err
	}
	return &d, nil
}
