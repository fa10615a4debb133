package textile

import (
	"context"
	"sort"

	"github.com/warp/textile-ledger/generic"
)

// =============================================================================
// BATCH QUERIES
// =============================================================================

// ListBatchesByTenant returns every batch, oldest first, including exhausted ones.
func (l *Ledger) ListBatchesByTenant(ctx context.Context, tenant generic.TenantID) ([]StockBatch, error) {
	all, err := batches.Filter(ctx, l.store, tenant)
	if err != nil {
		return nil, err
	}
	sortBatches(all)
	return all, nil
}

// ListActiveBatches returns batches with CurrentQuantity > 0.
func (l *Ledger) ListActiveBatches(ctx context.Context, tenant generic.TenantID) ([]StockBatch, error) {
	all, err := l.ListBatchesByTenant(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return filterBatches(all, StockBatch.IsActive), nil
}

// ListBatchesByArticleAndStage returns the consumable lots of one article at
// one stage, for sale and work pickers. An empty branch matches all branches.
func (l *Ledger) ListBatchesByArticleAndStage(ctx context.Context, tenant generic.TenantID, branch generic.BranchID, articleID string, stage Stage) ([]StockBatch, error) {
	if articleID == "" {
		return nil, invalid("article_id", "is required")
	}
	if !stage.Valid() {
		return nil, invalid("stage", "unknown stage "+string(stage))
	}
	all, err := l.ListActiveBatches(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return filterBatches(all, func(b StockBatch) bool {
		return b.ArticleID == articleID && b.Stage == stage && (branch == "" || b.BranchID == branch)
	}), nil
}

// GetBatchLineage returns the chain RAW -> ... -> batchID.
func (l *Ledger) GetBatchLineage(ctx context.Context, tenant generic.TenantID, batchID string) ([]StockBatch, error) {
	forest, err := l.Forest(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return forest.Lineage(batchID)
}

// Forest loads and validates the tenant's whole batch forest.
func (l *Ledger) Forest(ctx context.Context, tenant generic.TenantID) (*BatchForest, error) {
	all, err := batches.Filter(ctx, l.store, tenant)
	if err != nil {
		return nil, err
	}
	return NewBatchForest(all)
}

func sortBatches(bs []StockBatch) {
	sort.SliceStable(bs, func(i, j int) bool {
		if !bs[i].Date.Equal(bs[j].Date) {
			return bs[i].Date.Before(bs[j].Date)
		}
		return bs[i].ID < bs[j].ID
	})
}

func filterBatches(bs []StockBatch, keep func(StockBatch) bool) []StockBatch {
	out := make([]StockBatch, 0, len(bs))
	for _, b := range bs {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

// =============================================================================
// TRANSACTION QUERIES
// =============================================================================

// ListTransactionsByBranch returns one branch's transactions, newest first.
func (l *Ledger) ListTransactionsByBranch(ctx context.Context, tenant generic.TenantID, branch generic.BranchID) ([]Transaction, error) {
	if branch == "" {
		return nil, invalid("branch_id", "is required")
	}
	all, err := l.ListTransactionsByTenant(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, tx := range all {
		if tx.BranchID == branch {
			out = append(out, tx)
		}
	}
	return out, nil
}

// ListTransactionsByTenant returns every transaction of the tenant, newest first.
func (l *Ledger) ListTransactionsByTenant(ctx context.Context, tenant generic.TenantID) ([]Transaction, error) {
	all, err := transactions.Filter(ctx, l.store, tenant)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return all, nil
}

func (l *Ledger) GetTransaction(ctx context.Context, tenant generic.TenantID, id string) (*Transaction, error) {
	tx, found, err := transactions.Find(ctx, l.store, tenant, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(ErrTransactionNotFound, "transaction_id", id)
	}
	return &tx, nil
}

// =============================================================================
// PARTY QUERIES
// =============================================================================

// ListPartiesWithOutstandingBalance returns parties with balance > 0, largest first:
// receivables for customers, payables for suppliers.
func (l *Ledger) ListPartiesWithOutstandingBalance(ctx context.Context, tenant generic.TenantID, kind PartyKind) ([]Party, error) {
	if !kind.Valid() {
		return nil, invalid("kind", "must be customer or supplier")
	}
	all, err := parties(kind).Filter(ctx, l.store, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]Party, 0, len(all))
	for _, p := range all {
		if p.Balance.IsPositive() {
			p.Kind = kind
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Balance.GreaterThan(out[j].Balance) })
	return out, nil
}
