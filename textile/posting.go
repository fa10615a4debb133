package textile

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/textile-ledger/generic"
)

// =============================================================================
// POSTING - The planned outcome of one command
// =============================================================================

// posting is everything one command will write. It is built by reads only;
// apply performs the writes in order batches -> party -> transaction.
type posting struct {
	tx      Transaction
	batches []StockBatch
	party   *Party
}

func (p *posting) apply(ctx context.Context, s generic.Store) error {
	for _, b := range p.batches {
		if err := batches.Save(ctx, s, b); err != nil {
			return fmt.Errorf("save batch %s: %w", b.ID, err)
		}
	}
	if p.party != nil {
		if err := parties(p.party.Kind).Save(ctx, s, *p.party); err != nil {
			return fmt.Errorf("save %s %s: %w", p.party.Kind, p.party.ID, err)
		}
	}
	if err := transactions.Save(ctx, s, p.tx); err != nil {
		return fmt.Errorf("append transaction %s: %w", p.tx.ID, err)
	}
	return nil
}

// settle applies the transaction's balance effect to party, if any.
func (p *posting) settle(party *Party) {
	if party == nil {
		return
	}
	p.tx.EntityID = party.ID
	if p.tx.EntityName == "" {
		p.tx.EntityName = party.Name
	}
	if _, delta, ok := balanceEffect(p.tx); ok {
		party.Balance = party.Balance.Add(delta)
		p.party = party
	}
}

// balanceEffect is the signed change a transaction makes to its party.
// It is shared by the write path and the replay in balances.go.
func balanceEffect(tx Transaction) (PartyKind, decimal.Decimal, bool) {
	if tx.EntityID == "" {
		return "", decimal.Zero, false
	}
	switch tx.Type {
	case TxSale:
		return PartyCustomer, tx.Amount.Sub(tx.PaidAmount), true
	case TxRecovery:
		return PartyCustomer, tx.Amount.Neg(), true
	case TxPurchase, TxWork:
		return PartySupplier, tx.Amount.Sub(tx.PaidAmount), true
	case TxPayment:
		return PartySupplier, tx.Amount.Neg(), true
	}
	return "", decimal.Zero, false
}

// matchTotal ties the header amount to the priced lines: a zero amount is
// filled with the line total, any other amount must equal it.
func (p *posting) matchTotal(total decimal.Decimal) error {
	if p.tx.Amount.IsZero() {
		p.tx.Amount = total
		return nil
	}
	if !p.tx.Amount.Equal(total) {
		return invalid("amount", fmt.Sprintf("%s does not match the line total %s", p.tx.Amount, total))
	}
	return nil
}

// =============================================================================
// PLANNING
// =============================================================================

func (l *Ledger) plan(ctx context.Context, s generic.Store, cmd Command) (*posting, error) {
	h := cmd.header()
	if _, found, err := branches.Find(ctx, s, h.TenantID, string(h.BranchID)); err != nil {
		return nil, err
	} else if !found {
		return nil, notFound(ErrBranchNotFound, "branch_id", string(h.BranchID))
	}
	p := &posting{tx: Transaction{
		ID:         l.newID(),
		TenantID:   h.TenantID,
		BranchID:   h.BranchID,
		Type:       cmd.Type(),
		EntityName: h.EntityName,
		Amount:     h.Amount,
		PaidAmount: h.PaidAmount,
		Date:       h.Date,
		Note:       h.Note,
		CreatedAt:  l.now(),
	}}

	var err error
	switch c := cmd.(type) {
	case Purchase:
		err = l.planPurchase(ctx, s, p, c)
	case Sale:
		err = l.planSale(ctx, s, p, c)
	case Work:
		err = l.planWork(ctx, s, p, c)
	case Expense:
		p.tx.Category = c.Category
	case Payment:
		err = l.planSettlement(ctx, s, p, PartySupplier, c.SupplierID, c.Mode, c.ReferenceNo)
	case Recovery:
		err = l.planSettlement(ctx, s, p, PartyCustomer, c.CustomerID, c.Mode, c.ReferenceNo)
	default:
		err = invalid("type", fmt.Sprintf("unsupported command %T", cmd))
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// loadParty fails with ErrUnknownParty when id does not resolve.
func loadParty(ctx context.Context, s generic.Store, tenant generic.TenantID, kind PartyKind, id string) (*Party, error) {
	party, found, err := parties(kind).Find(ctx, s, tenant, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(ErrUnknownParty, "entity_id", id)
	}
	party.Kind = kind
	return &party, nil
}

// =============================================================================
// PURCHASE - New RAW batches, supplier payable up
// =============================================================================

func (l *Ledger) planPurchase(ctx context.Context, s generic.Store, p *posting, c Purchase) error {
	if c.SupplierID == "" {
		return invalid("entity_id", "purchase requires a supplier")
	}
	if len(c.Items) == 0 {
		return invalid("items", "at least one item is required")
	}
	supplier, err := loadParty(ctx, s, c.TenantID, PartySupplier, c.SupplierID)
	if err != nil {
		return err
	}

	total := decimal.Zero
	for i, item := range c.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item.ArticleID == "" {
			return invalid(field+".article_id", "is required")
		}
		if !item.Quantity.IsPositive() {
			return &InvalidAmountError{Field: field + ".quantity", Value: item.Quantity}
		}
		if item.Price.IsNegative() {
			return &InvalidAmountError{Field: field + ".price", Value: item.Price}
		}
		article, found, err := articles.Find(ctx, s, c.TenantID, item.ArticleID)
		if err != nil {
			return err
		}
		if !found {
			return notFound(ErrArticleNotFound, field+".article_id", item.ArticleID)
		}

		batch := StockBatch{
			ID:                  l.newID(),
			TenantID:            c.TenantID,
			BranchID:            c.BranchID,
			ArticleID:           article.ID,
			ArticleName:         article.Name,
			Stage:               StageRaw,
			InitialQuantity:     item.Quantity,
			CurrentQuantity:     item.Quantity,
			Unit:                article.Unit,
			UnitCost:            item.Price,
			BasePurchasePrice:   item.Price,
			AccumulatedWorkCost: decimal.Zero,
			SupplierID:          supplier.ID,
			SupplierName:        supplier.Name,
			Date:                c.Date,
			TransactionID:       p.tx.ID,
		}
		if err := checkBatchShape(batch); err != nil {
			return err
		}
		p.batches = append(p.batches, batch)
		p.tx.Items = append(p.tx.Items, LineItem{
			ArticleID:   article.ID,
			ArticleName: article.Name,
			BatchID:     batch.ID,
			Quantity:    item.Quantity,
			Unit:        article.Unit,
			Price:       item.Price,
			UnitCost:    item.Price,
		})
		total = total.Add(item.Quantity.Mul(item.Price))
	}

	if err := p.matchTotal(total); err != nil {
		return err
	}
	p.settle(supplier)
	return nil
}

// =============================================================================
// SALE - Consume batches, customer receivable up
// =============================================================================

func (l *Ledger) planSale(ctx context.Context, s generic.Store, p *posting, c Sale) error {
	if c.CustomerID == "" {
		return invalid("entity_id", "sale requires a customer")
	}
	if len(c.Items) == 0 {
		return invalid("items", "at least one item is required")
	}

	// Demand is summed per batch so two lines drawing on one lot are
	// checked against the lot once, before anything is decremented.
	loaded := make(map[string]*StockBatch)
	firstItem := make(map[string]int)
	demand := make(map[string]decimal.Decimal)
	var order []string

	for i, item := range c.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item.BatchID == "" {
			return invalid(field+".batch_id", "is required")
		}
		if !item.Quantity.IsPositive() {
			return &InvalidAmountError{Field: field + ".quantity", Value: item.Quantity}
		}
		if item.Price.IsNegative() {
			return &InvalidAmountError{Field: field + ".price", Value: item.Price}
		}
		if _, seen := loaded[item.BatchID]; !seen {
			batch, found, err := batches.Find(ctx, s, c.TenantID, item.BatchID)
			if err != nil {
				return err
			}
			if !found {
				return notFound(ErrBatchNotFound, field+".batch_id", item.BatchID)
			}
			if batch.BranchID != c.BranchID {
				return &BranchMismatchError{BatchID: batch.ID, BatchBranch: batch.BranchID, TxBranch: c.BranchID}
			}
			loaded[item.BatchID] = &batch
			firstItem[item.BatchID] = i
			order = append(order, item.BatchID)
		}
		demand[item.BatchID] = demand[item.BatchID].Add(item.Quantity)
	}

	for _, id := range order {
		if b := loaded[id]; demand[id].GreaterThan(b.CurrentQuantity) {
			return shortage(*b, firstItem[id], demand[id])
		}
	}

	total := decimal.Zero
	for _, item := range c.Items {
		b := loaded[item.BatchID]
		total = total.Add(item.Quantity.Mul(item.Price))
		p.tx.Items = append(p.tx.Items, LineItem{
			ArticleID:   b.ArticleID,
			ArticleName: b.ArticleName,
			BatchID:     b.ID,
			Quantity:    item.Quantity,
			Unit:        b.Unit,
			Price:       item.Price,
			UnitCost:    b.UnitCost,
		})
	}
	for _, id := range order {
		b := loaded[id]
		b.CurrentQuantity = b.CurrentQuantity.Sub(demand[id])
		p.batches = append(p.batches, *b)
	}

	if err := p.matchTotal(total); err != nil {
		return err
	}
	customer, err := loadParty(ctx, s, c.TenantID, PartyCustomer, c.CustomerID)
	if err != nil {
		return err
	}
	p.settle(customer)
	return nil
}

// =============================================================================
// WORK - Transform part of a batch into a child at the next stage
// =============================================================================

func (l *Ledger) planWork(ctx context.Context, s generic.Store, p *posting, c Work) error {
	if c.VendorID == "" {
		return invalid("entity_id", "work requires a processing vendor")
	}
	if c.SourceBatchID == "" {
		return invalid("source_batch_id", "is required")
	}
	if !c.Stage.Valid() || c.Stage == StageRaw {
		return invalid("category", fmt.Sprintf("work target stage %q must be one of PRINTED, DYED, EMBROIDERED, FINISHED", c.Stage))
	}
	if !c.Quantity.IsPositive() {
		return &InvalidAmountError{Field: "items[0].quantity", Value: c.Quantity}
	}
	if c.PricePerUnit.IsNegative() {
		return &InvalidAmountError{Field: "work_price_per_unit", Value: c.PricePerUnit}
	}
	vendor, err := loadParty(ctx, s, c.TenantID, PartySupplier, c.VendorID)
	if err != nil {
		return err
	}

	all, err := batches.Filter(ctx, s, c.TenantID)
	if err != nil {
		return err
	}
	forest, err := NewBatchForest(all)
	if err != nil {
		return err
	}
	src, found := forest.Get(c.SourceBatchID)
	if !found {
		return notFound(ErrSourceBatchNotFound, "source_batch_id", c.SourceBatchID)
	}
	if src.BranchID != c.BranchID {
		return &BranchMismatchError{BatchID: src.ID, BatchBranch: src.BranchID, TxBranch: c.BranchID}
	}
	if err := forest.Consume(src.ID, c.Quantity); err != nil {
		return err
	}
	src, _ = forest.Get(src.ID)

	child := StockBatch{
		ID:                  l.newID(),
		TenantID:            c.TenantID,
		BranchID:            src.BranchID,
		ArticleID:           src.ArticleID,
		ArticleName:         src.ArticleName,
		Stage:               c.Stage,
		InitialQuantity:     c.Quantity,
		CurrentQuantity:     c.Quantity,
		Unit:                src.Unit,
		UnitCost:            src.UnitCost.Add(c.PricePerUnit),
		BasePurchasePrice:   src.BasePurchasePrice,
		AccumulatedWorkCost: src.AccumulatedWorkCost.Add(c.PricePerUnit),
		SupplierID:          vendor.ID,
		SupplierName:        vendor.Name,
		Date:                c.Date,
		ParentID:            src.ID,
		TransactionID:       p.tx.ID,
	}
	if err := forest.Insert(child); err != nil {
		return err
	}

	p.batches = append(p.batches, src, child)
	p.tx.Category = string(c.Stage)
	p.tx.WorkDescription = c.Description
	p.tx.WorkPricePerUnit = c.PricePerUnit
	p.tx.SourceBatchID = src.ID
	p.tx.Items = []LineItem{{
		ArticleID:   src.ArticleID,
		ArticleName: src.ArticleName,
		BatchID:     child.ID,
		Quantity:    c.Quantity,
		Unit:        src.Unit,
		Price:       c.PricePerUnit,
		UnitCost:    child.UnitCost,
	}}

	if err := p.matchTotal(c.Quantity.Mul(c.PricePerUnit)); err != nil {
		return err
	}
	p.settle(vendor)
	return nil
}

// =============================================================================
// PAYMENT / RECOVERY - Settle an open balance
// =============================================================================

func (l *Ledger) planSettlement(ctx context.Context, s generic.Store, p *posting, kind PartyKind, partyID string, mode PaymentMode, ref string) error {
	if partyID == "" {
		return invalid("entity_id", fmt.Sprintf("%s requires a %s", p.tx.Type, kind))
	}
	if mode == "" {
		mode = PaymentCash
	}
	if !mode.Valid() {
		return invalid("payment_mode", fmt.Sprintf("unknown mode %q", mode))
	}
	if !p.tx.Amount.IsPositive() {
		return &InvalidAmountError{Field: "amount", Value: p.tx.Amount}
	}
	party, err := loadParty(ctx, s, p.tx.TenantID, kind, partyID)
	if err != nil {
		return err
	}
	if p.tx.Amount.GreaterThan(party.Balance) {
		return &OverpaymentError{PartyID: party.ID, Outstanding: party.Balance, Amount: p.tx.Amount}
	}

	p.tx.PaidAmount = p.tx.Amount
	p.tx.PaymentMode = mode
	p.tx.ReferenceNo = ref
	if mode == PaymentCash {
		at := p.tx.Date
		p.tx.IsCleared = true
		p.tx.ClearedAt = &at
	}

	p.settle(party)
	return nil
}
