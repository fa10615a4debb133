/*
Package textile implements the inventory ledger and costing engine of a
multi-tenant fabric shop.

PURPOSE:
  Turns business events (purchase, sale, work, expense, payment, recovery)
  into consistent stock batch states and party balances. The transaction
  log is the source of truth; batches and party balances are projections
  maintained as side effects of Ledger.RecordTransaction.

KEY CONCEPTS IN THIS FILE (types.go):
  - Article:     A named fabric identity with a unit of measure
  - StockBatch:  A lot of fabric at one processing stage, with cost layers
  - Stage:       RAW -> PRINTED / DYED / EMBROIDERED / FINISHED
  - Party:       Customer (receivable) or Supplier (payable) with a balance
  - Transaction: The append-only event record
  - Branch:      A shop outlet; batches and transactions are branch-scoped

COST LAYERS:
  Every batch carries three numbers per unit:
    BasePurchasePrice   what the RAW fabric cost, copied unchanged to descendants
    AccumulatedWorkCost sum of processing charges since RAW
    UnitCost            BasePurchasePrice + AccumulatedWorkCost

  Example: 100m RAW silk at 10, printed at 6/m:
    RAW     unit 10, base 10, work 0
    PRINTED unit 16, base 10, work 6   (parent = RAW batch)

SEE ALSO:
  - ledger.go: RecordTransaction, SetClearance
  - forest.go: Batch lineage (arena + index)
  - balances.go: Balance replay and repair
*/
package textile

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/textile-ledger/generic"
)

// =============================================================================
// RECORD KINDS
// =============================================================================

const (
	KindUsers        generic.Kind = "users"
	KindBranches     generic.Kind = "branches"
	KindArticles     generic.Kind = "articles"
	KindBatches      generic.Kind = "batches"
	KindTransactions generic.Kind = "transactions"
	KindCustomers    generic.Kind = "customers"
	KindSuppliers    generic.Kind = "suppliers"
)

var (
	articles     = generic.NewCollection[Article](KindArticles)
	batches      = generic.NewCollection[StockBatch](KindBatches)
	transactions = generic.NewCollection[Transaction](KindTransactions)
	branches     = generic.NewCollection[Branch](KindBranches)
	tenants      = generic.NewCollection[Tenant](KindUsers)
)

// =============================================================================
// ARTICLE
// =============================================================================

// Article is a tenant-scoped fabric identity. Quantity and price live in batches.
type Article struct {
	ID       string           `json:"id"`
	TenantID generic.TenantID `json:"tenant_id"`
	Name     string           `json:"name"`
	Unit     string           `json:"unit"`
}

func (a Article) RecordID() string               { return a.ID }
func (a Article) RecordTenant() generic.TenantID { return a.TenantID }

// =============================================================================
// STAGE
// =============================================================================

type Stage string

const (
	StageRaw         Stage = "RAW"
	StagePrinted     Stage = "PRINTED"
	StageDyed        Stage = "DYED"
	StageEmbroidered Stage = "EMBROIDERED"
	StageFinished    Stage = "FINISHED"
)

// Stages lists every stage in processing order.
var Stages = []Stage{StageRaw, StagePrinted, StageDyed, StageEmbroidered, StageFinished}

func (s Stage) Valid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// =============================================================================
// STOCK BATCH
// =============================================================================

// StockBatch is a lineage-tracked lot of fabric at one processing stage.
//
// INVARIANTS:
//   - 0 <= CurrentQuantity <= InitialQuantity
//   - UnitCost = BasePurchasePrice + AccumulatedWorkCost
//   - RAW has no ParentID and zero AccumulatedWorkCost; non-RAW has a ParentID
//   - a child's BasePurchasePrice equals its parent's
type StockBatch struct {
	ID                  string           `json:"id"`
	TenantID            generic.TenantID `json:"tenant_id"`
	BranchID            generic.BranchID `json:"branch_id"`
	ArticleID           string           `json:"article_id"`
	ArticleName         string           `json:"article_name"`
	Stage               Stage            `json:"stage"`
	InitialQuantity     decimal.Decimal  `json:"initial_quantity"`
	CurrentQuantity     decimal.Decimal  `json:"current_quantity"`
	Unit                string           `json:"unit"`
	UnitCost            decimal.Decimal  `json:"unit_cost"`
	BasePurchasePrice   decimal.Decimal  `json:"base_purchase_price"`
	AccumulatedWorkCost decimal.Decimal  `json:"accumulated_work_cost"`
	SupplierID          string           `json:"supplier_id,omitempty"`
	SupplierName        string           `json:"supplier_name,omitempty"`
	Date                time.Time        `json:"date"`
	ParentID            string           `json:"parent_id,omitempty"`
	TransactionID       string           `json:"transaction_id"`
}

func (b StockBatch) RecordID() string               { return b.ID }
func (b StockBatch) RecordTenant() generic.TenantID { return b.TenantID }

// IsActive reports whether the batch still has consumable stock.
func (b StockBatch) IsActive() bool { return b.CurrentQuantity.IsPositive() }

// Value is the carrying cost of the remaining quantity.
func (b StockBatch) Value() decimal.Decimal { return b.CurrentQuantity.Mul(b.UnitCost) }

// Consumed is how much has left the batch through sales or work.
func (b StockBatch) Consumed() decimal.Decimal { return b.InitialQuantity.Sub(b.CurrentQuantity) }

// =============================================================================
// PARTY - Customers and suppliers
// =============================================================================

type PartyKind string

const (
	PartyCustomer PartyKind = "customer"
	PartySupplier PartyKind = "supplier"
)

func (k PartyKind) Valid() bool { return k == PartyCustomer || k == PartySupplier }

func (k PartyKind) kind() generic.Kind {
	if k == PartySupplier {
		return KindSuppliers
	}
	return KindCustomers
}

// Party is a counterparty with a signed running balance.
// Customer: positive = they owe the shop. Supplier: positive = the shop owes them.
// Balance only changes as a transaction side effect.
type Party struct {
	ID       string           `json:"id"`
	TenantID generic.TenantID `json:"tenant_id"`
	Kind     PartyKind        `json:"kind"`
	Name     string           `json:"name"`
	Phone    string           `json:"phone"`
	Balance  decimal.Decimal  `json:"balance"`
}

func (p Party) RecordID() string               { return p.ID }
func (p Party) RecordTenant() generic.TenantID { return p.TenantID }

func parties(kind PartyKind) generic.Collection[Party] {
	return generic.NewCollection[Party](kind.kind())
}

// =============================================================================
// TRANSACTION - The event record
// =============================================================================

type TxType string

const (
	TxSale     TxType = "SALE"
	TxPurchase TxType = "PURCHASE"
	TxWork     TxType = "WORK"
	TxExpense  TxType = "EXPENSE"
	TxPayment  TxType = "PAYMENT"
	TxRecovery TxType = "RECOVERY"
)

type PaymentMode string

const (
	PaymentCash         PaymentMode = "CASH"
	PaymentCheque       PaymentMode = "CHEQUE"
	PaymentBankTransfer PaymentMode = "BANK_TRANSFER"
	PaymentSlip         PaymentMode = "SLIP"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentCash, PaymentCheque, PaymentBankTransfer, PaymentSlip:
		return true
	}
	return false
}

// LineItem is one invoice line. BatchID is filled by the ledger for
// purchases and work; UnitCost is the cost layer consumed or created.
type LineItem struct {
	ArticleID   string          `json:"article_id"`
	ArticleName string          `json:"article_name"`
	BatchID     string          `json:"batch_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Price       decimal.Decimal `json:"price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// Transaction is the stored event. Facts are immutable once saved; only the
// clearance fields of PAYMENT and RECOVERY records may change.
type Transaction struct {
	ID         string           `json:"id"`
	TenantID   generic.TenantID `json:"tenant_id"`
	BranchID   generic.BranchID `json:"branch_id"`
	Type       TxType           `json:"type"`
	EntityID   string           `json:"entity_id,omitempty"`
	EntityName string           `json:"entity_name"`
	Amount     decimal.Decimal  `json:"amount"`
	PaidAmount decimal.Decimal  `json:"paid_amount"`
	Date       time.Time        `json:"date"`
	Note       string           `json:"note,omitempty"`
	Items      []LineItem       `json:"items,omitempty"`

	// EXPENSE category or WORK target stage.
	Category string `json:"category,omitempty"`

	// WORK only.
	WorkDescription  string          `json:"work_description,omitempty"`
	WorkPricePerUnit decimal.Decimal `json:"work_price_per_unit"`
	SourceBatchID    string          `json:"source_batch_id,omitempty"`

	// PAYMENT / RECOVERY only.
	PaymentMode   PaymentMode `json:"payment_mode,omitempty"`
	ReferenceNo   string      `json:"reference_no,omitempty"`
	IsCleared     bool        `json:"is_cleared"`
	ClearedAt     *time.Time  `json:"cleared_at,omitempty"`
	ClearanceNote string      `json:"clearance_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (t Transaction) RecordID() string               { return t.ID }
func (t Transaction) RecordTenant() generic.TenantID { return t.TenantID }

// Outstanding is the unpaid portion recorded at creation time.
func (t Transaction) Outstanding() decimal.Decimal { return t.Amount.Sub(t.PaidAmount) }

// =============================================================================
// BRANCH
// =============================================================================

type Branch struct {
	ID        string           `json:"id"`
	TenantID  generic.TenantID `json:"tenant_id"`
	Name      string           `json:"name"`
	IsDefault bool             `json:"is_default"`
	Address   string           `json:"address,omitempty"`
}

func (b Branch) RecordID() string               { return b.ID }
func (b Branch) RecordTenant() generic.TenantID { return b.TenantID }
