package textile

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/textile-ledger/generic"
)

// =============================================================================
// COMMANDS - One variant per transaction type
// =============================================================================

// Command is the closed set of events accepted by Ledger.RecordTransaction:
// Purchase, Sale, Work, Expense, Payment, Recovery. Each variant carries
// exactly the fields its type needs.
type Command interface {
	Type() TxType
	header() Header
}

// Header holds the fields every transaction shares.
type Header struct {
	TenantID   generic.TenantID
	BranchID   generic.BranchID
	Date       time.Time
	Amount     decimal.Decimal
	PaidAmount decimal.Decimal
	EntityName string
	Note       string
}

func (h Header) header() Header { return h }

func (h Header) validate() error {
	if h.TenantID == "" {
		return invalid("tenant_id", "is required")
	}
	if h.BranchID == "" {
		return invalid("branch_id", "is required")
	}
	if h.Date.IsZero() {
		return invalid("date", "is required")
	}
	if h.Amount.IsNegative() {
		return &InvalidAmountError{Field: "amount", Value: h.Amount}
	}
	if h.PaidAmount.IsNegative() {
		return &InvalidAmountError{Field: "paid_amount", Value: h.PaidAmount}
	}
	return nil
}

// PurchaseItem buys Quantity of an article at Price per unit.
type PurchaseItem struct {
	ArticleID string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
}

// Purchase creates one RAW batch per item and raises the supplier's payable.
type Purchase struct {
	Header
	SupplierID string
	Items      []PurchaseItem
}

func (Purchase) Type() TxType { return TxPurchase }

// SaleItem sells Quantity out of an existing batch.
type SaleItem struct {
	BatchID  string
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// Sale consumes batches and raises the customer's receivable. Walk-in
// buyers are booked against a customer record like any other.
type Sale struct {
	Header
	CustomerID string
	Items      []SaleItem
}

func (Sale) Type() TxType { return TxSale }

// Work transforms Quantity of the source batch into a child batch at Stage.
// VendorID is the processing vendor, a supplier who owns the child batch.
type Work struct {
	Header
	VendorID      string
	SourceBatchID string
	Stage         Stage
	Quantity      decimal.Decimal
	PricePerUnit  decimal.Decimal
	Description   string
}

func (Work) Type() TxType { return TxWork }

// Expense is a pure ledger entry.
type Expense struct {
	Header
	Category string
}

func (Expense) Type() TxType { return TxExpense }

// Payment settles part of what the shop owes a supplier.
type Payment struct {
	Header
	SupplierID  string
	Mode        PaymentMode
	ReferenceNo string
}

func (Payment) Type() TxType { return TxPayment }

// Recovery collects part of what a customer owes the shop.
type Recovery struct {
	Header
	CustomerID  string
	Mode        PaymentMode
	ReferenceNo string
}

func (Recovery) Type() TxType { return TxRecovery }

// concrete dereferences pointer variants so planning only sees values.
// A nil command, typed or untyped, is rejected.
func concrete(cmd Command) (Command, error) {
	var out Command
	switch c := cmd.(type) {
	case *Purchase:
		if c != nil {
			out = *c
		}
	case *Sale:
		if c != nil {
			out = *c
		}
	case *Work:
		if c != nil {
			out = *c
		}
	case *Expense:
		if c != nil {
			out = *c
		}
	case *Payment:
		if c != nil {
			out = *c
		}
	case *Recovery:
		if c != nil {
			out = *c
		}
	default:
		out = cmd
	}
	if out == nil {
		return nil, invalid("type", "is required")
	}
	return out, nil
}
