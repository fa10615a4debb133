/*
Package factory converts loosely-typed JSON into typed ledger commands.

PURPOSE:
  Clients send one flat transaction shape for every type, with the
  type-specific fields optional. The factory checks the shape with
  struct tags (go-playground/validator) and produces exactly one
  textile.Command variant, so the ledger never sees a half-filled record.

JSON SCHEMA:
  {
    "type": "SALE",                    // SALE|PURCHASE|WORK|EXPENSE|PAYMENT|RECOVERY
    "entity_id": "cust-1",             // customer/supplier, optional for EXPENSE
    "entity_name": "Walk-in",
    "amount": "250",
    "paid_amount": "150",
    "date": "2026-03-01",              // or RFC3339
    "note": "",
    "items": [{"batch_id": "b-1", "quantity": "10", "price": "25"}],
    "category": "PRINTED",             // EXPENSE category or WORK target stage
    "work_description": "block print",
    "work_price_per_unit": "5",
    "source_batch_id": "b-0",
    "payment_mode": "CHEQUE",
    "reference_no": "CHQ-1"
  }

  WORK takes its consumed quantity from items[0].quantity.

USAGE:
  f := factory.NewTransactionFactory()
  cmd, err := f.ParseTransaction(body, session)
  tx, err := ledger.RecordTransaction(ctx, cmd)

SEE ALSO:
  - textile/commands.go: The command variants
  - api/handlers.go: Calls ParseTransaction
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/textile-ledger/textile"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type TransactionJSON struct {
	Type             string          `json:"type" validate:"required,oneof=SALE PURCHASE WORK EXPENSE PAYMENT RECOVERY"`
	EntityID         string          `json:"entity_id" validate:"max=64"`
	EntityName       string          `json:"entity_name" validate:"max=120"`
	Amount           decimal.Decimal `json:"amount"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	Date             string          `json:"date" validate:"required"`
	Note             string          `json:"note" validate:"max=500"`
	Items            []ItemJSON      `json:"items" validate:"max=200,dive"`
	Category         string          `json:"category" validate:"max=64"`
	WorkDescription  string          `json:"work_description" validate:"max=240"`
	WorkPricePerUnit decimal.Decimal `json:"work_price_per_unit"`
	SourceBatchID    string          `json:"source_batch_id" validate:"max=64"`
	PaymentMode      string          `json:"payment_mode" validate:"omitempty,oneof=CASH CHEQUE BANK_TRANSFER SLIP"`
	ReferenceNo      string          `json:"reference_no" validate:"max=64"`
}

type ItemJSON struct {
	ArticleID string          `json:"article_id" validate:"max=64"`
	BatchID   string          `json:"batch_id" validate:"max=64"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// =============================================================================
// FACTORY
// =============================================================================

type TransactionFactory struct{}

func NewTransactionFactory() *TransactionFactory {
	return &TransactionFactory{}
}

// ParseTransaction decodes data and builds the command for session's tenant and branch.
func (f *TransactionFactory) ParseTransaction(data []byte, session textile.Session) (textile.Command, error) {
	var j TransactionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, &textile.ValidationError{Field: "body", Reason: err.Error()}
	}
	return f.Build(j, session)
}

// Build converts an already-decoded transaction.
func (f *TransactionFactory) Build(j TransactionJSON, session textile.Session) (textile.Command, error) {
	if err := Validate(j); err != nil {
		return nil, err
	}
	date, err := ParseDate(j.Date)
	if err != nil {
		return nil, err
	}

	h := textile.NewHeader(session, date)
	h.Amount = j.Amount
	h.PaidAmount = j.PaidAmount
	h.EntityName = j.EntityName
	h.Note = j.Note

	switch textile.TxType(j.Type) {
	case textile.TxPurchase:
		items := make([]textile.PurchaseItem, 0, len(j.Items))
		for _, it := range j.Items {
			items = append(items, textile.PurchaseItem{ArticleID: it.ArticleID, Quantity: it.Quantity, Price: it.Price})
		}
		return textile.Purchase{Header: h, SupplierID: j.EntityID, Items: items}, nil

	case textile.TxSale:
		items := make([]textile.SaleItem, 0, len(j.Items))
		for _, it := range j.Items {
			items = append(items, textile.SaleItem{BatchID: it.BatchID, Quantity: it.Quantity, Price: it.Price})
		}
		return textile.Sale{Header: h, CustomerID: j.EntityID, Items: items}, nil

	case textile.TxWork:
		if len(j.Items) == 0 {
			return nil, &textile.ValidationError{Field: "items", Reason: "work needs the consumed quantity in items[0]"}
		}
		if len(j.Items) > 1 {
			return nil, &textile.ValidationError{Field: "items", Reason: "work takes exactly one item"}
		}
		return textile.Work{
			Header:        h,
			VendorID:      j.EntityID,
			SourceBatchID: j.SourceBatchID,
			Stage:         textile.Stage(j.Category),
			Quantity:      j.Items[0].Quantity,
			PricePerUnit:  j.WorkPricePerUnit,
			Description:   j.WorkDescription,
		}, nil

	case textile.TxExpense:
		return textile.Expense{Header: h, Category: j.Category}, nil

	case textile.TxPayment:
		return textile.Payment{
			Header:      h,
			SupplierID:  j.EntityID,
			Mode:        textile.PaymentMode(j.PaymentMode),
			ReferenceNo: j.ReferenceNo,
		}, nil

	case textile.TxRecovery:
		return textile.Recovery{
			Header:      h,
			CustomerID:  j.EntityID,
			Mode:        textile.PaymentMode(j.PaymentMode),
			ReferenceNo: j.ReferenceNo,
		}, nil
	}
	return nil, &textile.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", j.Type)}
}

// ParseDate accepts "2006-01-02" or RFC3339.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &textile.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD or RFC3339"}
	}
	return t, nil
}
