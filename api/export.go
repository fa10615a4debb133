package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/xuri/excelize/v2"

	"github.com/warp/textile-ledger/textile"
)

const registerSheet = "Register"

var registerHeader = []interface{}{
	"Date", "Type", "Party", "Amount", "Paid", "Outstanding",
	"Category", "Payment Mode", "Reference", "Cleared", "Note",
}

// ExportTransactions streams the session branch's register as .xlsx.
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	txs, err := h.ledger.ListTransactionsByBranch(r.Context(), s.TenantID(), s.BranchID())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=register-%s.xlsx", s.BranchID()))
	if err := WriteRegister(w, txs); err != nil {
		h.log.WithError(err).Error("export register")
	}
}

// WriteRegister writes one row per transaction, in the given order.
func WriteRegister(out io.Writer, txs []textile.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", registerSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(registerSheet, "A1", &registerHeader); err != nil {
		return err
	}

	for i, tx := range txs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		cleared := ""
		if tx.Type == textile.TxPayment || tx.Type == textile.TxRecovery {
			cleared = "No"
			if tx.IsCleared {
				cleared = "Yes"
			}
		}
		row := []interface{}{
			tx.Date.Format("2006-01-02"),
			string(tx.Type),
			tx.EntityName,
			tx.Amount.InexactFloat64(),
			tx.PaidAmount.InexactFloat64(),
			tx.Outstanding().InexactFloat64(),
			tx.Category,
			string(tx.PaymentMode),
			tx.ReferenceNo,
			cleared,
			tx.Note,
		}
		if err := f.SetSheetRow(registerSheet, cell, &row); err != nil {
			return err
		}
	}

	return f.Write(out)
}
