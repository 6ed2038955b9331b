// Package export renders ledger rows as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"fieldledger/internal/domain/stock"
)

// ContentTypeXLSX is the MIME type of the workbook produced here.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const ledgerSheet = "Ledger"

var ledgerHeadings = []string{
	"Timestamp", "Item type", "Item ID", "Item name", "Quantity", "Type", "Source", "Notes", "Transaction ID",
}

// WriteLedger writes rows as a single-sheet workbook to w.
func WriteLedger(w io.Writer, technicianID string, rows []stock.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Stock ledger",
		Subject: technicianID,
	}); err != nil {
		return fmt.Errorf("set properties: %w", err)
	}

	header := make([]any, len(ledgerHeadings))
	for k, h := range ledgerHeadings {
		header[k] = h
	}
	if err := f.SetSheetRow(ledgerSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetRowStyle(ledgerSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for k, t := range rows {
		cell, err := excelize.CoordinatesToCellName(1, k+2)
		if err != nil {
			return err
		}
		values := []any{
			t.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			string(t.ItemType),
			t.ItemID,
			t.ItemName,
			t.Quantity,
			string(t.Type),
			t.SourceID,
			t.Notes,
			t.ID.String(),
		}
		if err := f.SetSheetRow(ledgerSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", k+2, err)
		}
	}

	if err := f.SetColWidth(ledgerSheet, "A", "A", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(ledgerSheet, "D", "D", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(ledgerSheet, "H", "H", 48); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
