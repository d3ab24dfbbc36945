package balance

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "TrialBalance"

var exportHeader = []string{
	"Account", "Description",
	"Level 1", "Level 1 Description",
	"Level 2", "Level 2 Description",
	"Level 3", "Level 3 Description",
	"Level 4", "Level 4 Description",
	"Level 5", "Level 5 Description",
	"Balance Local", "Balance Foreign",
	"Debit Local", "Debit Foreign",
	"Credit Local", "Credit Foreign",
	"Currency", "Type", "Detailed Type", "Report Type",
}

// WriteXLSX renders snapshot rows as a single-sheet workbook. Amounts are
// written as numbers so consumers can sum columns directly.
func WriteXLSX(w io.Writer, rows []SnapshotRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("balance: create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("balance: drop default sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return fmt.Errorf("balance: stream writer: %w", err)
	}

	widths := []float64{15, 50, 10, 30, 10, 30, 10, 30, 10, 30, 10, 30,
		15, 15, 15, 15, 15, 15, 10, 12, 12, 12}
	for col, width := range widths {
		if err := sw.SetColWidth(col+1, col+1, width); err != nil {
			return err
		}
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	cell, _ := excelize.CoordinatesToCellName(1, 1)
	if err := sw.SetRow(cell, header); err != nil {
		return err
	}

	for i, row := range rows {
		values := []interface{}{
			row.Account, row.Description,
			row.Ancestors[0].Code, row.Ancestors[0].Description,
			row.Ancestors[1].Code, row.Ancestors[1].Description,
			row.Ancestors[2].Code, row.Ancestors[2].Description,
			row.Ancestors[3].Code, row.Ancestors[3].Description,
			row.Ancestors[4].Code, row.Ancestors[4].Description,
			row.BalanceLocal.InexactFloat64(), row.BalanceForeign.InexactFloat64(),
			row.DebitLocal.InexactFloat64(), row.DebitForeign.InexactFloat64(),
			row.CreditLocal.InexactFloat64(), row.CreditForeign.InexactFloat64(),
			row.Currency, row.Type, row.DetailedType, string(row.ReportType),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, values); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("balance: flush sheet: %w", err)
	}
	return f.Write(w)
}
