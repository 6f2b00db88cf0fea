// Package export writes records and their metrics to spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

const (
	recordsSheet = "Records"
	metricsSheet = "Metrics"
)

var moneyFormat = `"R$" #,##0.00`

// WriteXLSX writes a workbook with a Records sheet, one row per record, and a Metrics sheet
func WriteXLSX(w io.Writer, records []expense.Record, metrics expense.Metrics) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), recordsSheet); err != nil {
		return fmt.Errorf("naming records sheet: %w", err)
	}
	if _, err := f.NewSheet(metricsSheet); err != nil {
		return fmt.Errorf("creating metrics sheet: %w", err)
	}

	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFormat})
	if err != nil {
		return fmt.Errorf("creating money style: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := writeRecords(f, records, money, header); err != nil {
		return err
	}
	if err := writeMetrics(f, metrics, money, header); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRecords(f *excelize.File, records []expense.Record, money, header int) error {
	headers := []any{"ID", "Issue date", "Invoice number", "Merchant", "Cost center", "Amount", "File name"}
	if err := f.SetSheetRow(recordsSheet, "A1", &headers); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := f.SetRowStyle(recordsSheet, 1, 1, header); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			r.ID,
			r.IssueDate.String(),
			r.InvoiceNumber,
			r.Merchant,
			string(r.CostCenter.Bucket()),
			r.Amount.InexactFloat64(),
			r.FileName,
		}
		if err := f.SetSheetRow(recordsSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if len(records) > 0 {
		last := fmt.Sprintf("F%d", len(records)+1)
		if err := f.SetCellStyle(recordsSheet, "F2", last, money); err != nil {
			return fmt.Errorf("styling amounts: %w", err)
		}
	}
	if err := f.SetColWidth(recordsSheet, "A", "G", 18); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	return nil
}

func writeMetrics(f *excelize.File, m expense.Metrics, money, header int) error {
	rows := [][]any{
		{"Metric", "Value"},
		{"Total", m.Total.InexactFloat64()},
		{"Count", m.Count},
		{"Average", m.Average.InexactFloat64()},
		{},
		{"Cost center", "Amount"},
	}
	for _, c := range m.Categories() {
		rows = append(rows, []any{string(c), m.ByCategory[c].InexactFloat64()})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(metricsSheet, cell, &row); err != nil {
			return fmt.Errorf("writing metrics row %d: %w", i+1, err)
		}
	}

	for _, r := range []int{1, 6} {
		if err := f.SetRowStyle(metricsSheet, r, r, header); err != nil {
			return fmt.Errorf("styling metrics header: %w", err)
		}
	}
	for _, cell := range []string{"B2", "B4"} {
		if err := f.SetCellStyle(metricsSheet, cell, cell, money); err != nil {
			return fmt.Errorf("styling metrics: %w", err)
		}
	}
	if len(rows) > 6 {
		if err := f.SetCellStyle(metricsSheet, "B7", fmt.Sprintf("B%d", len(rows)), money); err != nil {
			return fmt.Errorf("styling metrics: %w", err)
		}
	}
	if err := f.SetColWidth(metricsSheet, "A", "B", 18); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	return nil
}
