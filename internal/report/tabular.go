package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/models"
)

const xlsxSheet = "Sales"

func row(tx models.Transaction) []string {
	return []string{
		tx.Date.Format(models.DateLayout),
		tx.ProductName,
		tx.Category,
		strconv.Itoa(tx.Quantity),
		strconv.FormatFloat(tx.UnitPrice, 'f', -1, 64),
		strconv.FormatFloat(tx.TotalAmount, 'f', -1, 64),
		strconv.FormatInt(tx.CustomerID, 10),
		tx.CustomerLocation,
	}
}

// WriteCSV writes the header and one row per transaction, columns in schema
// order.
func WriteCSV(w io.Writer, table models.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ingest.RequiredColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, tx := range table {
		if err := cw.Write(row(tx)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the table as a single-sheet workbook readable by the
// upload path.
func WriteXLSX(w io.Writer, table models.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(xlsxSheet)
	if err != nil {
		return fmt.Errorf("new stream writer: %w", err)
	}

	header := make([]any, len(ingest.RequiredColumns))
	for i, c := range ingest.RequiredColumns {
		header[i] = excelize.Cell{Value: c}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, tx := range table {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			tx.Date.Format(models.DateLayout),
			tx.ProductName,
			tx.Category,
			tx.Quantity,
			tx.UnitPrice,
			tx.TotalAmount,
			tx.CustomerID,
			tx.CustomerLocation,
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	return f.Write(w)
}
