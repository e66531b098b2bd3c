// Package ingest turns uploaded tabular files into normalized transaction
// tables.
package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/models"
)

const (
	batchSize  = 5000
	maxWorkers = 8
)

const (
	ColDate             = "date"
	ColProductName      = "product_name"
	ColCategory         = "category"
	ColQuantity         = "quantity"
	ColUnitPrice        = "unit_price"
	ColTotalAmount      = "total_amount"
	ColCustomerID       = "customer_id"
	ColCustomerLocation = "customer_location"
)

// RequiredColumns lists the transaction columns in schema order.
var RequiredColumns = []string{
	ColDate, ColProductName, ColCategory, ColQuantity,
	ColUnitPrice, ColTotalAmount, ColCustomerID, ColCustomerLocation,
}

// OptionalColumns are accepted but always rederived from the date.
var OptionalColumns = []string{"month", "week", "day_of_week"}

var dateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
}

type Result struct {
	Table  models.Table
	Format string
	// MalformedCells counts numeric cells that could not be parsed and were
	// read as zero.
	MalformedCells int
}

// Parse reads name's content from r, choosing the decoder by extension.
func Parse(ctx context.Context, name string, r io.Reader) (*Result, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv":
		return ParseCSV(ctx, r)
	case ".xlsx":
		return ParseXLSX(ctx, r)
	case ".zip":
		return ParseZip(ctx, r)
	default:
		return nil, &SchemaError{Reason: fmt.Sprintf("extension %q", ext), Err: ErrUnsupportedFormat}
	}
}

func ParseCSV(ctx context.Context, r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &SchemaError{Reason: "file is not valid CSV", Err: err}
	}
	res, err := FromRows(ctx, records)
	if err != nil {
		return nil, err
	}
	res.Format = "csv"
	return res, nil
}

func ParseXLSX(ctx context.Context, r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &SchemaError{Reason: "file is not a valid spreadsheet", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &SchemaError{Reason: "spreadsheet has no sheets", Err: ErrNoData}
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("read sheet %q", sheets[0]), Err: err}
	}
	res, err := fromRows(ctx, rows, parseSheetDate)
	if err != nil {
		return nil, err
	}
	res.Format = "xlsx"
	return res, nil
}

// ParseZip reads the first CSV or XLSX entry of a zip archive.
func ParseZip(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &SchemaError{Reason: "file is not a valid zip archive", Err: err}
	}

	names := make([]string, 0, len(zr.File))
	for _, file := range zr.File {
		names = append(names, file.Name)
		ext := strings.ToLower(filepath.Ext(file.Name))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("open %s", file.Name), Err: err}
		}
		defer rc.Close()
		return Parse(ctx, file.Name, rc)
	}
	return nil, &SchemaError{Reason: fmt.Sprintf("no CSV or XLSX file in archive (files: %v)", names), Err: ErrNoData}
}

// FromRows converts a header row plus data rows into a normalized table.
// Rows are parsed in parallel batches; the result keeps input order. Dates
// must be text; see ParseDate.
func FromRows(ctx context.Context, rows [][]string) (*Result, error) {
	return fromRows(ctx, rows, ParseDate)
}

func fromRows(ctx context.Context, rows [][]string, parseDate func(string) (time.Time, error)) (*Result, error) {
	if len(rows) == 0 {
		return nil, &SchemaError{Reason: "file is empty", Err: ErrNoData}
	}
	cols, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	data := rows[1:]
	for len(data) > 0 && isBlank(data[len(data)-1]) {
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return nil, &SchemaError{Reason: "file has a header but no data rows", Err: ErrNoData}
	}

	table := make(models.Table, len(data))
	keep := make([]bool, len(data))
	nBatches := (len(data) + batchSize - 1) / batchSize
	batchErrs := make([]error, nBatches)
	malformed := make([]int, nBatches)

	var g errgroup.Group
	g.SetLimit(maxWorkers)
	for b := range nBatches {
		lo, hi := b*batchSize, min((b+1)*batchSize, len(data))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				if isBlank(data[i]) {
					continue
				}
				tx, bad, err := parseRow(cols, data[i], i+1, parseDate)
				if err != nil {
					batchErrs[b] = err
					return nil
				}
				table[i] = tx
				keep[i] = true
				malformed[b] += bad
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range batchErrs {
		if err != nil {
			return nil, err
		}
	}

	out := make(models.Table, 0, len(table))
	for i, tx := range table {
		if keep[i] {
			out = append(out, tx)
		}
	}
	res := &Result{Table: out}
	for _, n := range malformed {
		res.MalformedCells += n
	}
	return res, nil
}

// Normalize returns a copy of table with dates truncated to the day and the
// derived period fields recomputed.
func Normalize(table models.Table) models.Table {
	out := make(models.Table, len(table))
	for i, tx := range table {
		tx.Normalize()
		out[i] = tx
	}
	return out
}

func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	for _, name := range RequiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, &SchemaError{Column: name, Reason: "required column is missing"}
		}
	}
	return cols, nil
}

func parseRow(cols map[string]int, row []string, rowNum int, parseDate func(string) (time.Time, error)) (models.Transaction, int, error) {
	cell := func(name string) string {
		idx := cols[name]
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	date, err := parseDate(cell(ColDate))
	if err != nil {
		return models.Transaction{}, 0, &SchemaError{Column: ColDate, Row: rowNum, Reason: "unparseable date", Err: err}
	}

	bad := 0
	quantity, ok := parseInt(cell(ColQuantity))
	if !ok {
		bad++
	}
	unitPrice, ok := parseAmount(cell(ColUnitPrice))
	if !ok {
		bad++
	}
	total, ok := parseAmount(cell(ColTotalAmount))
	if !ok {
		bad++
	}
	customerID, ok := parseInt(cell(ColCustomerID))
	if !ok {
		bad++
	}

	tx := models.Transaction{
		Date:             date,
		ProductName:      cell(ColProductName),
		Category:         cell(ColCategory),
		Quantity:         int(quantity),
		UnitPrice:        unitPrice,
		TotalAmount:      total,
		CustomerID:       customerID,
		CustomerLocation: cell(ColCustomerLocation),
	}
	tx.Normalize()
	return tx, bad, nil
}

// ParseDate accepts ISO dates and common US/ISO variants.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseSheetDate also accepts Excel serial day numbers, which is how
// spreadsheets store date cells read with RawCellValue.
func parseSheetDate(s string) (time.Time, error) {
	t, err := ParseDate(s)
	if err == nil {
		return t, nil
	}
	serial, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if perr != nil || serial < 1 {
		return time.Time{}, err
	}
	t, err = excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q: %w", s, err)
	}
	return models.Day(t), nil
}

func parseInt(s string) (int64, bool) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	f, ok := parseAmount(s)
	return int64(f), ok
}

func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
