// Package report builds the downloadable views of a transaction table: the
// raw CSV and XLSX exports and the PDF summary report.
package report

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.943 generate

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

const Title = "E-commerce Sales Dashboard Report"

type RankedProduct struct {
	Rank    int
	Name    string
	Revenue float64
}

// Report is the rendered-agnostic content of the PDF summary.
type Report struct {
	Title       string
	GeneratedAt time.Time
	Range       models.DateRange
	KPIs        models.KPISummary
	KPILines    []string
	TopProducts []RankedProduct
}

var printer = message.NewPrinter(language.English)

// BuildReport assembles the summary for an already filtered table.
func BuildReport(table models.Table, kpis models.KPISummary, generatedAt time.Time) *Report {
	r := &Report{
		Title:       Title,
		GeneratedAt: generatedAt,
		KPIs:        kpis,
		KPILines: []string{
			"Total Revenue: " + FormatCurrency(kpis.TotalRevenue),
			"Total Orders: " + FormatInt(kpis.TotalOrders),
			"Unique Customers: " + FormatInt(kpis.UniqueCustomers),
			"Average Order Value: " + FormatCurrency(kpis.AvgOrderValue),
			"Month-over-Month Growth: " + FormatPercent(kpis.MoMGrowth),
		},
	}
	if minDate, maxDate, ok := table.DateBounds(); ok {
		r.Range = models.DateRange{Start: minDate, End: maxDate}
	}

	ranking := services.ProductRanking(table)
	for i, p := range ranking[:min(services.ReportTopN, len(ranking))] {
		r.TopProducts = append(r.TopProducts, RankedProduct{Rank: i + 1, Name: p.ProductName, Revenue: p.Revenue})
	}
	return r
}

// FormatCurrency renders v as US dollars with thousands separators, e.g.
// "$1,234.56" or "-$5.00".
func FormatCurrency(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + printer.Sprintf("$%.2f", d.InexactFloat64())
}

func FormatInt(n int) string {
	return printer.Sprintf("%d", n)
}

func FormatPercent(v float64) string {
	return printer.Sprintf("%.1f%%", decimal.NewFromFloat(v).Round(1).InexactFloat64())
}

// CSVFilename and PDFFilename stamp export names with the export date.
func CSVFilename(now time.Time) string {
	return "sales_data_" + now.Format("20060102") + ".csv"
}

func PDFFilename(now time.Time) string {
	return "sales_report_" + now.Format("20060102") + ".pdf"
}

func XLSXFilename(now time.Time) string {
	return "sales_data_" + now.Format("20060102") + ".xlsx"
}
