package services

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

const (
	TopProductsLimit = 10
	TopRegionsLimit  = 15
	ReportTopN       = 5
	RecentLimit      = 100
)

// FilterByDate keeps the records whose calendar date lies in [start, end].
// The input table is never modified.
func FilterByDate(table models.Table, start, end time.Time) models.Table {
	start, end = models.Day(start), models.Day(end)
	return lo.Filter(table, func(tx models.Transaction, _ int) bool {
		d := models.Day(tx.Date)
		return !d.Before(start) && !d.After(end)
	})
}

// ClampRange bounds start and end to the table's date span. A zero start
// takes the first day and a zero end the last. For an empty table the bounds
// come back unchanged.
func ClampRange(table models.Table, start, end time.Time) (time.Time, time.Time) {
	minDate, maxDate, ok := table.DateBounds()
	if !ok {
		return start, end
	}
	if start.IsZero() {
		start = minDate
	}
	if end.IsZero() {
		end = maxDate
	}
	return clampDay(start, minDate, maxDate), clampDay(end, minDate, maxDate)
}

func clampDay(d, minDate, maxDate time.Time) time.Time {
	d = models.Day(d)
	if d.Compare(minDate) < 0 {
		return minDate
	}
	if d.Compare(maxDate) > 0 {
		return maxDate
	}
	return d
}

func CalculateKPIs(table models.Table) models.KPISummary {
	if len(table) == 0 {
		return models.KPISummary{}
	}

	revenue := lo.SumBy(table, func(tx models.Transaction) float64 { return tx.TotalAmount })
	customers := lo.UniqBy(table, func(tx models.Transaction) int64 { return tx.CustomerID })

	return models.KPISummary{
		TotalRevenue:    revenue,
		TotalOrders:     len(table),
		UniqueCustomers: len(customers),
		AvgOrderValue:   revenue / float64(len(table)),
		MoMGrowth:       monthOverMonthGrowth(table),
	}
}

// monthOverMonthGrowth compares the two most recent calendar months present
// in the table, as a percentage.
func monthOverMonthGrowth(table models.Table) float64 {
	byMonth := lo.GroupBy(table, func(tx models.Transaction) string {
		return tx.Date.Format("2006-01")
	})
	if len(byMonth) < 2 {
		return 0
	}

	months := lo.Keys(byMonth)
	slices.Sort(months)

	sum := func(month string) float64 {
		return lo.SumBy(byMonth[month], func(tx models.Transaction) float64 { return tx.TotalAmount })
	}
	latest := sum(months[len(months)-1])
	previous := sum(months[len(months)-2])
	if previous == 0 {
		return 0
	}
	return (latest - previous) / previous * 100
}

// groupRevenue sums total_amount per key. Keys come back in ascending order.
func groupRevenue(table models.Table, key func(models.Transaction) string) ([]string, map[string]float64) {
	sums := make(map[string]float64)
	for _, tx := range table {
		sums[key(tx)] += tx.TotalAmount
	}
	keys := lo.Keys(sums)
	slices.Sort(keys)
	return keys, sums
}

func SalesByDate(table models.Table) []models.DailySales {
	sums := make(map[time.Time]float64)
	for _, tx := range table {
		sums[models.Day(tx.Date)] += tx.TotalAmount
	}
	days := lo.Keys(sums)
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })

	return lo.Map(days, func(d time.Time, _ int) models.DailySales {
		return models.DailySales{Date: d, Revenue: sums[d]}
	})
}

// TopProducts returns the limit highest-earning products in ascending
// revenue order, so a horizontal bar chart shows the largest bar last.
func TopProducts(table models.Table, limit int) []models.ProductRevenue {
	out := productRevenue(table)
	slices.SortStableFunc(out, func(a, b models.ProductRevenue) int {
		return cmp.Compare(a.Revenue, b.Revenue)
	})
	return lo.Subset(out, -min(limit, len(out)), uint(max(limit, 0)))
}

// ProductRanking returns every product by descending revenue. Ties keep
// alphabetical order.
func ProductRanking(table models.Table) []models.ProductRevenue {
	out := productRevenue(table)
	slices.SortStableFunc(out, func(a, b models.ProductRevenue) int {
		return cmp.Compare(b.Revenue, a.Revenue)
	})
	return out
}

func productRevenue(table models.Table) []models.ProductRevenue {
	keys, sums := groupRevenue(table, func(tx models.Transaction) string { return tx.ProductName })
	return lo.Map(keys, func(k string, _ int) models.ProductRevenue {
		return models.ProductRevenue{ProductName: k, Revenue: sums[k]}
	})
}

func SalesByCategory(table models.Table) []models.CategoryRevenue {
	keys, sums := groupRevenue(table, func(tx models.Transaction) string { return tx.Category })
	return lo.Map(keys, func(k string, _ int) models.CategoryRevenue {
		return models.CategoryRevenue{Category: k, Revenue: sums[k]}
	})
}

// TopRegions returns the limit highest-earning locations, highest first.
func TopRegions(table models.Table, limit int) []models.RegionRevenue {
	keys, sums := groupRevenue(table, func(tx models.Transaction) string { return tx.CustomerLocation })
	out := lo.Map(keys, func(k string, _ int) models.RegionRevenue {
		return models.RegionRevenue{Region: k, Revenue: sums[k]}
	})
	slices.SortStableFunc(out, func(a, b models.RegionRevenue) int {
		return cmp.Compare(b.Revenue, a.Revenue)
	})
	return lo.Slice(out, 0, limit)
}

// RecentTransactions returns up to limit records, most recent date first.
// Records on the same day keep their table order.
func RecentTransactions(table models.Table, limit int) models.Table {
	out := slices.Clone(table)
	slices.SortStableFunc(out, func(a, b models.Transaction) int {
		return b.Date.Compare(a.Date)
	})
	return lo.Slice(out, 0, limit)
}

// Snapshot is everything the dashboard shows for one date range.
type Snapshot struct {
	Range       models.DateRange         `json:"range"`
	Span        models.DateRange         `json:"span"`
	KPIs        models.KPISummary        `json:"kpis"`
	SalesByDate []models.DailySales      `json:"sales_by_date"`
	TopProducts []models.ProductRevenue  `json:"top_products"`
	Categories  []models.CategoryRevenue `json:"sales_by_category"`
	TopRegions  []models.RegionRevenue   `json:"top_regions"`
	Recent      models.Table             `json:"recent_transactions"`
	RecordCount int                      `json:"record_count"`
	Empty       bool                     `json:"empty"`
}

// Analytics computes dashboard views over a session's table.
type Analytics struct {
	metrics    *observability.Metrics
	logger     *slog.Logger
	recentRows int
}

func NewAnalytics(metrics *observability.Metrics, logger *slog.Logger, recentRows int) *Analytics {
	if recentRows <= 0 {
		recentRows = RecentLimit
	}
	return &Analytics{
		metrics:    metrics,
		logger:     logger,
		recentRows: recentRows,
	}
}

// Snapshot filters table to the range and computes every view. trigger
// names what caused the recomputation and is only used for metrics.
func (a *Analytics) Snapshot(ctx context.Context, table models.Table, r models.DateRange, trigger string) *Snapshot {
	ctx, span := observability.StartSpan(ctx, "analytics.snapshot")
	defer span.End()

	start := time.Now()
	filtered := FilterByDate(table, r.Start, r.End)

	snap := &Snapshot{
		Range:       r,
		RecordCount: len(filtered),
		Empty:       len(filtered) == 0,
	}

	// Each view writes its own field; none of them fail.
	var g errgroup.Group
	g.Go(func() error { snap.KPIs = CalculateKPIs(filtered); return nil })
	g.Go(func() error { snap.SalesByDate = SalesByDate(filtered); return nil })
	g.Go(func() error { snap.TopProducts = TopProducts(filtered, TopProductsLimit); return nil })
	g.Go(func() error { snap.Categories = SalesByCategory(filtered); return nil })
	g.Go(func() error { snap.TopRegions = TopRegions(filtered, TopRegionsLimit); return nil })
	g.Go(func() error { snap.Recent = RecentTransactions(filtered, a.recentRows); return nil })
	_ = g.Wait()
	if minDate, maxDate, ok := table.DateBounds(); ok {
		snap.Span = models.DateRange{Start: minDate, End: maxDate}
	}

	elapsed := time.Since(start)
	if a.metrics != nil {
		a.metrics.RecordRecompute(ctx, trigger, elapsed)
	}
	a.logger.Debug("snapshot computed",
		"trigger", trigger,
		"records", len(filtered),
		"start", r.Start.Format(models.DateLayout),
		"end", r.End.Format(models.DateLayout),
		"duration", elapsed,
	)
	return snap
}
