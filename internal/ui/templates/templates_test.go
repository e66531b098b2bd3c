package templates

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testSnapshot() *services.Snapshot {
	table := models.Table{
		{Date: day(2024, 1, 10), ProductName: "Apple", Category: "Fruit", Quantity: 2, UnitPrice: 10, TotalAmount: 20, CustomerID: 1001, CustomerLocation: "Boston"},
		{Date: day(2024, 1, 20), ProductName: "Cherry", Category: "Fruit", Quantity: 3, UnitPrice: 10, TotalAmount: 30, CustomerID: 1002, CustomerLocation: "Denver"},
		{Date: day(2024, 2, 5), ProductName: "Banana <b>", Category: "Fruit", Quantity: 1, UnitPrice: 5, TotalAmount: 5, CustomerID: 1001, CustomerLocation: "Boston"},
	}
	a := services.NewAnalytics(nil, observability.NopLogger(), 100)
	return a.Snapshot(context.Background(), table, models.DateRange{Start: day(2024, 1, 10), End: day(2024, 2, 5)}, "test")
}

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	s, err := RenderString(context.Background(), c)
	require.NoError(t, err)
	return s
}

func TestDashboard(t *testing.T) {
	snap := testSnapshot()
	html := render(t, Dashboard(PageData{
		Snapshot: snap,
		Session:  services.Session{Source: services.SourceUpload, Name: "sales.csv", Notice: "2 numeric cells could not be read and were treated as 0."},
	}))

	assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
	assert.Contains(t, html, "<title>E-commerce Sales Dashboard</title>")
	assert.Contains(t, html, `data-signals="{&#34;startDate&#34;:&#34;2024-01-10&#34;,&#34;endDate&#34;:&#34;2024-02-05&#34;}"`)
	assert.Contains(t, html, `min="2024-01-10"`)
	assert.Contains(t, html, "$55.00")
	assert.Contains(t, html, "-90.0%")
	assert.Contains(t, html, `class="value negative"`)
	assert.Contains(t, html, "2 numeric cells could not be read")
	assert.Contains(t, html, "sales.csv")
	assert.Contains(t, html, "Banana &lt;b&gt;", "product names are escaped")
	assert.NotContains(t, html, "No data available")

	for _, id := range []string{IDKPIs, IDSalesTrend, IDTopProducts, IDCategories, IDTopRegions, IDRecent, IDNotice} {
		assert.Contains(t, html, `id="`+id+`"`)
	}
}

func TestKPIs_Empty(t *testing.T) {
	a := services.NewAnalytics(nil, observability.NopLogger(), 100)
	snap := a.Snapshot(context.Background(), models.Table{}, models.DateRange{}, "test")

	html := render(t, KPIs(snap))
	assert.Contains(t, html, "No data available for the selected date range.")
	assert.Contains(t, html, "$0.00")

	html = render(t, SalesTrend(snap))
	assert.Contains(t, html, "No sales in this period.")
	assert.NotContains(t, html, "<svg")
}

func TestBars(t *testing.T) {
	html := render(t, TopProducts(testSnapshot()))

	apple := strings.Index(html, "Apple")
	cherry := strings.Index(html, "Cherry")
	require.Positive(t, apple)
	assert.Less(t, apple, cherry, "bars keep the ascending order")
	assert.Contains(t, html, `style="width: 100.0%;"`)
	assert.Contains(t, html, `id="top-products"`)
}

func TestScaleBars(t *testing.T) {
	bars := scaleBars([]bar{{Label: "a", Revenue: 25}, {Label: "b", Revenue: 100}, {Label: "c", Revenue: 0}})
	assert.InDelta(t, 25.0, bars[0].Width, 1e-9)
	assert.InDelta(t, 100.0, bars[1].Width, 1e-9)
	assert.Zero(t, bars[2].Width)

	assert.Empty(t, scaleBars(nil))
}

func TestTrendView(t *testing.T) {
	tr := trendView(testSnapshot())

	assert.Equal(t, 3, tr.Days)
	assert.Equal(t, 30.0, tr.Peak)
	assert.Equal(t, "2024-01-10", tr.First)
	assert.Equal(t, "2024-02-05", tr.Last)

	points := strings.Fields(tr.Points)
	require.Len(t, points, 3)
	assert.Equal(t, "0.0,80.0", points[0])
	assert.Equal(t, "400.0,0.0", points[1])
	assert.Equal(t, "800.0,200.0", points[2])

	assert.Zero(t, trendView(nil).Days)
}

func TestNotice(t *testing.T) {
	html := render(t, Notice(""))
	assert.Equal(t, `<div id="notice"></div>`, html)

	html = render(t, Notice("Error loading file: bad. Showing sample data instead."))
	assert.Contains(t, html, `class="notice"`)
}

func TestDashboard_CustomTitleAndEmptyRange(t *testing.T) {
	a := services.NewAnalytics(nil, observability.NopLogger(), 100)
	snap := a.Snapshot(context.Background(), models.Table{}, models.DateRange{}, "test")

	html := render(t, Dashboard(PageData{Title: "Q1 <Review>", Snapshot: snap}))
	assert.Contains(t, html, "<title>Q1 &lt;Review&gt;</title>")
	assert.Contains(t, html, `data-signals="{&#34;startDate&#34;:&#34;&#34;,&#34;endDate&#34;:&#34;&#34;}"`)
	assert.Contains(t, html, `min="" max=""`)
	assert.Contains(t, html, "No data available for the selected date range.")
}

func TestComponents_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := testSnapshot()
	components := map[string]templ.Component{
		"dashboard": Dashboard(PageData{Snapshot: snap}),
		"kpis":      KPIs(snap),
		"trend":     SalesTrend(snap),
		"recent":    RecentTransactions(snap),
	}
	for name, c := range components {
		t.Run(name, func(t *testing.T) {
			out, err := RenderString(ctx, c)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Empty(t, out)
		})
	}
}

func TestRecentTransactions(t *testing.T) {
	html := render(t, RecentTransactions(testSnapshot()))

	assert.Contains(t, html, `<section id="recent-transactions" class="panel wide">`)
	assert.Contains(t, html, "<td>2024-02-05</td>")
	assert.Contains(t, html, "<td>1002</td>")
	assert.Contains(t, html, "<td>Denver</td>")
	assert.Contains(t, html, "<td>$30.00</td>")
}
