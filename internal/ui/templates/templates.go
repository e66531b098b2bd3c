// Package templates renders the dashboard page and the fragments patched
// into it over SSE.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.943 generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

const (
	trendWidth  = 800
	trendHeight = 240
)

// Fragment ids. SSE patches replace the element with the same id.
const (
	IDKPIs        = "kpis"
	IDSalesTrend  = "sales-trend"
	IDTopProducts = "top-products"
	IDCategories  = "categories"
	IDTopRegions  = "top-regions"
	IDRecent      = "recent-transactions"
	IDNotice      = "notice"
)

type PageData struct {
	Title    string
	Snapshot *services.Snapshot
	Session  services.Session
}

func (p PageData) title() string {
	if p.Title == "" {
		return "E-commerce Sales Dashboard"
	}
	return p.Title
}

func formatRangeDate(r models.DateRange, end bool) string {
	t := r.Start
	if end {
		t = r.End
	}
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}

type dateSignalSet struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// dateSignals seeds the datastar date signals with the applied range.
func dateSignals(r models.DateRange) (string, error) {
	return templ.JSONString(dateSignalSet{
		StartDate: formatRangeDate(r, false),
		EndDate:   formatRangeDate(r, true),
	})
}

func growthClass(v float64) string {
	if v < 0 {
		return "negative"
	}
	return "positive"
}

// RenderString renders c for an SSE element patch.
func RenderString(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type bar struct {
	Label   string
	Revenue float64
	// Width is the bar length as a percentage of the largest bar.
	Width float64
}

func (b bar) style() string {
	return fmt.Sprintf("width: %.1f%%;", b.Width)
}

type barList struct {
	ID    string
	Title string
	Bars  []bar
}

func productSection(s *services.Snapshot) barList {
	return barList{ID: IDTopProducts, Title: "Top Products by Revenue", Bars: productBars(s)}
}

func categorySection(s *services.Snapshot) barList {
	return barList{ID: IDCategories, Title: "Sales by Category", Bars: categoryBars(s)}
}

func regionSection(s *services.Snapshot) barList {
	return barList{ID: IDTopRegions, Title: "Top Regions by Revenue", Bars: regionBars(s)}
}

func scaleBars(bars []bar) []bar {
	var peak float64
	for _, b := range bars {
		peak = max(peak, b.Revenue)
	}
	for i := range bars {
		if peak > 0 {
			bars[i].Width = bars[i].Revenue / peak * 100
		}
	}
	return bars
}

func productBars(s *services.Snapshot) []bar {
	if s == nil {
		return nil
	}
	bars := make([]bar, len(s.TopProducts))
	for i, p := range s.TopProducts {
		bars[i] = bar{Label: p.ProductName, Revenue: p.Revenue}
	}
	return scaleBars(bars)
}

func categoryBars(s *services.Snapshot) []bar {
	if s == nil {
		return nil
	}
	bars := make([]bar, len(s.Categories))
	for i, c := range s.Categories {
		bars[i] = bar{Label: c.Category, Revenue: c.Revenue}
	}
	return scaleBars(bars)
}

func regionBars(s *services.Snapshot) []bar {
	if s == nil {
		return nil
	}
	bars := make([]bar, len(s.TopRegions))
	for i, r := range s.TopRegions {
		bars[i] = bar{Label: r.Region, Revenue: r.Revenue}
	}
	return scaleBars(bars)
}

type trend struct {
	Points string
	Days   int
	Peak   float64
	First  string
	Last   string
	Width  int
	Height int
}

func (t trend) viewBox() string {
	return fmt.Sprintf("0 0 %d %d", t.Width, t.Height)
}

// trendView lays the daily series out as an SVG polyline.
func trendView(s *services.Snapshot) trend {
	t := trend{Width: trendWidth, Height: trendHeight}
	if s == nil || len(s.SalesByDate) == 0 {
		return t
	}
	days := s.SalesByDate
	for _, d := range days {
		t.Peak = max(t.Peak, d.Revenue)
	}

	var sb strings.Builder
	for i, d := range days {
		x := 0.0
		if len(days) > 1 {
			x = float64(i) / float64(len(days)-1) * trendWidth
		}
		y := float64(trendHeight)
		if t.Peak > 0 {
			y = trendHeight - d.Revenue/t.Peak*trendHeight
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
	}
	t.Points = sb.String()
	t.Days = len(days)
	t.First = days[0].Date.Format(models.DateLayout)
	t.Last = days[len(days)-1].Date.Format(models.DateLayout)
	return t
}
