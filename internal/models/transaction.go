package models

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

type Transaction struct {
	Date             time.Time `json:"date"`
	ProductName      string    `json:"product_name"`
	Category         string    `json:"category"`
	Quantity         int       `json:"quantity"`
	UnitPrice        float64   `json:"unit_price"`
	TotalAmount      float64   `json:"total_amount"`
	CustomerID       int64     `json:"customer_id"`
	CustomerLocation string    `json:"customer_location"`

	// Derived from Date by Normalize; never authoritative.
	Month     string `json:"month"`
	Week      string `json:"week"`
	DayOfWeek string `json:"day_of_week"`
}

// Normalize truncates Date to the calendar day and rederives the period fields.
func (t *Transaction) Normalize() {
	t.Date = Day(t.Date)
	t.Month = t.Date.Format("2006-01")
	year, week := t.Date.ISOWeek()
	t.Week = fmt.Sprintf("%04d-W%02d", year, week)
	t.DayOfWeek = t.Date.Weekday().String()
}

// Day strips the time of day, keeping the calendar date as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Table is an ordered set of transactions. Tables are never mutated after
// they are built; every transformation returns a new Table.
type Table []Transaction

// DateBounds returns the earliest and latest dates in the table. ok is false
// for an empty table.
func (t Table) DateBounds() (minDate, maxDate time.Time, ok bool) {
	if len(t) == 0 {
		return time.Time{}, time.Time{}, false
	}
	minDate, maxDate = Day(t[0].Date), Day(t[0].Date)
	for _, tx := range t[1:] {
		d := Day(tx.Date)
		if d.Before(minDate) {
			minDate = d
		}
		if d.After(maxDate) {
			maxDate = d
		}
	}
	return minDate, maxDate, true
}

type KPISummary struct {
	TotalRevenue    float64 `json:"total_revenue"`
	TotalOrders     int     `json:"total_orders"`
	UniqueCustomers int     `json:"unique_customers"`
	AvgOrderValue   float64 `json:"avg_order_value"`
	MoMGrowth       float64 `json:"mom_growth"`
}

type DailySales struct {
	Date    time.Time `json:"date"`
	Revenue float64   `json:"revenue"`
}

type ProductRevenue struct {
	ProductName string  `json:"product_name"`
	Revenue     float64 `json:"revenue"`
}

type CategoryRevenue struct {
	Category string  `json:"category"`
	Revenue  float64 `json:"revenue"`
}

type RegionRevenue struct {
	Region  string  `json:"region"`
	Revenue float64 `json:"total_revenue"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
