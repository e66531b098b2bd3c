// Package generator builds synthetic e-commerce transaction tables with
// seasonal demand, weekend boosts and a new-versus-returning customer mix.
//
// Generation is a pure function of its Params and the supplied random
// source: the same seed, span and catalog always yield the same table.
package generator

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/catalog"
	"sales-dashboard/internal/models"
)

// DefaultSpanDays is the length of the default span ending today.
const DefaultSpanDays = 365

type Params struct {
	Catalog *catalog.Catalog
	// Start and End are inclusive calendar days.
	Start time.Time
	End   time.Time
}

// DefaultSpan returns the span of DefaultSpanDays days ending on now's date.
func DefaultSpan(now time.Time) (start, end time.Time) {
	return SpanEnding(now, DefaultSpanDays)
}

// SpanEnding returns [end-days, end] truncated to calendar days.
func SpanEnding(now time.Time, days int) (start, end time.Time) {
	end = models.Day(now)
	return end.AddDate(0, 0, -days), end
}

// NewRand returns a deterministic random source for seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x5bd1e995))
}

// Generate produces the transaction table for every day in the span, in
// chronological order.
func Generate(p Params, rng *rand.Rand) models.Table {
	c := p.Catalog
	start, end := models.Day(p.Start), models.Day(p.End)
	if end.Before(start) {
		return models.Table{}
	}

	days := int(end.Sub(start).Hours()/24) + 1
	table := make(models.Table, 0, days*int(c.BaseDailyTransactions))
	customers := newCustomerPool(c.FirstCustomerID, c.NewCustomerProbability)

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		n := DailyTransactionCount(c, day, rng)
		for range n {
			table = append(table, drawTransaction(c, day, rng, customers))
		}
	}
	return table
}

// DailyTransactionCount draws the number of transactions for day. The result
// is always at least one.
func DailyTransactionCount(c *catalog.Catalog, day time.Time, rng *rand.Rand) int {
	weekend := 1.0
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		weekend = c.WeekendMultiplier
	}
	noise := 1 + rng.NormFloat64()*c.NoiseStdDev
	n := int(math.Round(c.BaseDailyTransactions * c.SeasonalMultiplier(day.Month()) * weekend * noise))
	return max(1, n)
}

func drawTransaction(c *catalog.Catalog, day time.Time, rng *rand.Rand, customers *customerPool) models.Transaction {
	category := c.Categories[rng.IntN(len(c.Categories))]
	products := c.Products[category]
	product := products[rng.IntN(len(products))]

	pr := c.PriceRanges[category]
	unitPrice := decimal.NewFromFloat(pr.Min + rng.Float64()*(pr.Max-pr.Min)).Round(2)
	quantity := drawQuantity(c.Quantities, rng)
	total := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)

	tx := models.Transaction{
		Date:             day,
		ProductName:      product,
		Category:         category,
		Quantity:         quantity,
		UnitPrice:        unitPrice.InexactFloat64(),
		TotalAmount:      total.InexactFloat64(),
		CustomerID:       customers.next(rng),
		CustomerLocation: c.Regions[rng.IntN(len(c.Regions))],
	}
	tx.Normalize()
	return tx
}

func drawQuantity(choices []catalog.QuantityChoice, rng *rand.Rand) int {
	var total float64
	for _, q := range choices {
		total += q.Weight
	}
	r := rng.Float64() * total
	for _, q := range choices {
		if r < q.Weight {
			return q.Quantity
		}
		r -= q.Weight
	}
	return choices[len(choices)-1].Quantity
}

// customerPool mints sequential ids and hands out previously minted ones to
// returning customers. An id is only eligible for reuse once it was minted.
type customerPool struct {
	nextID  int64
	firstID int64
	newProb float64
}

func newCustomerPool(firstID int64, newProb float64) *customerPool {
	return &customerPool{nextID: firstID, firstID: firstID, newProb: newProb}
}

func (p *customerPool) next(rng *rand.Rand) int64 {
	minted := p.nextID - p.firstID
	if rng.Float64() < p.newProb || minted == 0 {
		id := p.nextID
		p.nextID++
		return id
	}
	return p.firstID + rng.Int64N(minted)
}
