// Package catalog holds the fixed product, price, region and behaviour
// tables that drive sample data generation.
package catalog

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v2"
)

const (
	PresetStandard = "standard"
	PresetPremium  = "premium"
)

type PriceRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type QuantityChoice struct {
	Quantity int     `yaml:"quantity"`
	Weight   float64 `yaml:"weight"`
}

// Season applies Multiplier to every day whose month is listed.
type Season struct {
	Months     []int   `yaml:"months"`
	Multiplier float64 `yaml:"multiplier"`
}

type Catalog struct {
	Name                   string                `yaml:"name"`
	Categories             []string              `yaml:"categories"`
	Products               map[string][]string   `yaml:"products"`
	PriceRanges            map[string]PriceRange `yaml:"price_ranges"`
	Regions                []string              `yaml:"regions"`
	Seasons                []Season              `yaml:"seasons"`
	WeekendMultiplier      float64               `yaml:"weekend_multiplier"`
	BaseDailyTransactions  float64               `yaml:"base_daily_transactions"`
	NoiseStdDev            float64               `yaml:"noise_stddev"`
	Quantities             []QuantityChoice      `yaml:"quantities"`
	NewCustomerProbability float64               `yaml:"new_customer_probability"`
	FirstCustomerID        int64                 `yaml:"first_customer_id"`
}

// SeasonalMultiplier returns the first matching season's multiplier, or 1.
func (c *Catalog) SeasonalMultiplier(month time.Month) float64 {
	for _, s := range c.Seasons {
		if slices.Contains(s.Months, int(month)) {
			return s.Multiplier
		}
	}
	return 1.0
}

func (c *Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("catalog %q: no categories", c.Name)
	}
	for _, cat := range c.Categories {
		if len(c.Products[cat]) == 0 {
			return fmt.Errorf("catalog %q: category %q has no products", c.Name, cat)
		}
		pr, ok := c.PriceRanges[cat]
		if !ok {
			return fmt.Errorf("catalog %q: category %q has no price range", c.Name, cat)
		}
		if pr.Min < 0 || pr.Max < pr.Min {
			return fmt.Errorf("catalog %q: category %q has invalid price range [%v, %v]", c.Name, cat, pr.Min, pr.Max)
		}
	}
	if len(c.Regions) == 0 {
		return fmt.Errorf("catalog %q: no regions", c.Name)
	}
	if len(c.Quantities) == 0 {
		return fmt.Errorf("catalog %q: no quantity choices", c.Name)
	}
	var total float64
	for _, q := range c.Quantities {
		if q.Quantity < 1 || q.Weight < 0 {
			return fmt.Errorf("catalog %q: invalid quantity choice %+v", c.Name, q)
		}
		total += q.Weight
	}
	if total <= 0 {
		return fmt.Errorf("catalog %q: quantity weights sum to zero", c.Name)
	}
	if c.NewCustomerProbability < 0 || c.NewCustomerProbability > 1 {
		return fmt.Errorf("catalog %q: new customer probability %v out of [0,1]", c.Name, c.NewCustomerProbability)
	}
	if c.BaseDailyTransactions <= 0 {
		return fmt.Errorf("catalog %q: base daily transactions must be positive", c.Name)
	}
	if c.NoiseStdDev < 0 || c.WeekendMultiplier <= 0 {
		return fmt.Errorf("catalog %q: invalid noise or weekend multiplier", c.Name)
	}
	return nil
}

// Fingerprint identifies the catalog contents. Two catalogs with the same
// fingerprint generate identical tables for the same seed and span.
func (c *Catalog) Fingerprint() string {
	var b strings.Builder
	b.WriteString(c.Name)
	for _, cat := range c.Categories {
		pr := c.PriceRanges[cat]
		fmt.Fprintf(&b, "|%s:%s:%v-%v", cat, strings.Join(c.Products[cat], ","), pr.Min, pr.Max)
	}
	fmt.Fprintf(&b, "|%s", strings.Join(c.Regions, ","))
	for _, s := range c.Seasons {
		fmt.Fprintf(&b, "|%v@%v", s.Months, s.Multiplier)
	}
	for _, q := range c.Quantities {
		fmt.Fprintf(&b, "|q%d@%v", q.Quantity, q.Weight)
	}
	fmt.Fprintf(&b, "|%v|%v|%v|%v|%d",
		c.WeekendMultiplier, c.BaseDailyTransactions, c.NoiseStdDev, c.NewCustomerProbability, c.FirstCustomerID)
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// Preset returns a fresh copy of a built-in catalog.
func Preset(name string) (*Catalog, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PresetStandard, "":
		return standard(), nil
	case PresetPremium:
		return premium(), nil
	default:
		return nil, fmt.Errorf("unknown catalog preset %q", name)
	}
}

// Load returns the named preset, overridden by the YAML file at path when
// path is non-empty. Fields absent from the file keep the preset's values.
func Load(preset, path string) (*Catalog, error) {
	c, err := Preset(preset)
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

var sampleCategories = []string{"Electronics", "Clothing", "Home & Garden", "Sports", "Books", "Beauty"}

func standard() *Catalog {
	return &Catalog{
		Name:       PresetStandard,
		Categories: slices.Clone(sampleCategories),
		Products: map[string][]string{
			"Electronics":   {"Smartphone", "Laptop", "Headphones", "Tablet", "Smart Watch"},
			"Clothing":      {"T-Shirt", "Jeans", "Sneakers", "Jacket", "Dress"},
			"Home & Garden": {"Coffee Maker", "Plant Pot", "Bed Sheets", "Lamp", "Vacuum"},
			"Sports":        {"Running Shoes", "Yoga Mat", "Dumbbell", "Basketball", "Bicycle"},
			"Books":         {"Fiction Novel", "Cookbook", "Self-Help", "Biography", "Textbook"},
			"Beauty":        {"Moisturizer", "Lipstick", "Shampoo", "Sunscreen", "Perfume"},
		},
		PriceRanges: map[string]PriceRange{
			"Electronics":   {50, 1200},
			"Clothing":      {15, 150},
			"Home & Garden": {10, 300},
			"Sports":        {20, 400},
			"Books":         {8, 50},
			"Beauty":        {5, 80},
		},
		Regions: []string{
			"CA", "TX", "FL", "NY", "PA", "IL", "OH", "GA", "NC", "MI",
			"NJ", "VA", "WA", "AZ", "MA", "TN", "IN", "MO", "MD", "WI",
		},
		Seasons: []Season{
			{Months: []int{11, 12}, Multiplier: 1.5},
			{Months: []int{1, 2}, Multiplier: 0.7},
		},
		WeekendMultiplier:     1.2,
		BaseDailyTransactions: 15,
		NoiseStdDev:           0.3,
		Quantities: []QuantityChoice{
			{1, 0.6}, {1, 0.1}, {1, 0.1}, {2, 0.15}, {2, 0.04}, {3, 0.01},
		},
		NewCustomerProbability: 0.3,
		FirstCustomerID:        1000,
	}
}

func premium() *Catalog {
	return &Catalog{
		Name:       PresetPremium,
		Categories: slices.Clone(sampleCategories),
		Products: map[string][]string{
			"Electronics":   {"iPhone 15", "MacBook Pro", "AirPods", "iPad", "Apple Watch"},
			"Clothing":      {"Premium T-Shirt", "Designer Jeans", "Running Shoes", "Winter Jacket", "Summer Dress"},
			"Home & Garden": {"Coffee Maker", "Plant Pot Set", "Bed Sheets", "Table Lamp", "Robot Vacuum"},
			"Sports":        {"Running Shoes", "Yoga Mat", "Dumbbell Set", "Basketball", "Mountain Bike"},
			"Books":         {"Bestseller Novel", "Cookbook", "Self-Help Guide", "Biography", "Programming Book"},
			"Beauty":        {"Anti-Aging Cream", "Lipstick Set", "Shampoo", "Sunscreen", "Perfume"},
		},
		PriceRanges: map[string]PriceRange{
			"Electronics":   {99, 2499},
			"Clothing":      {19, 299},
			"Home & Garden": {15, 599},
			"Sports":        {25, 899},
			"Books":         {9, 79},
			"Beauty":        {12, 149},
		},
		Regions: []string{"CA", "TX", "FL", "NY", "PA", "IL", "OH", "GA", "NC", "MI"},
		Seasons: []Season{
			{Months: []int{11, 12}, Multiplier: 1.8},
			{Months: []int{1, 2}, Multiplier: 0.6},
			{Months: []int{6, 7, 8}, Multiplier: 1.3},
		},
		WeekendMultiplier:     1.4,
		BaseDailyTransactions: 20,
		NoiseStdDev:           0.2,
		Quantities: []QuantityChoice{
			{1, 0.65}, {1, 0.1}, {1, 0.1}, {2, 0.12}, {2, 0.02}, {3, 0.01},
		},
		NewCustomerProbability: 0.4,
		FirstCustomerID:        1000,
	}
}
