package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreset(t *testing.T) {
	tests := []struct {
		name        string
		preset      string
		wantName    string
		wantNewProb float64
		wantRegions int
		wantErr     bool
	}{
		{"default is standard", "", PresetStandard, 0.3, 20, false},
		{"standard", "standard", PresetStandard, 0.3, 20, false},
		{"premium case insensitive", " Premium ", PresetPremium, 0.4, 10, false},
		{"unknown", "deluxe", "", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Preset(tt.preset)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, c.Name)
			assert.Equal(t, tt.wantNewProb, c.NewCustomerProbability)
			assert.Len(t, c.Regions, tt.wantRegions)
			assert.NoError(t, c.Validate())
		})
	}
}

func TestCatalog_SeasonalMultiplier(t *testing.T) {
	std, _ := Preset(PresetStandard)
	prem, _ := Preset(PresetPremium)

	tests := []struct {
		month    time.Month
		standard float64
		premium  float64
	}{
		{time.January, 0.7, 0.6},
		{time.February, 0.7, 0.6},
		{time.March, 1.0, 1.0},
		{time.July, 1.0, 1.3},
		{time.November, 1.5, 1.8},
		{time.December, 1.5, 1.8},
	}

	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			assert.Equal(t, tt.standard, std.SeasonalMultiplier(tt.month))
			assert.Equal(t, tt.premium, prem.SeasonalMultiplier(tt.month))
		})
	}
}

func TestCatalog_QuantityWeightsSumToOne(t *testing.T) {
	for _, name := range []string{PresetStandard, PresetPremium} {
		c, err := Preset(name)
		require.NoError(t, err)

		var sum float64
		for _, q := range c.Quantities {
			sum += q.Weight
		}
		assert.InDelta(t, 1.0, sum, 1e-9, name)
	}
}

func TestCatalog_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Catalog)
	}{
		{"no categories", func(c *Catalog) { c.Categories = nil }},
		{"missing products", func(c *Catalog) { delete(c.Products, "Books") }},
		{"missing price range", func(c *Catalog) { delete(c.PriceRanges, "Books") }},
		{"inverted price range", func(c *Catalog) { c.PriceRanges["Books"] = PriceRange{Min: 10, Max: 5} }},
		{"no regions", func(c *Catalog) { c.Regions = nil }},
		{"zero weights", func(c *Catalog) { c.Quantities = []QuantityChoice{{Quantity: 1, Weight: 0}} }},
		{"probability above one", func(c *Catalog) { c.NewCustomerProbability = 1.5 }},
		{"zero base rate", func(c *Catalog) { c.BaseDailyTransactions = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := Preset(PresetStandard)
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestCatalog_Fingerprint(t *testing.T) {
	a, _ := Preset(PresetStandard)
	b, _ := Preset(PresetStandard)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	p, _ := Preset(PresetPremium)
	assert.NotEqual(t, a.Fingerprint(), p.Fingerprint())

	b.NewCustomerProbability = 0.31
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestLoad_YAMLOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `
regions: [OR, NV]
new_customer_probability: 0.5
weekend_multiplier: 1.1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := Load(PresetStandard, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"OR", "NV"}, c.Regions)
	assert.Equal(t, 0.5, c.NewCustomerProbability)
	assert.Equal(t, 1.1, c.WeekendMultiplier)
	assert.Len(t, c.Categories, 6, "fields absent from the file keep preset values")

	base, _ := Preset(PresetStandard)
	assert.NotEqual(t, base.Fingerprint(), c.Fingerprint())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(PresetStandard, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("new_customer_probability: 7\n"), 0o644))
	_, err = Load(PresetStandard, path)
	assert.Error(t, err)

	_, err = Load("nope", "")
	assert.Error(t, err)
}
