package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/catalog"
	"sales-dashboard/internal/config"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

func testDataConfig() config.DataConfig {
	return config.DataConfig{
		SampleSeed:      42,
		SamplePreset:    catalog.PresetStandard,
		SampleSpanDays:  30,
		SessionTTL:      time.Hour,
		RecentRows:      100,
		SampleCacheSize: 2,
	}
}

func newTestSampleSource(t *testing.T, dir string, now time.Time) *SampleSource {
	t.Helper()
	logger := observability.NopLogger()
	src, err := NewSampleSource(testDataConfig(), NewSampleCache(2, dir, logger), nil, logger)
	require.NoError(t, err)
	src.now = func() time.Time { return now }
	return src
}

func TestSampleCache_SingleflightGeneratesOnce(t *testing.T) {
	cache := NewSampleCache(4, "", observability.NopLogger())
	key := SampleKey{Seed: 1, Start: "20240101", End: "20240131", Catalog: "abc"}

	var builds atomic.Int32
	build := func() models.Table {
		builds.Add(1)
		time.Sleep(10 * time.Millisecond)
		return models.Table{{ProductName: "x"}}
	}

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table := cache.Get(key, build)
			assert.Len(t, table, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	assert.Equal(t, int64(1), cache.Stats()["generations"])
}

func TestSampleCache_EvictsOldest(t *testing.T) {
	cache := NewSampleCache(2, "", observability.NopLogger())
	build := func() models.Table { return models.Table{} }

	k1 := SampleKey{Seed: 1}
	k2 := SampleKey{Seed: 2}
	k3 := SampleKey{Seed: 3}
	cache.Get(k1, build)
	cache.Get(k2, build)
	cache.Get(k3, build)

	assert.Equal(t, 2, cache.Len())
	_, ok := cache.lookup(k1)
	assert.False(t, ok)
	_, ok = cache.lookup(k3)
	assert.True(t, ok)
}

func TestSampleCache_DiskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	key := SampleKey{Seed: 7, Start: "20240101", End: "20240102", Catalog: "f00"}
	want := models.Table{tx(day(2024, 1, 1), "Laptop", "Electronics", "CA", 1000, 12.5)}

	first := NewSampleCache(1, dir, observability.NopLogger())
	first.Get(key, func() models.Table { return want })

	second := NewSampleCache(1, dir, observability.NopLogger())
	got := second.Get(key, func() models.Table {
		t.Fatal("build must not run when the disk cache has the key")
		return nil
	})

	assert.Equal(t, want, got)
	assert.Equal(t, int64(1), second.Stats()["disk_hits"])
}

func TestSampleSource_Table(t *testing.T) {
	now := time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)
	src := newTestSampleSource(t, "", now)

	a, preset, err := src.Table(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, catalog.PresetStandard, preset)

	minDate, maxDate, ok := a.DateBounds()
	require.True(t, ok)
	assert.Equal(t, day(2024, 5, 31), minDate)
	assert.Equal(t, day(2024, 6, 30), maxDate)

	b, _, err := src.Table(context.Background(), catalog.PresetStandard)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, int64(1), src.cache.Stats()["generations"])

	_, preset, err = src.Table(context.Background(), catalog.PresetPremium)
	require.NoError(t, err)
	assert.Equal(t, catalog.PresetPremium, preset)
	assert.Equal(t, int64(2), src.cache.Stats()["generations"])
}

func TestSampleSource_DateRollover(t *testing.T) {
	now := time.Date(2024, 6, 30, 23, 0, 0, 0, time.UTC)
	src := newTestSampleSource(t, "", now)

	_, _, err := src.Table(context.Background(), "")
	require.NoError(t, err)

	src.now = func() time.Time { return now.Add(2 * time.Hour) }
	table, _, err := src.Table(context.Background(), "")
	require.NoError(t, err)

	_, maxDate, _ := table.DateBounds()
	assert.Equal(t, day(2024, 7, 1), maxDate)
	assert.Equal(t, int64(2), src.cache.Stats()["generations"])
}

func TestSampleSource_UnknownPreset(t *testing.T) {
	src := newTestSampleSource(t, "", time.Now())
	_, _, err := src.Table(context.Background(), "deluxe")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Put(Session{ID: "a", Source: SourceSample})
	store.Put(Session{ID: "b", Source: SourceUpload})

	s, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, SourceSample, s.Source)
	assert.Equal(t, 2, store.Len())

	// "a" is touched at +50m, "b" is not.
	now = now.Add(50 * time.Minute)
	_, ok = store.Get("a")
	require.True(t, ok)

	now = now.Add(20 * time.Minute)
	_, ok = store.Get("b")
	assert.False(t, ok, "idle session expires")
	_, ok = store.Get("a")
	assert.True(t, ok)

	store.Delete("a")
	assert.Zero(t, store.Len())
}

func TestSessionStore_ExpiresBetweenSweeps(t *testing.T) {
	store := NewSessionStore(time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Put(Session{ID: "a"})

	// A sweep at +50m finds nothing idle and holds off the next one until
	// +65m.
	now = now.Add(50 * time.Minute)
	store.Put(Session{ID: "b"})

	now = now.Add(11 * time.Minute)
	_, ok := store.Get("a")
	assert.False(t, ok, "a has been idle for 61m")
	_, ok = store.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 1, store.Len())
}

func newTestDashboard(t *testing.T) *Dashboard {
	t.Helper()
	logger := observability.NopLogger()
	src := newTestSampleSource(t, "", time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC))
	return NewDashboard(src, NewSessionStore(time.Hour), NewAnalytics(nil, logger, 0), nil, logger)
}

func TestDashboard_NewSessionStartsOnSample(t *testing.T) {
	d := newTestDashboard(t)

	s, err := d.Session(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, SourceSample, s.Source)
	assert.Equal(t, catalog.PresetStandard, s.Name)
	assert.NotEmpty(t, s.Table)
	assert.Equal(t, 1, d.Stats()["sessions"])
}

func TestDashboard_UploadAccepted(t *testing.T) {
	d := newTestDashboard(t)
	csv := "date,product_name,category,quantity,unit_price,total_amount,customer_id,customer_location\n" +
		"2024-01-01,Laptop,Electronics,1,10,10,1000,CA\n" +
		"2024-01-02,Mouse,Electronics,x,5,5,1001,TX\n"

	out, err := d.Upload(context.Background(), "sess-1", "sales.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.Equal(t, 2, out.Records)
	assert.Contains(t, out.Notice, "1 numeric cells")

	s, err := d.Session(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, SourceUpload, s.Source)
	assert.Equal(t, "sales.csv", s.Name)
	assert.Len(t, s.Table, 2)
}

func TestDashboard_UploadFallsBackToSample(t *testing.T) {
	d := newTestDashboard(t)
	csv := "day,product_name\n2024-01-01,Laptop\n"

	out, err := d.Upload(context.Background(), "sess-1", "sales.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Contains(t, out.Notice, "Error loading file")
	assert.Contains(t, out.Notice, `column "date"`)
	assert.Equal(t, SourceSample, out.Session.Source)

	s, err := d.Session(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, out.Notice, s.Notice)
	assert.NotEmpty(t, s.Table)
}

func TestDashboard_UseSampleResetsUpload(t *testing.T) {
	d := newTestDashboard(t)
	csv := "date,product_name,category,quantity,unit_price,total_amount,customer_id,customer_location\n" +
		"2024-01-01,Laptop,Electronics,1,10,10,1000,CA\n"
	_, err := d.Upload(context.Background(), "sess-1", "sales.csv", strings.NewReader(csv))
	require.NoError(t, err)

	s, err := d.UseSample(context.Background(), "sess-1", catalog.PresetPremium)
	require.NoError(t, err)
	assert.Equal(t, SourceSample, s.Source)
	assert.Equal(t, catalog.PresetPremium, s.Name)
	assert.Empty(t, s.Notice)
}
