package services

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"sales-dashboard/internal/catalog"
	"sales-dashboard/internal/config"
	"sales-dashboard/internal/generator"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

const cacheVersion = "v1"

// SampleKey identifies one generated dataset. Two equal keys always produce
// the same table.
type SampleKey struct {
	Seed    int64
	Start   string
	End     string
	Catalog string
}

func (k SampleKey) String() string {
	return fmt.Sprintf("%d_%s_%s_%s", k.Seed, k.Start, k.End, k.Catalog)
}

// SampleCache keeps recently generated sample tables in memory and,
// optionally, as gob files on disk. Concurrent misses for the same key
// generate once.
type SampleCache struct {
	mu       sync.RWMutex
	entries  map[SampleKey]models.Table
	order    []SampleKey
	capacity int
	dir      string
	group    singleflight.Group
	logger   *slog.Logger

	hits        atomic.Int64
	diskHits    atomic.Int64
	generations atomic.Int64
}

func NewSampleCache(capacity int, dir string, logger *slog.Logger) *SampleCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &SampleCache{
		entries:  make(map[SampleKey]models.Table),
		capacity: capacity,
		dir:      dir,
		logger:   logger,
	}
}

// Get returns the table cached under key, calling build when neither memory
// nor disk has it.
func (c *SampleCache) Get(key SampleKey, build func() models.Table) models.Table {
	if table, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return table
	}

	v, _, _ := c.group.Do(key.String(), func() (any, error) {
		if table, ok := c.lookup(key); ok {
			return table, nil
		}

		if table, err := c.loadFromDisk(key); err == nil {
			c.diskHits.Add(1)
			c.store(key, table)
			c.logger.Info("sample loaded from cache", "key", key.String(), "records", len(table))
			return table, nil
		}

		start := time.Now()
		table := build()
		c.generations.Add(1)
		c.store(key, table)
		c.logger.Info("sample generated",
			"key", key.String(),
			"records", len(table),
			"duration", time.Since(start),
		)

		if err := c.saveToDisk(key, table); err != nil {
			c.logger.Warn("failed to save cache", "error", err)
		}
		return table, nil
	})
	return v.(models.Table)
}

func (c *SampleCache) lookup(key SampleKey) (models.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	table, ok := c.entries[key]
	return table, ok
}

func (c *SampleCache) store(key SampleKey, table models.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}
	for len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = table
	c.order = append(c.order, key)
}

func (c *SampleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SampleCache) Stats() map[string]any {
	return map[string]any{
		"entries":     c.Len(),
		"hits":        c.hits.Load(),
		"disk_hits":   c.diskHits.Load(),
		"generations": c.generations.Load(),
	}
}

func (c *SampleCache) cacheFilename(key SampleKey) string {
	return filepath.Join(c.dir, fmt.Sprintf("sample_%s_%s.gob", key.String(), cacheVersion))
}

func (c *SampleCache) saveToDisk(key SampleKey, table models.Table) error {
	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, "sample-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(table); err != nil {
		tmp.Close()
		return fmt.Errorf("encode sample: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.cacheFilename(key))
}

func (c *SampleCache) loadFromDisk(key SampleKey) (models.Table, error) {
	if c.dir == "" {
		return nil, os.ErrNotExist
	}
	file, err := os.Open(c.cacheFilename(key))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var table models.Table
	if err := gob.NewDecoder(file).Decode(&table); err != nil {
		return nil, fmt.Errorf("decode sample: %w", err)
	}
	return table, nil
}

var ErrUnknownPreset = errors.New("unknown catalog preset")

// SampleSource produces the synthetic dataset for a preset, covering the
// configured number of days ending today.
type SampleSource struct {
	seed          int64
	spanDays      int
	defaultPreset string
	catalogs      map[string]*catalog.Catalog
	cache         *SampleCache
	metrics       *observability.Metrics
	logger        *slog.Logger
	now           func() time.Time
}

func NewSampleSource(cfg config.DataConfig, cache *SampleCache, metrics *observability.Metrics, logger *slog.Logger) (*SampleSource, error) {
	catalogs := make(map[string]*catalog.Catalog, 2)
	for _, name := range []string{catalog.PresetStandard, catalog.PresetPremium} {
		c, err := catalog.Load(name, cfg.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", name, err)
		}
		catalogs[name] = c
	}

	spanDays := cfg.SampleSpanDays
	if spanDays <= 0 {
		spanDays = generator.DefaultSpanDays
	}
	preset := cfg.SamplePreset
	if preset == "" {
		preset = catalog.PresetStandard
	}

	return &SampleSource{
		seed:          cfg.SampleSeed,
		spanDays:      spanDays,
		defaultPreset: preset,
		catalogs:      catalogs,
		cache:         cache,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (s *SampleSource) DefaultPreset() string {
	return s.defaultPreset
}

// Table returns the sample table for preset ("" selects the default) and the
// preset name actually used.
func (s *SampleSource) Table(ctx context.Context, preset string) (models.Table, string, error) {
	if preset == "" {
		preset = s.defaultPreset
	}
	c, ok := s.catalogs[preset]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownPreset, preset)
	}

	start, end := generator.SpanEnding(s.now(), s.spanDays)
	key := SampleKey{
		Seed:    s.seed,
		Start:   start.Format("20060102"),
		End:     end.Format("20060102"),
		Catalog: c.Fingerprint(),
	}

	table := s.cache.Get(key, func() models.Table {
		_, span := observability.StartSpan(ctx, "samples.generate")
		defer span.End()

		table := generator.Generate(generator.Params{Catalog: c, Start: start, End: end}, generator.NewRand(s.seed))
		if s.metrics != nil {
			s.metrics.RecordSampleGeneration(ctx, preset, len(table))
		}
		return table
	})
	return table, preset, nil
}
