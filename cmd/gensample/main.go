// Command gensample writes a synthetic sales table to a CSV or XLSX file.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sales-dashboard/internal/catalog"
	"sales-dashboard/internal/generator"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/report"
)

type options struct {
	seed    int64
	preset  string
	days    int
	out     string
	catalog string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("gensample", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Int64Var(&o.seed, "seed", 42, "random seed")
	fs.StringVar(&o.preset, "preset", catalog.PresetStandard, "catalog preset (standard or premium)")
	fs.IntVar(&o.days, "days", generator.DefaultSpanDays, "number of days before today to cover")
	fs.StringVar(&o.out, "out", "sample_data.csv", "output file, .csv or .xlsx")
	fs.StringVar(&o.catalog, "catalog", "", "optional YAML catalog overriding the preset")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.days < 0 {
		return o, fmt.Errorf("days must not be negative, got %d", o.days)
	}
	return o, nil
}

// run generates the table ending on now's date and writes it to o.out.
func run(o options, now time.Time, stdout io.Writer) (int, error) {
	c, err := catalog.Load(o.preset, o.catalog)
	if err != nil {
		return 0, err
	}

	start, end := generator.SpanEnding(now, o.days)
	table := generator.Generate(generator.Params{Catalog: c, Start: start, End: end}, generator.NewRand(o.seed))

	if err := writeTable(o.out, table); err != nil {
		return 0, err
	}
	fmt.Fprintf(stdout, "Generated %d records in %s\n", len(table), o.out)
	return len(table), nil
}

func writeTable(path string, table models.Table) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return report.WriteXLSX(f, table)
	default:
		return report.WriteCSV(f, table)
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		logger.Error("invalid arguments", "error", err)
		os.Exit(2)
	}

	start := time.Now()
	n, err := run(o, start, os.Stdout)
	if err != nil {
		logger.Error("failed to generate sample data", "error", err)
		os.Exit(1)
	}
	logger.Debug("sample data written", "records", n, "duration", time.Since(start))
}
