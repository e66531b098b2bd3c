package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8084", cfg.Address())
	assert.Equal(t, int64(42), cfg.Data.SampleSeed)
	assert.Equal(t, "standard", cfg.Data.SamplePreset)
	assert.Equal(t, 365, cfg.Data.SampleSpanDays)
	assert.Equal(t, int64(200<<20), cfg.MaxUploadBytes())
	assert.Equal(t, 2*time.Hour, cfg.Data.SessionTTL)
	assert.Equal(t, 100, cfg.Data.RecentRows)
	assert.Equal(t, "fpdf", cfg.Report.PDFRenderer)
	assert.True(t, cfg.Telemetry.MetricsEnabled)
	assert.Equal(t, []string{"127.0.0.1"}, cfg.Security.TrustedProxies)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATA_SAMPLE_PRESET", "premium")
	t.Setenv("DATA_MAX_UPLOAD_MB", "5")
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "premium", cfg.Data.SamplePreset)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, ".env"), "DATA_SAMPLE_SEED=99\nLOG_LEVEL=debug\n")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(99), cfg.Data.SampleSeed)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port out of range", "SERVER_PORT", "70000"},
		{"unknown preset", "DATA_SAMPLE_PRESET", "deluxe"},
		{"zero span", "DATA_SAMPLE_SPAN_DAYS", "0"},
		{"bad renderer", "REPORT_PDF_RENDERER", "latex"},
		{"bad trace exporter", "TELEMETRY_TRACE_EXPORTER", "jaeger"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"missing catalog file", "DATA_CATALOG_FILE", "/no/such/catalog.yaml"},
		{"zero session ttl", "DATA_SESSION_TTL", "0s"},
		{"not a number", "DATA_SAMPLE_SEED", "forty-two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
