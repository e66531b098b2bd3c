package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig    `envconfig:"SERVER"`
	Data      DataConfig      `envconfig:"DATA"`
	Logger    LoggerConfig    `envconfig:"LOG"`
	Security  SecurityConfig  `envconfig:"SECURITY"`
	Telemetry TelemetryConfig `envconfig:"TELEMETRY"`
	Report    ReportConfig    `envconfig:"REPORT"`
}

type ServerConfig struct {
	Host            string        `envconfig:"HOST" default:"localhost"`
	Port            int           `envconfig:"PORT" default:"8084" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

type DataConfig struct {
	SampleSeed      int64         `envconfig:"SAMPLE_SEED" default:"42"`
	SamplePreset    string        `envconfig:"SAMPLE_PRESET" default:"standard" validate:"oneof=standard premium"`
	SampleSpanDays  int           `envconfig:"SAMPLE_SPAN_DAYS" default:"365" validate:"min=1,max=3660"`
	CatalogFile     string        `envconfig:"CATALOG_FILE"`
	MaxUploadMB     int64         `envconfig:"MAX_UPLOAD_MB" default:"200" validate:"min=1"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"2h"`
	RecentRows      int           `envconfig:"RECENT_ROWS" default:"100" validate:"min=1"`
	SampleCacheSize int           `envconfig:"SAMPLE_CACHE_SIZE" default:"4" validate:"min=1"`
	// CacheDir persists generated sample tables across restarts. Empty
	// disables the disk cache.
	CacheDir string `envconfig:"CACHE_DIR" default:".cache"`
}

type LoggerConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

type SecurityConfig struct {
	EnableCSRF      bool     `envconfig:"CSRF_ENABLED" default:"true"`
	EnableRateLimit bool     `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RateLimitRPS    int      `envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst  int      `envconfig:"RATE_LIMIT_BURST" default:"20"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8084"`
	TrustedProxies  []string `envconfig:"TRUSTED_PROXIES" default:"127.0.0.1"`
}

type TelemetryConfig struct {
	ServiceName    string `envconfig:"SERVICE_NAME" default:"sales-dashboard"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	TraceExporter  string `envconfig:"TRACE_EXPORTER" default:"none" validate:"oneof=stdout none"`
}

type ReportConfig struct {
	PDFRenderer string `envconfig:"PDF_RENDERER" default:"fpdf" validate:"oneof=fpdf chrome"`
	// ChromeTimeout bounds a single headless Chrome render.
	ChromeTimeout time.Duration `envconfig:"CHROME_TIMEOUT" default:"20s"`
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over .env values.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Data.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.Data.CatalogFile != "" {
		if _, err := os.Stat(c.Data.CatalogFile); err != nil {
			return fmt.Errorf("catalog file: %w", err)
		}
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxUploadBytes is the upload size cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Data.MaxUploadMB << 20
}
