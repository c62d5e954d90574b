package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ridopark/algoreplay/pkg/backtester"
	"github.com/ridopark/algoreplay/pkg/logging"
)

// Data sources
const (
	SourcePostgres = "postgres"
	SourceParquet  = "parquet"
)

// ErrInvalid is returned by Validate
var ErrInvalid = errors.New("invalid config")

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the backtester
type Config struct {
	Logging  logging.Config `yaml:"logging"`
	Database Database       `yaml:"database"`
	Data     Data           `yaml:"data"`
	Backtest Backtest       `yaml:"backtest"`
	Publish  Publish        `yaml:"publish"`
}

// Database holds the TimescaleDB connection settings. DSN wins over the
// individual fields when set.
type Database struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// Data selects and configures the historical bar source
type Data struct {
	Source        string `yaml:"source"`
	ParquetDir    string `yaml:"parquet_dir"`
	Market        string `yaml:"market"`
	Lookback      int    `yaml:"lookback"`
	IncludeMinute bool   `yaml:"include_minute"`
}

// Backtest holds the run and strategy parameters
type Backtest struct {
	Strategy     string   `yaml:"strategy"`
	Tickers      []string `yaml:"tickers"`
	Balance      float64  `yaml:"balance"`
	Commission   float64  `yaml:"commission"`
	BuyShares    int64    `yaml:"buy_shares"`
	RaiseOnError bool     `yaml:"raise_on_error"`
	RecordIdle   bool     `yaml:"record_idle"`
	Parallelism  int      `yaml:"parallelism"`
	ShortPeriod  int      `yaml:"short_period"`
	LongPeriod   int      `yaml:"long_period"`
}

// Publish configures where run artifacts are stored
type Publish struct {
	Label              string `yaml:"label"`
	Compress           bool   `yaml:"compress"`
	StoreInputs        bool   `yaml:"store_inputs"`
	FileEnabled        bool   `yaml:"file_enabled"`
	OutputDir          string `yaml:"output_dir"`
	CacheEnabled       bool   `yaml:"cache_enabled"`
	CachePath          string `yaml:"cache_path"`
	ObjectStoreEnabled bool   `yaml:"object_store_enabled"`
	BucketDir          string `yaml:"bucket_dir"`
	NotifyEnabled      bool   `yaml:"notify_enabled"`
	WebhookURL         string `yaml:"webhook_url"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
}

// Default returns a complete configuration
func Default() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Database: Database{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "trading_data",
			SSLMode: "disable",
		},
		Data: Data{
			Source:     SourcePostgres,
			ParquetDir: "data",
			Market:     "us",
			Lookback:   60,
		},
		Backtest: Backtest{
			Strategy:    "base",
			Tickers:     []string{"SPY"},
			Balance:     10000,
			Commission:  6,
			BuyShares:   100,
			RecordIdle:  true,
			Parallelism: 4,
			ShortPeriod: 5,
			LongPeriod:  20,
		},
		Publish: Publish{
			Label:          "backtest",
			FileEnabled:    true,
			OutputDir:      "results",
			CachePath:      "results/cache.db",
			BucketDir:      "results/bucket",
			TimeoutSeconds: 10,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at path over the defaults and then
// applies environment variable overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = logging.LogLevel(v)
	}
	if v, ok := envBool("DEBUG_ENGINE"); ok && v {
		cfg.Logging.Level = logging.LevelDebug
	}
	if v, ok := envBool("LOG_PRETTY"); ok {
		cfg.Logging.Pretty = v
	}
	if v, ok := envBool("LOG_TO_FILE"); ok {
		cfg.Logging.EnableFile = v
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.Logging.LogDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.LogFileName = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database.Name = v
	}

	if v := os.Getenv("DATA_SOURCE"); v != "" {
		cfg.Data.Source = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Data.ParquetDir = v
	}

	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Publish.OutputDir = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Publish.WebhookURL = v
	}
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return parsed, true
}

// ---------------------------------------------------------------------------
// Validation and accessors
// ---------------------------------------------------------------------------

// Validate rejects configurations the backtester cannot run with
func (c *Config) Validate() error {
	var errs []error

	switch c.Data.Source {
	case SourcePostgres:
	case SourceParquet:
		if c.Data.ParquetDir == "" {
			errs = append(errs, errors.New("data.parquet_dir is required for the parquet source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown data.source %q", c.Data.Source))
	}
	if c.Data.Lookback < 1 {
		errs = append(errs, fmt.Errorf("data.lookback must be positive, got %d", c.Data.Lookback))
	}

	b := c.Backtest
	if b.Balance < 0 {
		errs = append(errs, fmt.Errorf("backtest.balance %v is negative", b.Balance))
	}
	if b.Commission < 0 {
		errs = append(errs, fmt.Errorf("backtest.commission %v is negative", b.Commission))
	}
	if b.BuyShares <= 0 {
		errs = append(errs, fmt.Errorf("backtest.buy_shares must be positive, got %d", b.BuyShares))
	}
	if len(b.Tickers) == 0 {
		errs = append(errs, errors.New("backtest.tickers is empty"))
	}
	if b.ShortPeriod < 1 || b.LongPeriod <= b.ShortPeriod {
		errs = append(errs, fmt.Errorf("backtest periods must satisfy 0 < short < long, got %d/%d", b.ShortPeriod, b.LongPeriod))
	}

	p := c.Publish
	if p.FileEnabled && p.OutputDir == "" {
		errs = append(errs, errors.New("publish.output_dir is required when file output is enabled"))
	}
	if p.CacheEnabled && p.CachePath == "" {
		errs = append(errs, errors.New("publish.cache_path is required when the cache is enabled"))
	}
	if p.ObjectStoreEnabled && p.BucketDir == "" {
		errs = append(errs, errors.New("publish.bucket_dir is required when the object store is enabled"))
	}
	if p.NotifyEnabled {
		if u, err := url.Parse(p.WebhookURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("publish.webhook_url %q is not a valid URL", p.WebhookURL))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ConnectionString returns the lib/pq connection string
func (d Database) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// BalanceDecimal returns the starting balance as a decimal
func (b Backtest) BalanceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(b.Balance)
}

// CommissionDecimal returns the per-trade commission as a decimal
func (b Backtest) CommissionDecimal() decimal.Decimal {
	return decimal.NewFromFloat(b.Commission)
}

// NormalizedTickers returns the tickers upper-cased, trimmed and deduplicated
func (b Backtest) NormalizedTickers() []string {
	seen := make(map[string]bool, len(b.Tickers))
	out := make([]string, 0, len(b.Tickers))
	for _, t := range b.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// InputsLabel returns the label prefix for stored input snapshots, or ""
// when inputs are not stored
func (p Publish) InputsLabel() string {
	if !p.StoreInputs {
		return ""
	}
	label := p.Label
	if label == "" {
		label = "backtest"
	}
	return label + "_inputs"
}

// Destinations returns the enabled artifact destinations
func (p Publish) Destinations() backtester.Destinations {
	return backtester.Destinations{
		File:        p.FileEnabled,
		Cache:       p.CacheEnabled,
		ObjectStore: p.ObjectStoreEnabled,
		Notify:      p.NotifyEnabled,
	}
}
