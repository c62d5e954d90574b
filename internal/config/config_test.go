package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/ridopark/algoreplay/pkg/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadOverDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: warn
data:
  source: parquet
  parquet_dir: /tmp/bars
backtest:
  strategy: ma_crossover
  tickers: [spy, qqq, SPY]
  balance: 2500.5
  commission: 11.5
  raise_on_error: true
publish:
  compress: true
  cache_enabled: true
  store_inputs: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Logging.Level != logging.LevelWarn {
		t.Errorf("logging.level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Data.Source != SourceParquet || cfg.Data.ParquetDir != "/tmp/bars" || cfg.Data.Market != "us" {
		t.Errorf("data = %+v", cfg.Data)
	}
	if got := cfg.Backtest.BalanceDecimal().String(); got != "2500.5" {
		t.Errorf("balance = %s, want 2500.5", got)
	}
	if got := cfg.Backtest.CommissionDecimal().String(); got != "11.5" {
		t.Errorf("commission = %s, want 11.5", got)
	}
	if !cfg.Backtest.RaiseOnError || !cfg.Backtest.RecordIdle || cfg.Backtest.BuyShares != 100 {
		t.Errorf("backtest = %+v", cfg.Backtest)
	}
	if got := cfg.Backtest.NormalizedTickers(); !slices.Equal(got, []string{"SPY", "QQQ"}) {
		t.Errorf("tickers = %v", got)
	}
	d := cfg.Publish.Destinations()
	if !d.File || !d.Cache || d.ObjectStore || d.Notify || !cfg.Publish.Compress {
		t.Errorf("destinations = %+v", d)
	}
	if got := cfg.Publish.InputsLabel(); got != "backtest_inputs" {
		t.Errorf("inputs label = %q, want backtest_inputs", got)
	}
	if got := Default().Publish.InputsLabel(); got != "" {
		t.Errorf("default inputs label = %q, want empty", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("DEBUG_ENGINE", "1")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("OUTPUT_DIR", "/tmp/out")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != logging.LevelDebug || !cfg.Logging.EnableFile {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	want := "host=db.internal port=6543 user=postgres password=secret dbname=trading_data sslmode=disable"
	if got := cfg.Database.ConnectionString(); got != want {
		t.Errorf("connection string = %q, want %q", got, want)
	}
	if cfg.Publish.OutputDir != "/tmp/out" {
		t.Errorf("output dir = %q", cfg.Publish.OutputDir)
	}

	t.Setenv("DATABASE_URL", "postgres://u:p@h/db")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := cfg.Database.ConnectionString(); got != "postgres://u:p@h/db" {
		t.Errorf("connection string = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown source", func(c *Config) { c.Data.Source = "csv" }},
		{"negative balance", func(c *Config) { c.Backtest.Balance = -1 }},
		{"negative commission", func(c *Config) { c.Backtest.Commission = -0.5 }},
		{"zero buy shares", func(c *Config) { c.Backtest.BuyShares = 0 }},
		{"no tickers", func(c *Config) { c.Backtest.Tickers = nil }},
		{"bad periods", func(c *Config) { c.Backtest.ShortPeriod, c.Backtest.LongPeriod = 20, 5 }},
		{"zero lookback", func(c *Config) { c.Data.Lookback = 0 }},
		{"cache without path", func(c *Config) { c.Publish.CacheEnabled, c.Publish.CachePath = true, "" }},
		{"notify without url", func(c *Config) { c.Publish.NotifyEnabled, c.Publish.WebhookURL = true, "not a url" }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate = %v, want %v", err, ErrInvalid)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
