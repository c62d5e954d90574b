package data

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/feed"
	"github.com/ridopark/algoreplay/pkg/logging"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

// BarRecord is the Parquet schema for bar data
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// ParquetProvider reads bars from Parquet files laid out as
//
//	<DataDir>/<market>/<daily|minute>/<SYMBOL>/<YYYY>.parquet
type ParquetProvider struct {
	DataDir string
	Market  string
	logger  zerolog.Logger
}

// NewParquetProvider creates a provider rooted at dataDir
func NewParquetProvider(dataDir, market string) *ParquetProvider {
	if market == "" {
		market = "us"
	}
	return &ParquetProvider{
		DataDir: dataDir,
		Market:  market,
		logger:  logging.GetLogger("parquet"),
	}
}

// GetBars reads the year files overlapping [start, end] and returns the
// matching bars oldest first. Missing year files are skipped.
func (p *ParquetProvider) GetBars(ctx context.Context, symbol string, timeframe string, start time.Time, end time.Time) ([]strategy.BarData, error) {
	dir, err := timeframeDir(timeframe)
	if err != nil {
		return nil, err
	}

	bars := make([]strategy.BarData, 0)
	for year := start.UTC().Year(); year <= end.UTC().Year(); year++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := p.barPath(symbol, dir, year)
		if !exists(path) {
			continue
		}
		records, err := parquet.ReadFile[BarRecord](path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			bars = append(bars, strategy.BarData{
				Symbol:    r.Symbol,
				Timestamp: ts,
				Open:      decimal.NewFromFloat(r.Open),
				High:      decimal.NewFromFloat(r.High),
				Low:       decimal.NewFromFloat(r.Low),
				Close:     decimal.NewFromFloat(r.Close),
				Volume:    r.Volume,
				Timeframe: timeframe,
			})
		}
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	p.logger.Debug().
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Int("bars", len(bars)).
		Msg("Loaded bars")

	return bars, nil
}

// WriteBars writes bars grouped by symbol and year, merging with any bars
// already on disk. Bars with the same symbol and timestamp are replaced.
func (p *ParquetProvider) WriteBars(timeframe string, bars []strategy.BarData) error {
	dir, err := timeframeDir(timeframe)
	if err != nil {
		return err
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		k := key{symbol: strings.ToUpper(b.Symbol), year: b.Timestamp.UTC().Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:    k.symbol,
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open.InexactFloat64(),
			High:      b.High.InexactFloat64(),
			Low:       b.Low.InexactFloat64(),
			Close:     b.Close.InexactFloat64(),
			Volume:    b.Volume,
		})
	}

	for k, records := range groups {
		path := p.barPath(k.symbol, dir, k.year)
		var existing []BarRecord
		if exists(path) {
			existing, err = parquet.ReadFile[BarRecord](path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := parquet.WriteFile(path, mergeBarRecords(existing, records)); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// Close is a no-op
func (p *ParquetProvider) Close() error {
	return nil
}

func (p *ParquetProvider) barPath(symbol, dir string, year int) string {
	return filepath.Join(p.DataDir, p.Market, dir, strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func timeframeDir(timeframe string) (string, error) {
	switch timeframe {
	case feed.TimeframeDaily:
		return "daily", nil
	case feed.TimeframeMinute:
		return "minute", nil
	default:
		return "", fmt.Errorf("unsupported parquet timeframe %q", timeframe)
	}
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// incoming records over existing ones
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

var _ feed.HistoricalDataProvider = (*ParquetProvider)(nil)
