package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridopark/algoreplay/pkg/logging"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

// DefaultLookback is the number of daily bars a snapshot carries by default
const DefaultLookback = 60

// Options controls how snapshots are assembled
type Options struct {
	// Lookback is the number of daily bars in each snapshot, ending with
	// the snapshot's own day
	Lookback int
	// IncludeMinute adds the day's minute bars as the minute dataset
	IncludeMinute bool
}

// HistoricalFeed builds per-day snapshots from a historical data provider
type HistoricalFeed struct {
	provider HistoricalDataProvider
	opts     Options
	logger   zerolog.Logger
}

// NewHistoricalFeed creates a new historical snapshot feed
func NewHistoricalFeed(provider HistoricalDataProvider, opts Options) *HistoricalFeed {
	if opts.Lookback < 1 {
		opts.Lookback = DefaultLookback
	}
	return &HistoricalFeed{
		provider: provider,
		opts:     opts,
		logger:   logging.GetLogger("feed"),
	}
}

// Snapshots loads the ticker's daily bars and returns one snapshot per
// trading day between start and end inclusive. Days without a daily bar get
// no snapshot.
func (hf *HistoricalFeed) Snapshots(ctx context.Context, ticker string, start, end time.Time) ([]strategy.Snapshot, error) {
	first := startOfDay(start)
	last := startOfDay(end).AddDate(0, 0, 1).Add(-time.Nanosecond)
	if last.Before(first) {
		return nil, fmt.Errorf("end %s is before start %s", end.Format(strategy.DateFormat), start.Format(strategy.DateFormat))
	}

	// calendar days that cover Lookback trading days
	warmup := first.AddDate(0, 0, -(hf.opts.Lookback*7/5 + 7))
	daily, err := hf.provider.GetBars(ctx, ticker, TimeframeDaily, warmup, last)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily bars for %s: %w", ticker, err)
	}
	daily = dedupeByDay(daily)

	var minutes map[time.Time][]strategy.BarData
	if hf.opts.IncludeMinute {
		bars, err := hf.provider.GetBars(ctx, ticker, TimeframeMinute, first, last)
		if err != nil {
			return nil, fmt.Errorf("failed to load minute bars for %s: %w", ticker, err)
		}
		minutes = groupByDay(bars)
	}

	snapshots := make([]strategy.Snapshot, 0)
	for i, bar := range daily {
		d := startOfDay(bar.Timestamp)
		if d.Before(first) || d.After(last) {
			continue
		}

		from := max(0, i-hf.opts.Lookback+1)
		snap := strategy.Snapshot{
			ID:   strategy.DatasetID(ticker, d),
			Date: d,
			Bars: map[string][]strategy.BarData{
				strategy.DatasetDaily: append([]strategy.BarData(nil), daily[from:i+1]...),
			},
		}
		if m := minutes[d]; len(m) > 0 {
			snap.Bars[strategy.DatasetMinute] = m
		}
		snapshots = append(snapshots, snap)
	}

	hf.logger.Debug().
		Str("ticker", ticker).
		Int("daily_bars", len(daily)).
		Int("snapshots", len(snapshots)).
		Msg("Built snapshots")

	return snapshots, nil
}

// dedupeByDay sorts bars by time and keeps the last bar of each day
func dedupeByDay(bars []strategy.BarData) []strategy.BarData {
	sorted := append([]strategy.BarData(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]strategy.BarData, 0, len(sorted))
	for _, bar := range sorted {
		if n := len(out); n > 0 && startOfDay(out[n-1].Timestamp).Equal(startOfDay(bar.Timestamp)) {
			out[n-1] = bar
			continue
		}
		out = append(out, bar)
	}
	return out
}

func groupByDay(bars []strategy.BarData) map[time.Time][]strategy.BarData {
	sorted := append([]strategy.BarData(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make(map[time.Time][]strategy.BarData)
	for _, bar := range sorted {
		d := startOfDay(bar.Timestamp)
		out[d] = append(out[d], bar)
	}
	return out
}

// startOfDay returns midnight UTC of t's calendar day in UTC
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
