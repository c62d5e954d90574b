package data

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/feed"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

func testBar(symbol string, ts time.Time, closePrice string) strategy.BarData {
	c := decimal.RequireFromString(closePrice)
	return strategy.BarData{Symbol: symbol, Timestamp: ts, Open: c, High: c, Low: c, Close: c, Volume: 1000}
}

func TestParquetProviderReadsAcrossYears(t *testing.T) {
	p := NewParquetProvider(t.TempDir(), "")
	bars := []strategy.BarData{
		testBar("spy", time.Date(2019, 1, 2, 21, 0, 0, 0, time.UTC), "250.5"),
		testBar("spy", time.Date(2018, 12, 31, 21, 0, 0, 0, time.UTC), "249.25"),
		testBar("spy", time.Date(2018, 12, 28, 21, 0, 0, 0, time.UTC), "247"),
		testBar("QQQ", time.Date(2018, 12, 31, 21, 0, 0, 0, time.UTC), "150"),
	}
	if err := p.WriteBars(feed.TimeframeDaily, bars); err != nil {
		t.Fatalf("WriteBars returned error: %v", err)
	}

	got, err := p.GetBars(context.Background(), "SPY", feed.TimeframeDaily,
		time.Date(2018, 12, 29, 0, 0, 0, 0, time.UTC), time.Date(2019, 1, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetBars returned error: %v", err)
	}

	want := []string{"249.25", "250.5"}
	if len(got) != len(want) {
		t.Fatalf("bars = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if !got[i].Close.Equal(decimal.RequireFromString(w)) {
			t.Errorf("bar %d close = %s, want %s", i, got[i].Close, w)
		}
		if got[i].Symbol != "SPY" || got[i].Timeframe != feed.TimeframeDaily || got[i].Timestamp.Location() != time.UTC {
			t.Errorf("bar %d = %+v", i, got[i])
		}
	}
}

func TestParquetProviderMergesWrites(t *testing.T) {
	p := NewParquetProvider(t.TempDir(), "us")
	ts := time.Date(2018, 11, 5, 21, 0, 0, 0, time.UTC)

	if err := p.WriteBars(feed.TimeframeMinute, []strategy.BarData{testBar("SPY", ts, "10")}); err != nil {
		t.Fatalf("WriteBars returned error: %v", err)
	}
	if err := p.WriteBars(feed.TimeframeMinute, []strategy.BarData{
		testBar("SPY", ts, "11"),
		testBar("SPY", ts.Add(time.Minute), "12"),
	}); err != nil {
		t.Fatalf("WriteBars returned error: %v", err)
	}

	got, err := p.GetBars(context.Background(), "SPY", feed.TimeframeMinute, ts, ts.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetBars returned error: %v", err)
	}
	if len(got) != 2 || !got[0].Close.Equal(decimal.NewFromInt(11)) || !got[1].Close.Equal(decimal.NewFromInt(12)) {
		t.Errorf("bars = %+v", got)
	}
}

func TestParquetProviderMissingData(t *testing.T) {
	p := NewParquetProvider(t.TempDir(), "us")
	got, err := p.GetBars(context.Background(), "SPY", feed.TimeframeDaily,
		time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2018, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetBars returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("bars = %d, want 0", len(got))
	}

	if _, err := p.GetBars(context.Background(), "SPY", "1h", time.Now(), time.Now()); err == nil {
		t.Error("expected an error for an unsupported timeframe")
	}
}
