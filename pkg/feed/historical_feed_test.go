package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/strategy"
)

type request struct {
	timeframe  string
	start, end time.Time
}

type fakeProvider struct {
	bars     map[string][]strategy.BarData
	err      error
	requests []request
}

func (p *fakeProvider) GetBars(_ context.Context, symbol, timeframe string, start, end time.Time) ([]strategy.BarData, error) {
	p.requests = append(p.requests, request{timeframe, start, end})
	if p.err != nil {
		return nil, p.err
	}
	var out []strategy.BarData
	for _, b := range p.bars[timeframe] {
		if b.Symbol == symbol && !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (p *fakeProvider) Close() error { return nil }

func bar(symbol, ts string, closePrice int64, timeframe string) strategy.BarData {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	c := decimal.NewFromInt(closePrice)
	return strategy.BarData{Symbol: symbol, Timestamp: t, Open: c, High: c, Low: c, Close: c, Volume: 100, Timeframe: timeframe}
}

func date(s string) time.Time {
	t, err := time.Parse(strategy.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSnapshotsBuildsOnePerTradingDay(t *testing.T) {
	p := &fakeProvider{bars: map[string][]strategy.BarData{
		TimeframeDaily: {
			// deliberately unsorted with a duplicate day
			bar("SPY", "2018-11-02T20:00:00Z", 12, TimeframeDaily),
			bar("SPY", "2018-10-31T20:00:00Z", 10, TimeframeDaily),
			bar("SPY", "2018-11-01T20:00:00Z", 11, TimeframeDaily),
			bar("SPY", "2018-11-05T20:00:00Z", 13, TimeframeDaily),
			bar("SPY", "2018-11-05T21:00:00Z", 14, TimeframeDaily),
			bar("QQQ", "2018-11-05T20:00:00Z", 99, TimeframeDaily),
		},
		TimeframeMinute: {
			bar("SPY", "2018-11-05T14:31:00Z", 13, TimeframeMinute),
			bar("SPY", "2018-11-05T14:30:00Z", 12, TimeframeMinute),
		},
	}}

	f := NewHistoricalFeed(p, Options{Lookback: 2, IncludeMinute: true})
	snaps, err := f.Snapshots(context.Background(), "SPY", date("2018-11-01"), date("2018-11-05"))
	if err != nil {
		t.Fatalf("Snapshots returned error: %v", err)
	}

	wantIDs := []string{"SPY_2018-11-01", "SPY_2018-11-02", "SPY_2018-11-05"}
	if len(snaps) != len(wantIDs) {
		t.Fatalf("snapshots = %d, want %d", len(snaps), len(wantIDs))
	}
	for i, id := range wantIDs {
		if snaps[i].ID != id {
			t.Errorf("snapshot %d id = %s, want %s", i, snaps[i].ID, id)
		}
		if i > 0 && !snaps[i].Date.After(snaps[i-1].Date) {
			t.Errorf("snapshot %d not after snapshot %d", i, i-1)
		}
		if got := len(snaps[i].Bars[strategy.DatasetDaily]); got != 2 {
			t.Errorf("snapshot %d daily bars = %d, want 2", i, got)
		}
	}

	last, ok := snaps[2].LatestBar()
	if !ok || !last.Close.Equal(decimal.NewFromInt(14)) {
		t.Errorf("latest bar on 2018-11-05 = %v, want close 14", last.Close)
	}
	if first := snaps[0].Bars[strategy.DatasetDaily][0]; !first.Close.Equal(decimal.NewFromInt(10)) {
		t.Errorf("lookback did not reach the warmup bar: %v", first.Close)
	}

	minute := snaps[2].Bars[strategy.DatasetMinute]
	if len(minute) != 2 || !minute[0].Timestamp.Before(minute[1].Timestamp) {
		t.Errorf("minute bars = %+v", minute)
	}
	if _, ok := snaps[0].Bars[strategy.DatasetMinute]; ok {
		t.Error("day without minute bars has a minute dataset")
	}
}

func TestSnapshotsRequestsWarmup(t *testing.T) {
	p := &fakeProvider{}
	f := NewHistoricalFeed(p, Options{Lookback: 5})
	if _, err := f.Snapshots(context.Background(), "SPY", date("2018-11-05"), date("2018-11-05")); err != nil {
		t.Fatalf("Snapshots returned error: %v", err)
	}
	if len(p.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(p.requests))
	}
	req := p.requests[0]
	if req.timeframe != TimeframeDaily || !req.start.Before(date("2018-10-29")) {
		t.Errorf("request = %+v", req)
	}
	if !req.end.After(date("2018-11-05")) || !req.end.Before(date("2018-11-06")) {
		t.Errorf("request end = %s", req.end)
	}
}

func TestSnapshotsErrors(t *testing.T) {
	boom := errors.New("db down")
	f := NewHistoricalFeed(&fakeProvider{err: boom}, Options{})
	if _, err := f.Snapshots(context.Background(), "SPY", date("2018-11-01"), date("2018-11-05")); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}

	f = NewHistoricalFeed(&fakeProvider{}, Options{})
	if _, err := f.Snapshots(context.Background(), "SPY", date("2018-11-05"), date("2018-11-01")); err == nil {
		t.Error("expected an error for an inverted range")
	}
}
