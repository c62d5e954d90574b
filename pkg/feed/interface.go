package feed

import (
	"context"
	"time"

	"github.com/ridopark/algoreplay/pkg/strategy"
)

// Timeframes understood by the providers
const (
	TimeframeDaily  = "1d"
	TimeframeMinute = "1m"
)

// SnapshotSource supplies the snapshots for one ticker, one per trading day,
// in ascending date order
type SnapshotSource interface {
	Snapshots(ctx context.Context, ticker string, start, end time.Time) ([]strategy.Snapshot, error)
}

// HistoricalDataProvider defines the interface for historical data sources
type HistoricalDataProvider interface {
	// GetBars retrieves historical OHLCV data for the given parameters,
	// oldest first. Both bounds are inclusive.
	GetBars(ctx context.Context, symbol string, timeframe string, start time.Time, end time.Time) ([]strategy.BarData, error)

	// Close releases the provider's resources
	Close() error
}
