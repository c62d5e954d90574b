package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"

	"github.com/ridopark/algoreplay/pkg/feed"
	"github.com/ridopark/algoreplay/pkg/logging"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

const barsQuery = `
		SELECT symbol, timestamp, open, high, low, close, volume, timeframe
		FROM ohlcv_data
		WHERE symbol = $1 AND timeframe = $2 AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp ASC
	`

// TimescaleDBProvider provides historical data from TimescaleDB
type TimescaleDBProvider struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewTimescaleDBProvider creates a new TimescaleDB data provider
func NewTimescaleDBProvider(ctx context.Context, connectionString string) (*TimescaleDBProvider, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewTimescaleDBProviderFromDB(db), nil
}

// NewTimescaleDBProviderFromDB wraps an already opened database
func NewTimescaleDBProviderFromDB(db *sql.DB) *TimescaleDBProvider {
	return &TimescaleDBProvider{
		db:     db,
		logger: logging.GetLogger("timescaledb"),
	}
}

// GetBars retrieves historical OHLCV data for the given parameters
func (p *TimescaleDBProvider) GetBars(ctx context.Context, symbol string, timeframe string, start time.Time, end time.Time) ([]strategy.BarData, error) {
	rows, err := p.db.QueryContext(ctx, barsQuery, symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query ohlcv_data: %w", err)
	}
	defer rows.Close()

	bars := make([]strategy.BarData, 0)
	for rows.Next() {
		var bar strategy.BarData
		err := rows.Scan(
			&bar.Symbol,
			&bar.Timestamp,
			&bar.Open,
			&bar.High,
			&bar.Low,
			&bar.Close,
			&bar.Volume,
			&bar.Timeframe,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		bar.Timestamp = bar.Timestamp.UTC()
		bars = append(bars, bar)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	p.logger.Debug().
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Int("bars", len(bars)).
		Msg("Loaded bars")

	return bars, nil
}

// Close closes the database connection
func (p *TimescaleDBProvider) Close() error {
	return p.db.Close()
}

// Verify that TimescaleDBProvider implements the HistoricalDataProvider interface
var _ feed.HistoricalDataProvider = (*TimescaleDBProvider)(nil)
