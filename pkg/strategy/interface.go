package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/status"
)

// Dataset names carried by a Snapshot
const (
	DatasetDaily  = "daily"
	DatasetMinute = "minute"
	DatasetQuote  = "quote"
	DatasetStats  = "stats"
	DatasetNews   = "news"
)

// DateFormat is the layout used for snapshot dates and dataset ids
const DateFormat = "2006-01-02"

// BarData represents OHLCV data for a single time period
type BarData struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	Timeframe string          `json:"timeframe"`
}

// Record is one row of a non-price dataset such as quote or stats
type Record map[string]any

// Snapshot is a single date's collection of datasets for one ticker.
// Bars holds price series keyed by dataset name (daily, minute); Tables holds
// everything else and is opaque to the engine.
type Snapshot struct {
	ID     string               `json:"id"`
	Date   time.Time            `json:"date"`
	Bars   map[string][]BarData `json:"bars,omitempty"`
	Tables map[string][]Record  `json:"tables,omitempty"`
}

// DatasetID builds the canonical snapshot id for a ticker and date
func DatasetID(ticker string, date time.Time) string {
	return ticker + "_" + date.Format(DateFormat)
}

// LatestBar returns the most recent price bar of the snapshot, preferring the
// daily dataset over the minute dataset.
func (s Snapshot) LatestBar() (BarData, bool) {
	for _, name := range []string{DatasetDaily, DatasetMinute} {
		if bars := s.Bars[name]; len(bars) > 0 {
			return bars[len(bars)-1], true
		}
	}
	return BarData{}, false
}

// OrderSide represents the side of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Position is the mutable per-ticker state of one backtest run. It is owned
// by a single strategy and written only by the engine between snapshots.
type Position struct {
	Balance          decimal.Decimal `json:"balance"`
	SharesOwned      int64           `json:"shares_owned"`
	Commission       decimal.Decimal `json:"commission"`
	AcquisitionPrice decimal.Decimal `json:"acquisition_price"`
	LatestOpen       decimal.Decimal `json:"latest_open"`
	LatestHigh       decimal.Decimal `json:"latest_high"`
	LatestLow        decimal.Decimal `json:"latest_low"`
	LatestClose      decimal.Decimal `json:"latest_close"`
	LatestVolume     int64           `json:"latest_volume"`
}

// OrderRequest is an instruction returned by a strategy's decision hook
type OrderRequest struct {
	Side     OrderSide       `json:"side"`
	Ticker   string          `json:"ticker"`
	Shares   int64           `json:"shares"`
	Close    decimal.Decimal `json:"close"`
	Position Position        `json:"position"`
	Date     time.Time       `json:"date"`
	Details  map[string]any  `json:"details,omitempty"`
	Reason   string          `json:"reason"`
	Key      string          `json:"key"`
}

// OrderResult is the outcome of executing an OrderRequest. Shares and Balance
// are the resulting values; PrevShares and PrevBalance the values before.
type OrderResult struct {
	Status      status.Code     `json:"status"`
	Side        OrderSide       `json:"side"`
	Ticker      string          `json:"ticker"`
	Date        time.Time       `json:"date"`
	Close       decimal.Decimal `json:"close"`
	Commission  decimal.Decimal `json:"commission"`
	Requested   int64           `json:"requested"`
	FillPrice   decimal.Decimal `json:"fill_price"`
	Balance     decimal.Decimal `json:"balance"`
	Shares      int64           `json:"shares"`
	PrevBalance decimal.Decimal `json:"prev_balance"`
	PrevShares  int64           `json:"prev_shares"`
	Details     map[string]any  `json:"details,omitempty"`
	Reason      string          `json:"reason"`
	Key         string          `json:"key"`
}

// Filled reports whether the order changed the position
func (r OrderResult) Filled() bool {
	return r.Status == status.TradeFilled
}

// SharesDelta is the absolute change in shares owned
func (r OrderResult) SharesDelta() int64 {
	d := r.Shares - r.PrevShares
	if d < 0 {
		return -d
	}
	return d
}

// HistoryEntry records what happened for one snapshot
type HistoryEntry struct {
	DatasetID        string          `json:"ds_id"`
	Ticker           string          `json:"ticker"`
	Date             time.Time       `json:"date"`
	Side             OrderSide       `json:"side,omitempty"`
	Close            decimal.Decimal `json:"close"`
	Commission       decimal.Decimal `json:"commission"`
	FillPrice        decimal.Decimal `json:"fill_price"`
	Balance          decimal.Decimal `json:"balance"`
	Shares           int64           `json:"shares"`
	PrevBalance      decimal.Decimal `json:"prev_balance"`
	PrevShares       int64           `json:"prev_shares"`
	OriginalBalance  decimal.Decimal `json:"original_balance"`
	AcquisitionPrice decimal.Decimal `json:"acquisition_price"`
	NetGain          decimal.Decimal `json:"net_gain"`
	Status           status.Code     `json:"status"`
	AlgoStatus       status.Code     `json:"algo_status"`
	Reason           string          `json:"reason,omitempty"`
	Details          map[string]any  `json:"details,omitempty"`
	Err              string          `json:"err,omitempty"`
}

// Report is the final artifact of a backtest run for one ticker
type Report struct {
	RunID           string          `json:"run_id"`
	Strategy        string          `json:"strategy"`
	Tickers         []string        `json:"tickers"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	Position        Position        `json:"position"`
	History         []HistoryEntry  `json:"history"`
	Status          status.Code     `json:"status"`
	Err             string          `json:"err,omitempty"`
}

// Strategy is the contract every trading algorithm implements. Position and
// Result are normally provided by an embedded *BaseStrategy; concrete
// strategies override Process.
type Strategy interface {
	// GetName returns the strategy name
	GetName() string

	// Position returns the live position the engine mutates between snapshots
	Position() *Position

	// Process is called once per snapshot in chronological order and
	// returns at most one order
	Process(runID, ticker string, snapshot Snapshot) (*OrderRequest, error)

	// RecordIdle reports whether snapshots without an order get a history entry
	RecordIdle() bool

	// Record appends a history entry to the strategy's report
	Record(entry HistoryEntry)

	// Result returns the report accumulated so far
	Result() *Report
}
