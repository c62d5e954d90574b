package strategy

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/status"
)

// DefaultBuyShares is the share count the base policy buys
const DefaultBuyShares int64 = 100

// ErrInvalidConfig is returned when a strategy configuration fails validation
var ErrInvalidConfig = errors.New("invalid strategy config")

// Overrides replaces constructor defaults after construction. Nil fields are
// left untouched.
type Overrides struct {
	LatestOpen   *decimal.Decimal `yaml:"latest_open" json:"latest_open,omitempty"`
	LatestHigh   *decimal.Decimal `yaml:"latest_high" json:"latest_high,omitempty"`
	LatestLow    *decimal.Decimal `yaml:"latest_low" json:"latest_low,omitempty"`
	LatestClose  *decimal.Decimal `yaml:"latest_close" json:"latest_close,omitempty"`
	LatestVolume *int64           `yaml:"latest_volume" json:"latest_volume,omitempty"`
	NumOwned     *int64           `yaml:"num_owned" json:"num_owned,omitempty"`
	Balance      *decimal.Decimal `yaml:"balance" json:"balance,omitempty"`

	// AcquisitionPrice is the cost basis of a seeded holding. It defaults to
	// LatestClose when NumOwned is set without it.
	AcquisitionPrice *decimal.Decimal `yaml:"acquisition_price" json:"acquisition_price,omitempty"`
}

// Config holds configuration for a strategy
type Config struct {
	Name       string          `yaml:"name"`
	Tickers    []string        `yaml:"tickers"`
	Balance    decimal.Decimal `yaml:"balance"`
	Commission decimal.Decimal `yaml:"commission"`
	BuyShares  int64           `yaml:"buy_shares"`
	RecordIdle bool            `yaml:"record_idle"`
	Overrides  Overrides       `yaml:"overrides"`
}

// DefaultConfig returns a config with the base policy defaults
func DefaultConfig(name string, balance decimal.Decimal) Config {
	return Config{
		Name:       name,
		Balance:    balance,
		Commission: decimal.NewFromInt(6),
		BuyShares:  DefaultBuyShares,
		RecordIdle: true,
	}
}

// Validate checks the config and the overrides it carries
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.Balance.IsNegative() {
		return fmt.Errorf("%w: balance %s is negative", ErrInvalidConfig, c.Balance)
	}
	if c.Commission.IsNegative() {
		return fmt.Errorf("%w: commission %s is negative", ErrInvalidConfig, c.Commission)
	}
	if c.BuyShares <= 0 {
		return fmt.Errorf("%w: buy_shares must be positive, got %d", ErrInvalidConfig, c.BuyShares)
	}

	o := c.Overrides
	if o.Balance != nil && o.Balance.IsNegative() {
		return fmt.Errorf("%w: balance override %s is negative", ErrInvalidConfig, *o.Balance)
	}
	if o.NumOwned != nil && *o.NumOwned < 0 {
		return fmt.Errorf("%w: num_owned override %d is negative", ErrInvalidConfig, *o.NumOwned)
	}
	if o.LatestVolume != nil && *o.LatestVolume < 0 {
		return fmt.Errorf("%w: latest_volume override %d is negative", ErrInvalidConfig, *o.LatestVolume)
	}
	for field, v := range map[string]*decimal.Decimal{
		"latest_open":       o.LatestOpen,
		"latest_high":       o.LatestHigh,
		"latest_low":        o.LatestLow,
		"latest_close":      o.LatestClose,
		"acquisition_price": o.AcquisitionPrice,
	} {
		if v != nil && v.IsNegative() {
			return fmt.Errorf("%w: %s override %s is negative", ErrInvalidConfig, field, *v)
		}
	}
	if o.NumOwned != nil && *o.NumOwned > 0 && o.AcquisitionPrice == nil && o.LatestClose == nil {
		return fmt.Errorf("%w: num_owned override needs acquisition_price or latest_close", ErrInvalidConfig)
	}
	return nil
}

func (o Overrides) apply(p *Position) {
	if o.LatestOpen != nil {
		p.LatestOpen = *o.LatestOpen
	}
	if o.LatestHigh != nil {
		p.LatestHigh = *o.LatestHigh
	}
	if o.LatestLow != nil {
		p.LatestLow = *o.LatestLow
	}
	if o.LatestClose != nil {
		p.LatestClose = *o.LatestClose
	}
	if o.LatestVolume != nil {
		p.LatestVolume = *o.LatestVolume
	}
	if o.NumOwned != nil {
		p.SharesOwned = *o.NumOwned
	}
	switch {
	case o.AcquisitionPrice != nil:
		p.AcquisitionPrice = *o.AcquisitionPrice
	case p.SharesOwned > 0 && o.LatestClose != nil:
		p.AcquisitionPrice = *o.LatestClose
	}
	if p.SharesOwned == 0 {
		p.AcquisitionPrice = decimal.Zero
	}
	if o.Balance != nil {
		p.Balance = *o.Balance
	}
}

// BaseStrategy provides the position, history and reference policy shared by
// all strategies. The policy buys BuyShares once on the first affordable
// snapshot while flat and sells the whole holding on the next snapshot.
type BaseStrategy struct {
	name       string
	tickers    []string
	buyShares  int64
	recordIdle bool
	position   Position
	bought     bool
	report     *Report
}

// NewBaseStrategy validates cfg and creates a new base strategy
func NewBaseStrategy(cfg Config) (*BaseStrategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pos := Position{
		Balance:    cfg.Balance,
		Commission: cfg.Commission,
	}
	cfg.Overrides.apply(&pos)

	return &BaseStrategy{
		name:       cfg.Name,
		tickers:    append([]string(nil), cfg.Tickers...),
		buyShares:  cfg.BuyShares,
		recordIdle: cfg.RecordIdle,
		position:   pos,
		report: &Report{
			Strategy:        cfg.Name,
			Tickers:         append([]string(nil), cfg.Tickers...),
			StartingBalance: pos.Balance,
			History:         make([]HistoryEntry, 0),
			Status:          status.NotRun,
		},
	}, nil
}

// GetName returns the strategy name
func (s *BaseStrategy) GetName() string {
	return s.name
}

// GetTickers returns the tickers this strategy trades
func (s *BaseStrategy) GetTickers() []string {
	return s.tickers
}

// BuyShares returns the configured share count for the base policy
func (s *BaseStrategy) BuyShares() int64 {
	return s.buyShares
}

// Position returns the live position
func (s *BaseStrategy) Position() *Position {
	return &s.position
}

// RecordIdle reports whether hold snapshots are recorded
func (s *BaseStrategy) RecordIdle() bool {
	return s.recordIdle
}

// Record appends a history entry
func (s *BaseStrategy) Record(entry HistoryEntry) {
	s.report.History = append(s.report.History, entry)
}

// Result returns the report with the current position copied in
func (s *BaseStrategy) Result() *Report {
	s.report.Position = s.position
	return s.report
}

// Process implements the reference buy-once-then-close policy
func (s *BaseStrategy) Process(runID, ticker string, snapshot Snapshot) (*OrderRequest, error) {
	pos := s.position
	if pos.LatestClose.Sign() <= 0 {
		return nil, nil
	}

	if pos.SharesOwned > 0 {
		order := s.CreateOrder(ticker, OrderSideSell, pos.SharesOwned, snapshot,
			fmt.Sprintf("closing %d shares bought at %s", pos.SharesOwned, pos.AcquisitionPrice))
		order.Details["run_id"] = runID
		return &order, nil
	}

	if s.bought {
		return nil, nil
	}

	cost := pos.LatestClose.Mul(decimal.NewFromInt(s.buyShares)).Add(pos.Commission)
	if cost.GreaterThan(pos.Balance) {
		return nil, nil
	}

	s.bought = true
	order := s.CreateOrder(ticker, OrderSideBuy, s.buyShares, snapshot,
		fmt.Sprintf("opening %d shares at %s", s.buyShares, pos.LatestClose))
	order.Details["run_id"] = runID
	return &order, nil
}

// CreateOrder creates an order at the latest close for the given snapshot
func (s *BaseStrategy) CreateOrder(ticker string, side OrderSide, shares int64, snapshot Snapshot, reason string) OrderRequest {
	return OrderRequest{
		Side:     side,
		Ticker:   ticker,
		Shares:   shares,
		Close:    s.position.LatestClose,
		Position: s.position,
		Date:     snapshot.Date,
		Details: map[string]any{
			"strategy": s.name,
			"ds_id":    snapshot.ID,
		},
		Reason: reason,
		Key:    generateOrderKey(),
	}
}

// Helper function to generate unique order keys
func generateOrderKey() string {
	return "ORD_" + uuid.NewString()
}
