package backtester

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/strategy"
)

var (
	ErrNegativeBalance = errors.New("fill would leave a negative balance")
	ErrNegativeShares  = errors.New("fill would leave negative shares")
	ErrOversold        = errors.New("fill sold more shares than owned")
)

// EquityPoint represents equity at a point in time
type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}

// Portfolio commits order results to a strategy's position and tracks the
// equity curve. It is the only writer of the position during a run.
type Portfolio struct {
	position    *strategy.Position
	initialCash decimal.Decimal

	// markPrice is the last known close; it survives days without bars
	markPrice decimal.Decimal

	equity          []EquityPoint
	peakValue       decimal.Decimal
	maxDrawdown     decimal.Decimal
	currentDrawdown decimal.Decimal
}

// NewPortfolio wraps the given position
func NewPortfolio(position *strategy.Position) *Portfolio {
	return &Portfolio{
		position:    position,
		initialCash: position.Balance,
		markPrice:   position.LatestClose,
		equity:      make([]EquityPoint, 0),
		peakValue:   position.Balance,
	}
}

// Position returns a copy of the current position
func (p *Portfolio) Position() strategy.Position {
	return *p.position
}

// GetCash returns the current cash balance
func (p *Portfolio) GetCash() decimal.Decimal {
	return p.position.Balance
}

// SetLatest copies a bar's OHLCV into the position's latest fields
func (p *Portfolio) SetLatest(bar strategy.BarData) {
	p.position.LatestOpen = bar.Open
	p.position.LatestHigh = bar.High
	p.position.LatestLow = bar.Low
	p.position.LatestClose = bar.Close
	p.position.LatestVolume = bar.Volume
	p.markPrice = bar.Close
}

// ClearLatest zeroes the position's latest fields for a snapshot without
// bars. The holding keeps its last mark for valuation.
func (p *Portfolio) ClearLatest() {
	p.position.LatestOpen = decimal.Zero
	p.position.LatestHigh = decimal.Zero
	p.position.LatestLow = decimal.Zero
	p.position.LatestClose = decimal.Zero
	p.position.LatestVolume = 0
}

// Apply commits a filled order result. Rejected results leave the position
// untouched. The acquisition price is the share-weighted average close of
// the open holding and resets when the holding is closed.
func (p *Portfolio) Apply(res strategy.OrderResult) error {
	if !res.Filled() {
		return nil
	}
	if res.Balance.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeBalance, res.Balance)
	}
	if res.Shares < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeShares, res.Shares)
	}
	if res.Side == strategy.OrderSideSell && res.SharesDelta() > res.PrevShares {
		return fmt.Errorf("%w: sold %d of %d", ErrOversold, res.SharesDelta(), res.PrevShares)
	}

	pos := p.position
	switch {
	case res.Shares == 0:
		pos.AcquisitionPrice = decimal.Zero
	case res.Side == strategy.OrderSideBuy:
		pos.AcquisitionPrice = weightedAvg(pos.AcquisitionPrice, res.PrevShares, res.Close, res.SharesDelta())
	}
	pos.Balance = res.Balance
	pos.SharesOwned = res.Shares
	return nil
}

// MarkToMarket records the equity value at ts and updates drawdown tracking
func (p *Portfolio) MarkToMarket(ts time.Time) {
	value := p.GetTotalValue()
	p.equity = append(p.equity, EquityPoint{Timestamp: ts, Value: value})

	if value.GreaterThan(p.peakValue) {
		p.peakValue = value
		p.currentDrawdown = decimal.Zero
		return
	}
	if p.peakValue.IsPositive() {
		p.currentDrawdown = p.peakValue.Sub(value).Div(p.peakValue)
		if p.currentDrawdown.GreaterThan(p.maxDrawdown) {
			p.maxDrawdown = p.currentDrawdown
		}
	}
}

// GetTotalValue returns cash plus the holding marked at the last known close
func (p *Portfolio) GetTotalValue() decimal.Decimal {
	return p.position.Balance.Add(p.markPrice.Mul(decimal.NewFromInt(p.position.SharesOwned)))
}

// GetTotalReturn returns the total return as a percentage
func (p *Portfolio) GetTotalReturn() decimal.Decimal {
	if p.initialCash.IsZero() {
		return decimal.Zero
	}
	return p.GetTotalValue().Sub(p.initialCash).Div(p.initialCash).Mul(decimal.NewFromInt(100))
}

// GetEquityCurve returns the equity curve
func (p *Portfolio) GetEquityCurve() []EquityPoint {
	return p.equity
}

// GetMaxDrawdown returns the maximum drawdown as a fraction
func (p *Portfolio) GetMaxDrawdown() decimal.Decimal {
	return p.maxDrawdown
}

// GetCurrentDrawdown returns the current drawdown as a fraction
func (p *Portfolio) GetCurrentDrawdown() decimal.Decimal {
	return p.currentDrawdown
}

func weightedAvg(existingAvg decimal.Decimal, existingQty int64, newPrice decimal.Decimal, newQty int64) decimal.Decimal {
	if existingQty <= 0 {
		return newPrice
	}
	eq := decimal.NewFromInt(existingQty)
	nq := decimal.NewFromInt(newQty)
	return existingAvg.Mul(eq).Add(newPrice.Mul(nq)).Div(eq.Add(nq))
}
