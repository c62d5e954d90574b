package examples

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/logging"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

// MovingAverageCrossoverStrategy buys on a bullish crossover of the short
// SMA over the long SMA of the snapshot's daily closes and sells the whole
// holding on a bearish crossover.
type MovingAverageCrossoverStrategy struct {
	*strategy.BaseStrategy
	shortPeriod int
	longPeriod  int
	allocator   *strategy.CapitalAllocator
	logger      zerolog.Logger
}

// NewMovingAverageCrossoverStrategy creates a new moving average crossover strategy
func NewMovingAverageCrossoverStrategy(cfg strategy.Config, shortPeriod, longPeriod int) (*MovingAverageCrossoverStrategy, error) {
	if shortPeriod <= 0 || shortPeriod >= longPeriod {
		return nil, fmt.Errorf("%w: short period %d must be positive and less than long period %d",
			strategy.ErrInvalidConfig, shortPeriod, longPeriod)
	}

	base, err := strategy.NewBaseStrategy(cfg)
	if err != nil {
		return nil, err
	}

	return &MovingAverageCrossoverStrategy{
		BaseStrategy: base,
		shortPeriod:  shortPeriod,
		longPeriod:   longPeriod,
		allocator:    strategy.NewCapitalAllocator(strategy.DefaultAllocationConfig()),
		logger:       logging.GetLogger("ma_crossover"),
	}, nil
}

// Process looks for a crossover between the previous and the latest daily bar
func (s *MovingAverageCrossoverStrategy) Process(runID, ticker string, snapshot strategy.Snapshot) (*strategy.OrderRequest, error) {
	bars := snapshot.Bars[strategy.DatasetDaily]
	if len(bars) < s.longPeriod+1 {
		s.logger.Debug().
			Str("ticker", ticker).
			Int("history_count", len(bars)).
			Int("need_count", s.longPeriod+1).
			Msg("Not enough history for crossover")
		return nil, nil
	}

	closes := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	prevShort := sma(closes[:len(closes)-1], s.shortPeriod)
	prevLong := sma(closes[:len(closes)-1], s.longPeriod)
	curShort := sma(closes, s.shortPeriod)
	curLong := sma(closes, s.longPeriod)

	prevCross := prevShort.GreaterThan(prevLong)
	currentCross := curShort.GreaterThan(curLong)
	pos := s.Position()

	switch {
	case !prevCross && currentCross && pos.SharesOwned == 0:
		shares := s.allocator.SharesFor(*pos, pos.LatestClose)
		if shares <= 0 {
			return nil, nil
		}
		order := s.CreateOrder(ticker, strategy.OrderSideBuy, shares, snapshot, "bullish_crossover")
		order.Details["run_id"] = runID
		order.Details["short_ma"] = curShort.StringFixed(4)
		order.Details["long_ma"] = curLong.StringFixed(4)
		s.logger.Info().
			Str("ticker", ticker).
			Str("price", pos.LatestClose.String()).
			Int64("shares", shares).
			Msg("Bullish crossover - buying")
		return &order, nil

	case prevCross && !currentCross && pos.SharesOwned > 0:
		order := s.CreateOrder(ticker, strategy.OrderSideSell, pos.SharesOwned, snapshot, "bearish_crossover")
		order.Details["run_id"] = runID
		order.Details["short_ma"] = curShort.StringFixed(4)
		order.Details["long_ma"] = curLong.StringFixed(4)
		s.logger.Info().
			Str("ticker", ticker).
			Str("price", pos.LatestClose.String()).
			Int64("shares", pos.SharesOwned).
			Msg("Bearish crossover - selling")
		return &order, nil
	}

	return nil, nil
}

// GetParameters returns the strategy parameters
func (s *MovingAverageCrossoverStrategy) GetParameters() map[string]any {
	return map[string]any{
		"shortPeriod": s.shortPeriod,
		"longPeriod":  s.longPeriod,
	}
}

// sma calculates the simple moving average of the last period values
func sma(values []decimal.Decimal, period int) decimal.Decimal {
	if len(values) < period || period <= 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values[len(values)-period:] {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(period)))
}
