package main

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/internal/config"
	"github.com/ridopark/algoreplay/pkg/strategy"
	"github.com/ridopark/algoreplay/pkg/strategy/examples"
)

// Available strategies
const (
	strategyBase        = "base"
	strategyBuyAndHold  = "buy_and_hold"
	strategyMACrossover = "ma_crossover"
)

// newStrategy builds a fresh strategy instance for one ticker
func newStrategy(cfg *config.Config, ticker string, balance decimal.Decimal) (strategy.Strategy, error) {
	b := cfg.Backtest
	sc := strategy.DefaultConfig(fmt.Sprintf("%s-%s", b.Strategy, ticker), balance)
	sc.Tickers = []string{ticker}
	sc.Commission = b.CommissionDecimal()
	sc.BuyShares = b.BuyShares
	sc.RecordIdle = b.RecordIdle

	switch b.Strategy {
	case strategyBase:
		return strategy.NewBaseStrategy(sc)
	case strategyBuyAndHold:
		return examples.NewBuyAndHoldStrategy(sc)
	case strategyMACrossover:
		return examples.NewMovingAverageCrossoverStrategy(sc, b.ShortPeriod, b.LongPeriod)
	default:
		return nil, fmt.Errorf("unknown strategy %q, available strategies: %s, %s, %s",
			b.Strategy, strategyBase, strategyBuyAndHold, strategyMACrossover)
	}
}
