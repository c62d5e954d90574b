package backtester

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/strategy"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	d, err := time.Parse(strategy.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return d
}

func snap(ticker, date, closePrice string) strategy.Snapshot {
	d := day(date)
	c := dec(closePrice)
	return strategy.Snapshot{
		ID:   strategy.DatasetID(ticker, d),
		Date: d,
		Bars: map[string][]strategy.BarData{
			strategy.DatasetDaily: {{
				Symbol:    ticker,
				Timestamp: d,
				Open:      c,
				High:      c,
				Low:       c,
				Close:     c,
				Volume:    1000,
				Timeframe: "1d",
			}},
		},
	}
}

func order(side strategy.OrderSide, shares int64, closePrice, balance, commission string, owned int64) strategy.OrderRequest {
	return strategy.OrderRequest{
		Side:   side,
		Ticker: "SPY",
		Shares: shares,
		Close:  dec(closePrice),
		Position: strategy.Position{
			Balance:     dec(balance),
			SharesOwned: owned,
			Commission:  dec(commission),
		},
		Date:    day("2018-11-05"),
		Details: map[string]any{"note": "test"},
		Reason:  "test order",
		Key:     "ORD_test",
	}
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
