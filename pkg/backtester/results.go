package backtester

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/status"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

// Results contains the report of a backtest plus derived performance data
type Results struct {
	*strategy.Report

	StartDate     time.Time           `json:"start_date"`
	EndDate       time.Time           `json:"end_date"`
	FinalValue    decimal.Decimal     `json:"final_value"`
	TotalReturn   decimal.Decimal     `json:"total_return"`
	MaxDrawdown   decimal.Decimal     `json:"max_drawdown"`
	EquityCurve   []EquityPoint       `json:"equity_curve"`
	Metrics       *PerformanceMetrics `json:"metrics"`
	PublishStatus status.Code         `json:"publish_status,omitempty"`

	InputsPublishStatus status.Code `json:"inputs_publish_status,omitempty"`
}

// PerformanceMetrics summarizes the history of a run. Wins and losses are
// counted over filled sells only, since only those realize a gain.
type PerformanceMetrics struct {
	Entries        int             `json:"entries"`
	TotalTrades    int             `json:"total_trades"`
	Buys           int             `json:"buys"`
	Sells          int             `json:"sells"`
	RejectedOrders int             `json:"rejected_orders"`
	Errors         int             `json:"errors"`
	WinningTrades  int             `json:"winning_trades"`
	LosingTrades   int             `json:"losing_trades"`
	WinRate        float64         `json:"win_rate"`
	NetGain        decimal.Decimal `json:"net_gain"`
	LargestWin     decimal.Decimal `json:"largest_win"`
	LargestLoss    decimal.Decimal `json:"largest_loss"`
	ProfitFactor   float64         `json:"profit_factor"`
	SharpeRatio    float64         `json:"sharpe_ratio"`
	SortinoRatio   float64         `json:"sortino_ratio"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
}

// CalculateMetrics calculates performance metrics for the results
func (r *Results) CalculateMetrics() {
	m := &PerformanceMetrics{}
	r.Metrics = m
	m.MaxDrawdownPct = r.MaxDrawdown.Mul(decimal.NewFromInt(100)).InexactFloat64()

	if r.Report == nil {
		return
	}

	totalWins := decimal.Zero
	totalLosses := decimal.Zero
	for _, h := range r.History {
		m.Entries++
		if h.Err != "" {
			m.Errors++
			continue
		}
		if h.Side == "" {
			continue
		}
		if h.Status != status.TradeFilled {
			m.RejectedOrders++
			continue
		}

		m.TotalTrades++
		if h.Side == strategy.OrderSideBuy {
			m.Buys++
			continue
		}
		m.Sells++
		m.NetGain = m.NetGain.Add(h.NetGain)
		switch {
		case h.NetGain.IsPositive():
			m.WinningTrades++
			totalWins = totalWins.Add(h.NetGain)
			if h.NetGain.GreaterThan(m.LargestWin) {
				m.LargestWin = h.NetGain
			}
		case h.NetGain.IsNegative():
			m.LosingTrades++
			totalLosses = totalLosses.Add(h.NetGain)
			if h.NetGain.LessThan(m.LargestLoss) {
				m.LargestLoss = h.NetGain
			}
		}
	}

	if m.Sells > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.Sells) * 100
	}
	if !totalLosses.IsZero() {
		m.ProfitFactor = totalWins.Div(totalLosses.Neg()).InexactFloat64()
	}

	if len(r.EquityCurve) > 1 {
		returns := make([]float64, 0, len(r.EquityCurve)-1)
		for i := 1; i < len(r.EquityCurve); i++ {
			prev := r.EquityCurve[i-1].Value
			if !prev.IsPositive() {
				continue
			}
			returns = append(returns, r.EquityCurve[i].Value.Sub(prev).Div(prev).InexactFloat64())
		}
		m.SharpeRatio = calculateSharpeRatio(returns)
		m.SortinoRatio = calculateSortinoRatio(returns)
	}
}

// calculateSharpeRatio calculates the per-period Sharpe ratio with a zero
// risk-free rate
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) <= 1 {
		return 0
	}

	mean := meanOf(returns)
	sumSquares := 0.0
	for _, ret := range returns {
		diff := ret - mean
		sumSquares += diff * diff
	}

	stdDev := math.Sqrt(sumSquares / float64(len(returns)-1))
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev
}

// calculateSortinoRatio calculates the Sortino ratio from returns
func calculateSortinoRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sumDownside := 0.0
	downsideCount := 0
	for _, ret := range returns {
		if ret < 0 {
			sumDownside += ret * ret
			downsideCount++
		}
	}
	if downsideCount == 0 {
		return 0
	}

	downsideDeviation := math.Sqrt(sumDownside / float64(downsideCount))
	if downsideDeviation == 0 {
		return 0
	}
	return meanOf(returns) / downsideDeviation
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Summary returns a human-readable summary of the results
func (r *Results) Summary() string {
	if r.Metrics == nil {
		r.CalculateMetrics()
	}
	if r.Report == nil {
		return "Backtest Results: no report\n"
	}

	return fmt.Sprintf(`
Backtest Results for %s (%v)
=======================
Run: %s
Status: %s
Period: %s to %s
Starting Balance: $%s
Ending Balance: $%s
Shares Owned: %d
Final Value: $%s
Total Return: %s%%
Max Drawdown: %.2f%%

Trade Statistics:
- History Entries: %d
- Filled Trades: %d (%d buys, %d sells)
- Rejected Orders: %d
- Errors: %d
- Winning Sells: %d (%.1f%%)
- Losing Sells: %d
- Net Gain: $%s
- Largest Win: $%s
- Largest Loss: $%s
- Profit Factor: %.2f

Risk Metrics:
- Sharpe Ratio: %.2f
- Sortino Ratio: %.2f
`,
		r.Strategy, r.Tickers,
		r.RunID,
		r.Status,
		r.StartDate.Format(strategy.DateFormat),
		r.EndDate.Format(strategy.DateFormat),
		r.StartingBalance.StringFixed(2),
		r.Position.Balance.StringFixed(2),
		r.Position.SharesOwned,
		r.FinalValue.StringFixed(2),
		r.TotalReturn.StringFixed(2),
		r.Metrics.MaxDrawdownPct,
		r.Metrics.Entries,
		r.Metrics.TotalTrades, r.Metrics.Buys, r.Metrics.Sells,
		r.Metrics.RejectedOrders,
		r.Metrics.Errors,
		r.Metrics.WinningTrades, r.Metrics.WinRate,
		r.Metrics.LosingTrades,
		r.Metrics.NetGain.StringFixed(2),
		r.Metrics.LargestWin.StringFixed(2),
		r.Metrics.LargestLoss.StringFixed(2),
		r.Metrics.ProfitFactor,
		r.Metrics.SharpeRatio,
		r.Metrics.SortinoRatio,
	)
}
