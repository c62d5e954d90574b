package backtester

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/strategy"
)

// RunRequest describes which datasets a run for one ticker needs
type RunRequest struct {
	Ticker   string          `json:"ticker"`
	Label    string          `json:"label"`
	Balance  decimal.Decimal `json:"balance"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Datasets []string        `json:"datasets"`
}

// BuildRunRequest lists a dataset id for every weekday between start and end,
// both inclusive, in ascending order. Times of day are ignored.
func BuildRunRequest(ticker string, start, end time.Time, balance decimal.Decimal, label string) (RunRequest, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return RunRequest{}, fmt.Errorf("ticker is required")
	}
	if balance.IsNegative() {
		return RunRequest{}, fmt.Errorf("balance %s is negative", balance)
	}

	first := truncateDay(start)
	last := truncateDay(end)
	if last.Before(first) {
		return RunRequest{}, fmt.Errorf("end %s is before start %s", last.Format(strategy.DateFormat), first.Format(strategy.DateFormat))
	}

	req := RunRequest{
		Ticker:   ticker,
		Label:    label,
		Balance:  balance,
		Start:    first,
		End:      last,
		Datasets: make([]string, 0),
	}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		req.Datasets = append(req.Datasets, strategy.DatasetID(ticker, d))
	}
	return req, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
