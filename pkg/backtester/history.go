package backtester

import (
	"fmt"
	"maps"

	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/status"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

// EntryContext identifies the snapshot and run-level values an entry is
// evaluated against.
type EntryContext struct {
	DatasetID        string
	Ticker           string
	OriginalBalance  decimal.Decimal
	AcquisitionPrice decimal.Decimal
}

// BuildEntry evaluates an executed order. Net gain is realized only by a
// filled sell: (close - acquisition price) * shares sold. Any fault is
// recorded on the entry with TRADE_ERROR / ALGO_ERROR instead of returned.
func BuildEntry(ec EntryContext, res strategy.OrderResult) (entry strategy.HistoryEntry) {
	entry = strategy.HistoryEntry{
		DatasetID:        ec.DatasetID,
		Ticker:           ec.Ticker,
		Date:             res.Date,
		Side:             res.Side,
		Close:            res.Close,
		Commission:       res.Commission,
		FillPrice:        res.FillPrice,
		Balance:          res.Balance,
		Shares:           res.Shares,
		PrevBalance:      res.PrevBalance,
		PrevShares:       res.PrevShares,
		OriginalBalance:  ec.OriginalBalance,
		AcquisitionPrice: ec.AcquisitionPrice,
		NetGain:          decimal.Zero,
		Status:           res.Status,
		Reason:           res.Reason,
		Details:          maps.Clone(res.Details),
	}
	defer func() {
		if r := recover(); r != nil {
			entry = faulted(entry, fmt.Errorf("evaluating order: %v", r))
		}
	}()

	if !res.Status.Valid() || !(res.Status.IsTrade() || res.Status == status.InvalidInput) {
		return faulted(entry, fmt.Errorf("order result has unexpected status %s", res.Status))
	}
	if ec.AcquisitionPrice.IsNegative() {
		return faulted(entry, fmt.Errorf("acquisition price %s is negative", ec.AcquisitionPrice))
	}

	if res.Filled() && res.Side == strategy.OrderSideSell {
		entry.NetGain = res.Close.Sub(ec.AcquisitionPrice).Mul(decimal.NewFromInt(res.SharesDelta()))
	}
	entry.AlgoStatus = algoStatus(entry.NetGain)
	return entry
}

// BuildHoldEntry evaluates a snapshot where no order was placed by marking
// the open position against its acquisition price.
func BuildHoldEntry(ec EntryContext, snapshot strategy.Snapshot, pos strategy.Position) strategy.HistoryEntry {
	entry := strategy.HistoryEntry{
		DatasetID:        ec.DatasetID,
		Ticker:           ec.Ticker,
		Date:             snapshot.Date,
		Close:            pos.LatestClose,
		Commission:       pos.Commission,
		FillPrice:        decimal.Zero,
		Balance:          pos.Balance,
		Shares:           pos.SharesOwned,
		PrevBalance:      pos.Balance,
		PrevShares:       pos.SharesOwned,
		OriginalBalance:  ec.OriginalBalance,
		AcquisitionPrice: ec.AcquisitionPrice,
		NetGain:          decimal.Zero,
	}

	switch {
	case pos.SharesOwned == 0:
		entry.Status = status.NotRun
	case pos.LatestClose.GreaterThan(ec.AcquisitionPrice):
		entry.Status = status.TradeProfitable
	default:
		entry.Status = status.TradeNotProfitable
	}
	entry.AlgoStatus = algoStatus(entry.NetGain)
	return entry
}

// BuildErrorEntry records a strategy fault for a snapshot
func BuildErrorEntry(ec EntryContext, snapshot strategy.Snapshot, pos strategy.Position, err error) strategy.HistoryEntry {
	entry := BuildHoldEntry(ec, snapshot, pos)
	return faulted(entry, err)
}

func faulted(entry strategy.HistoryEntry, err error) strategy.HistoryEntry {
	entry.NetGain = decimal.Zero
	entry.Status = status.TradeError
	entry.AlgoStatus = status.AlgoError
	entry.Err = err.Error()
	return entry
}

func algoStatus(netGain decimal.Decimal) status.Code {
	if netGain.IsPositive() {
		return status.AlgoProfitable
	}
	return status.AlgoNotProfitable
}
