package backtester

import (
	"maps"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/status"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

// Broker simulates order execution for backtesting. It never mutates the
// position it is handed; callers apply the returned result.
type Broker struct {
	logger zerolog.Logger
}

// NewBroker creates a new simulated broker
func NewBroker(logger zerolog.Logger) *Broker {
	return &Broker{logger: logger}
}

// Execute dispatches the request to the buy or sell path
func (b *Broker) Execute(req strategy.OrderRequest) strategy.OrderResult {
	var res strategy.OrderResult
	switch req.Side {
	case strategy.OrderSideBuy:
		res = ExecuteBuy(req)
	case strategy.OrderSideSell:
		res = ExecuteSell(req)
	default:
		res = rejected(req, status.InvalidInput, decimal.Zero)
	}

	b.logger.Debug().
		Str("ticker", req.Ticker).
		Str("side", string(req.Side)).
		Int64("requested", req.Shares).
		Str("close", req.Close.String()).
		Str("fill_price", res.FillPrice.String()).
		Str("status", res.Status.String()).
		Msg("Order executed")

	return res
}

// ExecuteBuy fills shares*close + commission against the balance. There are
// no partial fills.
func ExecuteBuy(req strategy.OrderRequest) strategy.OrderResult {
	if req.Shares <= 0 {
		return rejected(req, status.InvalidInput, decimal.Zero)
	}

	pos := req.Position
	fillPrice := req.Close.Mul(decimal.NewFromInt(req.Shares)).Add(pos.Commission)
	if fillPrice.GreaterThan(pos.Balance) {
		return rejected(req, status.TradeNotEnoughFunds, fillPrice)
	}

	res := newResult(req, status.TradeFilled, fillPrice)
	res.Balance = pos.Balance.Sub(fillPrice)
	res.Shares = pos.SharesOwned + req.Shares
	return res
}

// ExecuteSell credits shares*close + commission to the balance. Checks run in
// order: nothing owned, non-positive request, balance below commission.
// Requests above the owned amount are clamped to it.
func ExecuteSell(req strategy.OrderRequest) strategy.OrderResult {
	pos := req.Position
	if pos.SharesOwned <= 0 {
		return rejected(req, status.TradeNoSharesToSell, decimal.Zero)
	}
	if req.Shares <= 0 {
		return rejected(req, status.InvalidInput, decimal.Zero)
	}
	if pos.Balance.LessThan(pos.Commission) {
		return rejected(req, status.TradeNotEnoughFunds, decimal.Zero)
	}

	shares := req.Shares
	if shares > pos.SharesOwned {
		shares = pos.SharesOwned
	}

	proceeds := req.Close.Mul(decimal.NewFromInt(shares)).Add(pos.Commission)
	res := newResult(req, status.TradeFilled, proceeds)
	res.Balance = pos.Balance.Add(proceeds)
	res.Shares = pos.SharesOwned - shares
	return res
}

func rejected(req strategy.OrderRequest, code status.Code, fillPrice decimal.Decimal) strategy.OrderResult {
	res := newResult(req, code, fillPrice)
	res.Balance = req.Position.Balance
	res.Shares = req.Position.SharesOwned
	return res
}

func newResult(req strategy.OrderRequest, code status.Code, fillPrice decimal.Decimal) strategy.OrderResult {
	return strategy.OrderResult{
		Status:      code,
		Side:        req.Side,
		Ticker:      req.Ticker,
		Date:        req.Date,
		Close:       req.Close,
		Commission:  req.Position.Commission,
		Requested:   req.Shares,
		FillPrice:   fillPrice,
		PrevBalance: req.Position.Balance,
		PrevShares:  req.Position.SharesOwned,
		Details:     maps.Clone(req.Details),
		Reason:      req.Reason,
		Key:         req.Key,
	}
}
