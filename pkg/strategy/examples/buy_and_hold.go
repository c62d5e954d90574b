package examples

import (
	"github.com/ridopark/algoreplay/pkg/strategy"
)

// BuyAndHoldStrategy buys once with most of the balance and never sells
type BuyAndHoldStrategy struct {
	*strategy.BaseStrategy
	allocator *strategy.CapitalAllocator
	hasBought bool
}

// NewBuyAndHoldStrategy creates a new buy-and-hold strategy
func NewBuyAndHoldStrategy(cfg strategy.Config) (*BuyAndHoldStrategy, error) {
	base, err := strategy.NewBaseStrategy(cfg)
	if err != nil {
		return nil, err
	}

	return &BuyAndHoldStrategy{
		BaseStrategy: base,
		allocator:    strategy.NewCapitalAllocator(strategy.DefaultAllocationConfig()),
	}, nil
}

// Process buys on the first snapshot with a usable close
func (s *BuyAndHoldStrategy) Process(runID, ticker string, snapshot strategy.Snapshot) (*strategy.OrderRequest, error) {
	if s.hasBought {
		return nil, nil
	}

	pos := s.Position()
	shares := s.allocator.SharesFor(*pos, pos.LatestClose)
	if shares <= 0 {
		return nil, nil
	}

	s.hasBought = true
	order := s.CreateOrder(ticker, strategy.OrderSideBuy, shares, snapshot, "buy_and_hold")
	order.Details["run_id"] = runID
	return &order, nil
}
