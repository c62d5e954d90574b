package strategy

import (
	"github.com/shopspring/decimal"
)

// AllocationMethod defines how many shares an entry signal should buy
type AllocationMethod string

const (
	// AllocateFixed always buys a fixed number of shares
	AllocateFixed AllocationMethod = "fixed"

	// AllocateCashFraction spends a fraction of the available balance
	AllocateCashFraction AllocationMethod = "cash_fraction"
)

// AllocationConfig configures share sizing
type AllocationConfig struct {
	Method        AllocationMethod
	FixedShares   int64
	PositionSize  decimal.Decimal // fraction of balance, 0..1
	MinCashBuffer decimal.Decimal // cash that is never spent
}

// DefaultAllocationConfig returns a sensible default configuration
func DefaultAllocationConfig() AllocationConfig {
	return AllocationConfig{
		Method:        AllocateCashFraction,
		FixedShares:   DefaultBuyShares,
		PositionSize:  decimal.NewFromFloat(0.95),
		MinCashBuffer: decimal.NewFromInt(100),
	}
}

// CapitalAllocator sizes orders against a position's balance
type CapitalAllocator struct {
	config AllocationConfig
}

// NewCapitalAllocator creates a new capital allocator with the given configuration
func NewCapitalAllocator(config AllocationConfig) *CapitalAllocator {
	return &CapitalAllocator{
		config: config,
	}
}

// SharesFor returns the number of whole shares to buy at close. The result is
// always affordable including commission, or zero.
func (ca *CapitalAllocator) SharesFor(pos Position, close decimal.Decimal) int64 {
	if close.Sign() <= 0 {
		return 0
	}

	switch ca.config.Method {
	case AllocateFixed:
		if ca.config.FixedShares <= 0 {
			return 0
		}
		cost := close.Mul(decimal.NewFromInt(ca.config.FixedShares)).Add(pos.Commission)
		if cost.GreaterThan(pos.Balance) {
			return 0
		}
		return ca.config.FixedShares
	default:
		budget := pos.Balance.Sub(ca.config.MinCashBuffer).Mul(ca.config.PositionSize)
		return MaxAffordableShares(budget, close, pos.Commission)
	}
}

// MaxAffordableShares returns floor((budget - commission) / close), never negative
func MaxAffordableShares(budget, close, commission decimal.Decimal) int64 {
	if close.Sign() <= 0 {
		return 0
	}
	spendable := budget.Sub(commission)
	if spendable.Sign() <= 0 {
		return 0
	}
	return spendable.Div(close).Floor().IntPart()
}
