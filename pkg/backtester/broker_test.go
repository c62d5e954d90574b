package backtester

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/ridopark/algoreplay/pkg/status"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

func TestExecuteBuy(t *testing.T) {
	tests := []struct {
		name        string
		req         strategy.OrderRequest
		wantStatus  status.Code
		wantFill    string
		wantBalance string
		wantShares  int64
	}{
		{
			name:        "filled",
			req:         order(strategy.OrderSideBuy, 5, "280", "10000", "12", 10),
			wantStatus:  status.TradeFilled,
			wantFill:    "1412",
			wantBalance: "8588",
			wantShares:  15,
		},
		{
			name:        "not enough funds",
			req:         order(strategy.OrderSideBuy, 5, "280", "1411", "12", 10),
			wantStatus:  status.TradeNotEnoughFunds,
			wantFill:    "1412",
			wantBalance: "1411",
			wantShares:  10,
		},
		{
			name:        "exactly affordable",
			req:         order(strategy.OrderSideBuy, 5, "280", "1412", "12", 0),
			wantStatus:  status.TradeFilled,
			wantFill:    "1412",
			wantBalance: "0",
			wantShares:  5,
		},
		{
			name:        "zero shares",
			req:         order(strategy.OrderSideBuy, 0, "280", "10000", "12", 10),
			wantStatus:  status.InvalidInput,
			wantFill:    "0",
			wantBalance: "10000",
			wantShares:  10,
		},
		{
			name:        "negative shares",
			req:         order(strategy.OrderSideBuy, -3, "280", "10000", "12", 10),
			wantStatus:  status.InvalidInput,
			wantFill:    "0",
			wantBalance: "10000",
			wantShares:  10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ExecuteBuy(tt.req)
			if res.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", res.Status, tt.wantStatus)
			}
			if !res.FillPrice.Equal(dec(tt.wantFill)) {
				t.Errorf("fill price = %s, want %s", res.FillPrice, tt.wantFill)
			}
			if !res.Balance.Equal(dec(tt.wantBalance)) {
				t.Errorf("balance = %s, want %s", res.Balance, tt.wantBalance)
			}
			if res.Shares != tt.wantShares {
				t.Errorf("shares = %d, want %d", res.Shares, tt.wantShares)
			}
			if !res.PrevBalance.Equal(tt.req.Position.Balance) || res.PrevShares != tt.req.Position.SharesOwned {
				t.Errorf("prev = %s/%d, want %s/%d", res.PrevBalance, res.PrevShares,
					tt.req.Position.Balance, tt.req.Position.SharesOwned)
			}
		})
	}
}

func TestExecuteSell(t *testing.T) {
	tests := []struct {
		name        string
		req         strategy.OrderRequest
		wantStatus  status.Code
		wantFill    string
		wantBalance string
		wantShares  int64
	}{
		{
			name:        "filled",
			req:         order(strategy.OrderSideSell, 7, "280", "10000", "11.5", 13),
			wantStatus:  status.TradeFilled,
			wantFill:    "1971.5",
			wantBalance: "11971.5",
			wantShares:  6,
		},
		{
			name:        "nothing owned",
			req:         order(strategy.OrderSideSell, 7, "280", "10000", "11.5", 0),
			wantStatus:  status.TradeNoSharesToSell,
			wantFill:    "0",
			wantBalance: "10000",
			wantShares:  0,
		},
		{
			name:        "nothing owned beats invalid request",
			req:         order(strategy.OrderSideSell, 0, "0", "0", "11.5", 0),
			wantStatus:  status.TradeNoSharesToSell,
			wantFill:    "0",
			wantBalance: "0",
			wantShares:  0,
		},
		{
			name:        "nothing owned beats low balance",
			req:         order(strategy.OrderSideSell, 7, "280", "9", "11.5", 0),
			wantStatus:  status.TradeNoSharesToSell,
			wantFill:    "0",
			wantBalance: "9",
			wantShares:  0,
		},
		{
			name:        "balance below commission",
			req:         order(strategy.OrderSideSell, 7, "280", "9", "11.5", 13),
			wantStatus:  status.TradeNotEnoughFunds,
			wantFill:    "0",
			wantBalance: "9",
			wantShares:  13,
		},
		{
			name:        "clamped to owned",
			req:         order(strategy.OrderSideSell, 20, "10", "100", "1", 4),
			wantStatus:  status.TradeFilled,
			wantFill:    "41",
			wantBalance: "141",
			wantShares:  0,
		},
		{
			name:        "zero shares",
			req:         order(strategy.OrderSideSell, 0, "280", "10000", "11.5", 13),
			wantStatus:  status.InvalidInput,
			wantFill:    "0",
			wantBalance: "10000",
			wantShares:  13,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ExecuteSell(tt.req)
			if res.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", res.Status, tt.wantStatus)
			}
			if !res.FillPrice.Equal(dec(tt.wantFill)) {
				t.Errorf("fill price = %s, want %s", res.FillPrice, tt.wantFill)
			}
			if !res.Balance.Equal(dec(tt.wantBalance)) {
				t.Errorf("balance = %s, want %s", res.Balance, tt.wantBalance)
			}
			if res.Shares != tt.wantShares {
				t.Errorf("shares = %d, want %d", res.Shares, tt.wantShares)
			}
		})
	}
}

func TestExecuteDoesNotMutateRequest(t *testing.T) {
	req := order(strategy.OrderSideBuy, 5, "280", "10000", "12", 10)
	res := NewBroker(zerolog.Nop()).Execute(req)
	if !res.Filled() {
		t.Fatalf("expected fill, got %s", res.Status)
	}
	if !req.Position.Balance.Equal(dec("10000")) || req.Position.SharesOwned != 10 {
		t.Errorf("request position changed to %s/%d", req.Position.Balance, req.Position.SharesOwned)
	}

	res.Details["note"] = "changed"
	if req.Details["note"] != "test" {
		t.Error("result details share storage with the request")
	}
}

func TestExecuteEchoesRequest(t *testing.T) {
	req := order(strategy.OrderSideSell, 7, "280", "10000", "11.5", 13)
	res := NewBroker(zerolog.Nop()).Execute(req)

	if res.Ticker != "SPY" || res.Reason != "test order" || res.Key != "ORD_test" {
		t.Errorf("echoed fields = %q/%q/%q", res.Ticker, res.Reason, res.Key)
	}
	if !res.Date.Equal(req.Date) || !res.Close.Equal(req.Close) || !res.Commission.Equal(dec("11.5")) {
		t.Errorf("echoed date/close/commission = %s/%s/%s", res.Date, res.Close, res.Commission)
	}
	if res.Requested != 7 || res.SharesDelta() != 7 {
		t.Errorf("requested/delta = %d/%d, want 7/7", res.Requested, res.SharesDelta())
	}
}

func TestExecuteUnknownSide(t *testing.T) {
	req := order("HOLD", 5, "280", "10000", "12", 10)
	res := NewBroker(zerolog.Nop()).Execute(req)
	if res.Status != status.InvalidInput {
		t.Errorf("status = %s, want %s", res.Status, status.InvalidInput)
	}
	if !res.Balance.Equal(dec("10000")) || res.Shares != 10 {
		t.Errorf("position changed to %s/%d", res.Balance, res.Shares)
	}
}
