package main

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/internal/config"
)

func TestNewStrategy(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		wantErr  bool
	}{
		{"base", strategyBase, false},
		{"buy and hold", strategyBuyAndHold, false},
		{"ma crossover", strategyMACrossover, false},
		{"unknown", "martingale", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Backtest.Strategy = tt.strategy

			s, err := newStrategy(cfg, "SPY", decimal.NewFromInt(5000))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newStrategy returned error: %v", err)
			}
			if s.GetName() != tt.strategy+"-SPY" {
				t.Errorf("name = %q", s.GetName())
			}
			if !s.Position().Balance.Equal(decimal.NewFromInt(5000)) || !s.Position().Commission.Equal(decimal.NewFromInt(6)) {
				t.Errorf("position = %+v", *s.Position())
			}
		})
	}
}
