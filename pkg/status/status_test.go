package status

import (
	"encoding/json"
	"testing"
)

func TestNamesRoundTrip(t *testing.T) {
	for code, name := range names {
		got, err := Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", name, err)
		}
		if got != code {
			t.Errorf("Parse(%q) = %v, want %v", name, got, code)
		}
		if code.String() != name {
			t.Errorf("String() = %q, want %q", code.String(), name)
		}
	}
}

func TestNamesAreUnique(t *testing.T) {
	if len(byName) != len(names) {
		t.Fatalf("registry has %d codes but %d distinct names", len(names), len(byName))
	}
}

func TestParseUnknown(t *testing.T) {
	if _, err := Parse("NOT_A_STATUS"); err == nil {
		t.Fatal("expected error for unknown status name")
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{TradeFilled, true},
		{Success, true},
		{Unknown, false},
		{Code(999), false},
	}
	for _, tt := range tests {
		if got := tt.code.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestCategories(t *testing.T) {
	if !TradeNoSharesToSell.IsTrade() || TradeNoSharesToSell.IsAlgo() {
		t.Error("TradeNoSharesToSell should be a trade code only")
	}
	if !AlgoNotProfitable.IsAlgo() || AlgoNotProfitable.IsTrade() {
		t.Error("AlgoNotProfitable should be an algo code only")
	}
	if Success.IsTrade() || Success.IsAlgo() {
		t.Error("Success is neither a trade nor an algo code")
	}
}

func TestJSON(t *testing.T) {
	type entry struct {
		Status Code `json:"status"`
	}
	b, err := json.Marshal(entry{Status: TradeNotEnoughFunds})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"status":"TRADE_NOT_ENOUGH_FUNDS"}` {
		t.Errorf("unexpected json %s", b)
	}

	var decoded entry
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Status != TradeNotEnoughFunds {
		t.Errorf("decoded %v, want %v", decoded.Status, TradeNotEnoughFunds)
	}

	if _, err := json.Marshal(entry{Status: Code(-3)}); err == nil {
		t.Error("expected error marshaling unregistered code")
	}
}
