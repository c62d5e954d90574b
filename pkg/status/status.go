// Package status holds the closed set of outcome codes shared by the order
// executor, the history evaluator, the simulation engine and the publishers.
package status

import (
	"fmt"
)

// Code is an outcome tag. The zero value is Unknown and is never produced by
// the simulation core.
type Code int

const (
	Unknown Code = iota
	Success
	Failed
	Error
	NotRun
	InvalidInput
	NoDatasets
	Aborted
	CompletedWithErrors
	FileFailed
	CacheFailed
	ObjectStoreFailed
	NotifyFailed
	TradeFilled
	TradeNotEnoughFunds
	TradeNoSharesToSell
	TradeProfitable
	TradeNotProfitable
	TradeError
	AlgoProfitable
	AlgoNotProfitable
	AlgoError
)

var names = map[Code]string{
	Unknown:             "UNKNOWN",
	Success:             "SUCCESS",
	Failed:              "FAILED",
	Error:               "ERR",
	NotRun:              "NOT_RUN",
	InvalidInput:        "INVALID",
	NoDatasets:          "NO_DATASETS",
	Aborted:             "ABORTED",
	CompletedWithErrors: "COMPLETED_WITH_ERRORS",
	FileFailed:          "FILE_FAILED",
	CacheFailed:         "REDIS_FAILED",
	ObjectStoreFailed:   "S3_FAILED",
	NotifyFailed:        "SLACK_FAILED",
	TradeFilled:         "TRADE_FILLED",
	TradeNotEnoughFunds: "TRADE_NOT_ENOUGH_FUNDS",
	TradeNoSharesToSell: "TRADE_NO_SHARES_TO_SELL",
	TradeProfitable:     "TRADE_PROFITABLE",
	TradeNotProfitable:  "TRADE_NOT_PROFITABLE",
	TradeError:          "TRADE_ERROR",
	AlgoProfitable:      "ALGO_PROFITABLE",
	AlgoNotProfitable:   "ALGO_NOT_PROFITABLE",
	AlgoError:           "ALGO_ERROR",
}

var byName = func() map[string]Code {
	m := make(map[string]Code, len(names))
	for c, n := range names {
		m[n] = c
	}
	return m
}()

// String returns the stable name of the code.
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Valid reports whether c is a member of the registry other than Unknown.
func (c Code) Valid() bool {
	_, ok := names[c]
	return ok && c != Unknown
}

// IsTrade reports whether c is a trade outcome.
func (c Code) IsTrade() bool {
	return c >= TradeFilled && c <= TradeError
}

// IsAlgo reports whether c is an algorithm-level profitability outcome.
func (c Code) IsAlgo() bool {
	return c >= AlgoProfitable && c <= AlgoError
}

// Parse returns the code with the given stable name.
func Parse(name string) (Code, error) {
	if c, ok := byName[name]; ok {
		return c, nil
	}
	return Unknown, fmt.Errorf("unknown status %q", name)
}

// MarshalText encodes the code as its stable name.
func (c Code) MarshalText() ([]byte, error) {
	if _, ok := names[c]; !ok {
		return nil, fmt.Errorf("cannot marshal unregistered status %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a stable name.
func (c *Code) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
