package backtester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/pkg/logging"
	"github.com/ridopark/algoreplay/pkg/status"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

var (
	ErrNoSnapshots         = errors.New("no snapshots to process")
	ErrSnapshotsOutOfOrder = errors.New("snapshots are not in ascending date order")
	ErrStrategyFault       = errors.New("strategy fault")
)

// StrategyFault is an error or panic raised by a strategy's decision hook,
// or a fill that could not be committed to the position.
type StrategyFault struct {
	DatasetID string
	Date      time.Time
	Cause     error
}

func (f *StrategyFault) Error() string {
	return fmt.Sprintf("strategy fault at %s (%s): %v", f.DatasetID, f.Date.Format(strategy.DateFormat), f.Cause)
}

func (f *StrategyFault) Unwrap() []error {
	return []error{ErrStrategyFault, f.Cause}
}

// Config controls a single engine run
type Config struct {
	// RaiseOnError aborts the run on the first strategy fault instead of
	// recording it and moving on.
	RaiseOnError bool

	// Listener receives run events. Optional.
	Listener Listener

	// Store and Publish persist the results once the run is done. Optional.
	Store   ArtifactStore
	Publish PublishRequest

	// PublishInputs stores the input snapshots through Store at the end of
	// the run. Skipped when its label is empty.
	PublishInputs PublishRequest
}

// Engine drives one strategy over one ticker's snapshots
type Engine struct {
	strategy  strategy.Strategy
	broker    *Broker
	portfolio *Portfolio
	results   *Results
	snapshots []strategy.Snapshot
	config    Config
	logger    zerolog.Logger
}

// NewEngine creates a new backtesting engine
func NewEngine(s strategy.Strategy, cfg Config) *Engine {
	logger := logging.GetLogger("backtester")
	return &Engine{
		strategy:  s,
		broker:    NewBroker(logging.GetSubLogger(logger, "broker")),
		portfolio: NewPortfolio(s.Position()),
		config:    cfg,
		logger:    logger,
	}
}

// Run processes the snapshots in order. The returned results are never nil;
// the error is non-nil only when the run ends INVALID or ABORTED.
func (e *Engine) Run(ctx context.Context, runID, ticker string, snapshots []strategy.Snapshot) (*Results, error) {
	report := e.strategy.Result()
	report.RunID = runID
	if len(report.Tickers) == 0 {
		report.Tickers = []string{ticker}
	}
	e.results = &Results{Report: report}
	e.snapshots = snapshots

	logger := e.logger.With().Str("run_id", runID).Str("ticker", ticker).Str("strategy", e.strategy.GetName()).Logger()
	logger.Info().Int("snapshots", len(snapshots)).Msg("Starting backtest execution")

	if len(snapshots) == 0 {
		logger.Warn().Msg("No snapshots for ticker")
		e.finish(ctx, status.NoDatasets, ErrNoSnapshots)
		return e.results, nil
	}
	if err := validateOrder(snapshots); err != nil {
		logger.Error().Err(err).Msg("Rejecting snapshot sequence")
		e.finish(ctx, status.InvalidInput, err)
		return e.results, err
	}

	for i, snap := range snapshots {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Int("processed", i).Msg("Backtest cancelled")
			e.finish(ctx, status.Aborted, err)
			return e.results, fmt.Errorf("run cancelled after %d snapshots: %w", i, err)
		}

		entry, err := e.step(runID, ticker, snap)
		if err != nil {
			logger.Error().Err(err).Str("ds_id", snap.ID).Msg("Aborting backtest")
			e.finish(ctx, status.Aborted, err)
			return e.results, err
		}
		if entry != nil {
			e.strategy.Record(*entry)
		}
		e.portfolio.MarkToMarket(snap.Date)

		e.emit(SnapshotEvent{Ticker: ticker, Index: i, Total: len(snapshots), Entry: entry, Date: snap.Date})
	}

	final := status.Success
	for _, h := range report.History {
		if h.Err != "" {
			final = status.CompletedWithErrors
			break
		}
	}
	e.finish(ctx, final, nil)

	logger.Info().
		Int("entries", len(report.History)).
		Str("status", final.String()).
		Str("balance", report.Position.Balance.String()).
		Msg("Backtest execution completed")
	return e.results, nil
}

// step processes one snapshot. A non-nil error means the run must abort.
func (e *Engine) step(runID, ticker string, snap strategy.Snapshot) (*strategy.HistoryEntry, error) {
	if bar, ok := snap.LatestBar(); ok {
		e.portfolio.SetLatest(bar)
	} else {
		e.portfolio.ClearLatest()
	}

	pos := e.portfolio.Position()
	ec := EntryContext{
		DatasetID:        snap.ID,
		Ticker:           ticker,
		OriginalBalance:  e.results.Report.StartingBalance,
		AcquisitionPrice: pos.AcquisitionPrice,
	}

	order, err := e.process(runID, ticker, snap)
	if err != nil {
		return e.fault(ec, snap, pos, err)
	}

	if order == nil {
		if !e.strategy.RecordIdle() {
			return nil, nil
		}
		entry := BuildHoldEntry(ec, snap, pos)
		return &entry, nil
	}

	req := *order
	req.Position = pos
	req.Date = snap.Date
	if req.Ticker == "" {
		req.Ticker = ticker
	}
	if req.Close.IsZero() {
		req.Close = pos.LatestClose
	}

	var res strategy.OrderResult
	if req.Close.Sign() <= 0 {
		e.logger.Warn().Str("ds_id", snap.ID).Str("close", req.Close.String()).Msg("Rejecting order without a price")
		res = rejected(req, status.InvalidInput, decimal.Zero)
	} else {
		res = e.broker.Execute(req)
	}
	if err := e.portfolio.Apply(res); err != nil {
		return e.fault(ec, snap, pos, err)
	}
	e.emit(OrderEvent{Result: res})

	entry := BuildEntry(ec, res)
	return &entry, nil
}

func (e *Engine) fault(ec EntryContext, snap strategy.Snapshot, pos strategy.Position, cause error) (*strategy.HistoryEntry, error) {
	err := &StrategyFault{DatasetID: snap.ID, Date: snap.Date, Cause: cause}
	if e.config.RaiseOnError {
		return nil, err
	}
	e.logger.Warn().Err(err).Msg("Recording strategy fault")
	entry := BuildErrorEntry(ec, snap, pos, err)
	return &entry, nil
}

// process invokes the decision hook, converting a panic into an error
func (e *Engine) process(runID, ticker string, snap strategy.Snapshot) (order *strategy.OrderRequest, err error) {
	defer func() {
		if r := recover(); r != nil {
			order = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.strategy.Process(runID, ticker, snap)
}

func (e *Engine) finish(ctx context.Context, code status.Code, err error) {
	report := e.strategy.Result()
	report.Status = code
	if err != nil {
		report.Err = err.Error()
	}

	e.results.Report = report
	e.results.EquityCurve = e.portfolio.GetEquityCurve()
	e.results.MaxDrawdown = e.portfolio.GetMaxDrawdown()
	e.results.FinalValue = e.portfolio.GetTotalValue()
	e.results.TotalReturn = e.portfolio.GetTotalReturn()
	if n := len(e.results.EquityCurve); n > 0 {
		e.results.StartDate = e.results.EquityCurve[0].Timestamp
		e.results.EndDate = e.results.EquityCurve[n-1].Timestamp
	}
	e.results.CalculateMetrics()

	e.emit(DoneEvent{Ticker: firstTicker(report), Status: code, At: time.Now()})

	if e.config.Store == nil {
		return
	}
	// a cancelled run still publishes what it has
	ctx = context.WithoutCancel(ctx)
	if e.config.PublishInputs.Label != "" && len(e.snapshots) > 0 {
		e.results.InputsPublishStatus = e.store(ctx, e.config.PublishInputs, e.snapshots)
	}
	if code != status.InvalidInput {
		e.results.PublishStatus = e.store(ctx, e.config.Publish, e.results)
	}
}

func (e *Engine) store(ctx context.Context, req PublishRequest, payload any) status.Code {
	code := e.config.Store.Store(ctx, req, payload)
	if code != status.Success && code != status.NotRun {
		e.logger.Error().Str("status", code.String()).Str("label", req.Label).Msg("Failed to publish artifact")
	}
	return code
}

func (e *Engine) emit(event Event) {
	if e.config.Listener != nil {
		e.config.Listener.OnEvent(event)
	}
}

// GetResults returns the results of the last run
func (e *Engine) GetResults() *Results {
	return e.results
}

func validateOrder(snapshots []strategy.Snapshot) error {
	for i := 1; i < len(snapshots); i++ {
		if !snapshots[i].Date.After(snapshots[i-1].Date) {
			return fmt.Errorf("%w: %s (%s) follows %s (%s)", ErrSnapshotsOutOfOrder,
				snapshots[i].ID, snapshots[i].Date.Format(strategy.DateFormat),
				snapshots[i-1].ID, snapshots[i-1].Date.Format(strategy.DateFormat))
		}
	}
	return nil
}

func firstTicker(report *strategy.Report) string {
	if len(report.Tickers) == 0 {
		return ""
	}
	return report.Tickers[0]
}
