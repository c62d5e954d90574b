package backtester

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ridopark/algoreplay/pkg/logging"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

// Job is one ticker's simulation. Each job must own its strategy; strategies
// are never shared between jobs.
type Job struct {
	Ticker    string
	Strategy  strategy.Strategy
	Snapshots []strategy.Snapshot
}

// Runner executes independent per-ticker runs in parallel
type Runner struct {
	config      Config
	parallelism int
	logger      zerolog.Logger
}

// NewRunner creates a runner that runs at most parallelism jobs at once.
// A parallelism below 1 runs jobs one at a time.
func NewRunner(cfg Config, parallelism int) *Runner {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Runner{
		config:      cfg,
		parallelism: parallelism,
		logger:      logging.GetLogger("runner"),
	}
}

// RunAll runs every job and returns the results keyed by ticker. A failing
// job does not cancel the others; the first error is returned once all
// jobs have finished. Cancelling ctx stops every job at its next snapshot.
func (r *Runner) RunAll(ctx context.Context, runID string, jobs []Job) (map[string]*Results, error) {
	seen := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		if _, dup := seen[job.Ticker]; dup {
			return nil, fmt.Errorf("duplicate job for ticker %s", job.Ticker)
		}
		seen[job.Ticker] = struct{}{}
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*Results, len(jobs))
		g       errgroup.Group
	)
	g.SetLimit(r.parallelism)

	r.logger.Info().Str("run_id", runID).Int("jobs", len(jobs)).Int("parallelism", r.parallelism).Msg("Starting runs")

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			cfg := r.config
			if cfg.Store != nil {
				cfg.Publish.Label = ArtifactLabel(cfg.Publish.Label, runID, job.Ticker)
				if cfg.PublishInputs.Label != "" {
					cfg.PublishInputs.Label = ArtifactLabel(cfg.PublishInputs.Label, runID, job.Ticker)
				}
			}

			res, err := NewEngine(job.Strategy, cfg).Run(ctx, runID, job.Ticker, job.Snapshots)

			mu.Lock()
			results[job.Ticker] = res
			mu.Unlock()

			if err != nil {
				return fmt.Errorf("ticker %s: %w", job.Ticker, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		r.logger.Error().Err(err).Str("run_id", runID).Msg("Runs finished with errors")
	}
	return results, err
}

// ArtifactLabel scopes a label prefix to a run and ticker
func ArtifactLabel(prefix, runID, ticker string) string {
	if prefix == "" {
		prefix = "backtest"
	}
	return fmt.Sprintf("%s_%s_%s", prefix, runID, ticker)
}
