package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"github.com/ridopark/algoreplay/internal/config"
	"github.com/ridopark/algoreplay/internal/data"
	"github.com/ridopark/algoreplay/internal/publish"
	"github.com/ridopark/algoreplay/pkg/backtester"
	"github.com/ridopark/algoreplay/pkg/feed"
	"github.com/ridopark/algoreplay/pkg/logging"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	// Command line flags
	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		symbolsFlag  = flag.String("symbols", "", "Symbols to backtest (comma-separated, e.g., SPY,QQQ)")
		strategyFlag = flag.String("strategy", "", "Strategy to use (base, buy_and_hold, ma_crossover)")
		startDate    = flag.String("start", "2024-01-01", "Start date (YYYY-MM-DD)")
		endDate      = flag.String("end", "2024-12-31", "End date (YYYY-MM-DD)")
		capital      = flag.String("capital", "", "Starting balance per ticker")
		raiseOnError = flag.Bool("raise-on-error", false, "Abort a ticker's run on the first strategy fault")
		showProgress = flag.Bool("progress", true, "Show a progress bar")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 2
	}
	if *symbolsFlag != "" {
		cfg.Backtest.Tickers = strings.Split(*symbolsFlag, ",")
	}
	if *strategyFlag != "" {
		cfg.Backtest.Strategy = *strategyFlag
	}
	if *raiseOnError {
		cfg.Backtest.RaiseOnError = true
	}

	logging.Initialize(cfg.Logging)
	logger := logging.GetLogger("main")

	// Log environment loading status
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("Could not load .env file, using system environment variables")
	}

	balance := cfg.Backtest.BalanceDecimal()
	if *capital != "" {
		balance, err = decimal.NewFromString(*capital)
		if err != nil || balance.IsNegative() {
			logger.Error().Str("capital", *capital).Msg("Invalid starting balance")
			return 2
		}
	}

	start, err := time.Parse(strategy.DateFormat, *startDate)
	if err != nil {
		logger.Error().Err(err).Str("start_date", *startDate).Msg("Invalid start date")
		return 2
	}
	end, err := time.Parse(strategy.DateFormat, *endDate)
	if err != nil {
		logger.Error().Err(err).Str("end_date", *endDate).Msg("Invalid end date")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create data provider")
		return 1
	}
	defer provider.Close()

	source := feed.NewHistoricalFeed(provider, feed.Options{
		Lookback:      cfg.Data.Lookback,
		IncludeMinute: cfg.Data.IncludeMinute,
	})

	runID := "RUN_" + strings.ToUpper(uuid.NewString()[:8])
	tickers := cfg.Backtest.NormalizedTickers()

	logger.Info().
		Str("run_id", runID).
		Strs("symbols", tickers).
		Str("start_date", *startDate).
		Str("end_date", *endDate).
		Str("strategy", cfg.Backtest.Strategy).
		Str("balance", balance.String()).
		Str("commission", cfg.Backtest.CommissionDecimal().String()).
		Msg("Running backtest")

	jobs := make([]backtester.Job, 0, len(tickers))
	total := 0
	for _, ticker := range tickers {
		job, err := loadJob(ctx, cfg, source, ticker, start, end, balance)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("Failed to prepare backtest")
			return 1
		}
		total += len(job.Snapshots)
		jobs = append(jobs, job)
	}

	engineCfg := backtester.Config{RaiseOnError: cfg.Backtest.RaiseOnError}
	if *showProgress && total > 0 {
		engineCfg.Listener = newProgressListener(total)
	}

	if cfg.Publish.Destinations().Any() {
		publisher, err := publish.New(publish.Options{
			OutputDir:  cfg.Publish.OutputDir,
			CachePath:  cacheIf(cfg.Publish),
			BucketDir:  cfg.Publish.BucketDir,
			WebhookURL: cfg.Publish.WebhookURL,
			Timeout:    time.Duration(cfg.Publish.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create publisher")
			return 1
		}
		defer publisher.Close()

		engineCfg.Store = publisher
		engineCfg.Publish = backtester.PublishRequest{
			Label:        cfg.Publish.Label,
			Destinations: cfg.Publish.Destinations(),
			Compress:     cfg.Publish.Compress,
		}
		engineCfg.PublishInputs = backtester.PublishRequest{
			Label:        cfg.Publish.InputsLabel(),
			Destinations: cfg.Publish.Destinations(),
			Compress:     cfg.Publish.Compress,
		}
	}

	results, runErr := backtester.NewRunner(engineCfg, cfg.Backtest.Parallelism).RunAll(ctx, runID, jobs)
	fmt.Fprintln(os.Stderr)

	for _, ticker := range tickers {
		res, ok := results[ticker]
		if !ok {
			continue
		}
		logger.Info().Str("ticker", ticker).Msg("\n" + res.Summary())
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("Backtest failed")
		return 1
	}
	return 0
}

func newProvider(ctx context.Context, cfg *config.Config) (feed.HistoricalDataProvider, error) {
	switch cfg.Data.Source {
	case config.SourceParquet:
		return data.NewParquetProvider(cfg.Data.ParquetDir, cfg.Data.Market), nil
	default:
		logger := logging.GetLogger("main")
		logger.Info().Str("host", cfg.Database.Host).Msg("Connecting to database...")
		return data.NewTimescaleDBProvider(ctx, cfg.Database.ConnectionString())
	}
}

// loadJob lists the weekday datasets for the ticker, loads the snapshots
// the provider has for them and builds the ticker's strategy
func loadJob(ctx context.Context, cfg *config.Config, source feed.SnapshotSource, ticker string, start, end time.Time, balance decimal.Decimal) (backtester.Job, error) {
	req, err := backtester.BuildRunRequest(ticker, start, end, balance, cfg.Publish.Label)
	if err != nil {
		return backtester.Job{}, err
	}

	snapshots, err := source.Snapshots(ctx, req.Ticker, req.Start, req.End)
	if err != nil {
		return backtester.Job{}, err
	}

	if missing := len(req.Datasets) - len(snapshots); missing > 0 {
		logger := logging.GetLogger("main")
		logger.Debug().
			Str("ticker", req.Ticker).
			Int("requested", len(req.Datasets)).
			Int("missing", missing).
			Msg("Some weekdays have no data")
	}

	s, err := newStrategy(cfg, req.Ticker, req.Balance)
	if err != nil {
		return backtester.Job{}, err
	}
	return backtester.Job{Ticker: req.Ticker, Strategy: s, Snapshots: snapshots}, nil
}

func cacheIf(p config.Publish) string {
	if !p.CacheEnabled {
		return ""
	}
	return p.CachePath
}

// newProgressListener advances a progress bar once per processed snapshot
func newProgressListener(total int) backtester.Listener {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	return backtester.ListenerFunc(func(event backtester.Event) {
		if event.GetType() == backtester.EventTypeSnapshot {
			_ = bar.Add(1)
		}
	})
}
