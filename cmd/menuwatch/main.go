package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"menuwatch/config"
	"menuwatch/models"
	"menuwatch/pipeline"
	"menuwatch/scraper"
	"menuwatch/store"
)

func main() {
	// optional .env for local development; missing file is fine
	_ = godotenv.Load()

	cfg := config.DefaultConfig()
	if value, ok := config.EnvString("MENUWATCH_URL"); ok {
		cfg.SourceURL = value
	}
	if value, ok := config.EnvString("MENUWATCH_STORE"); ok {
		cfg.StoreBackend = value
	}
	if value, ok := config.EnvString("MENUWATCH_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	if value, ok, err := config.EnvInt("MENUWATCH_RETRIES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid MENUWATCH_RETRIES: %v\n", err)
		os.Exit(1)
	} else if ok {
		cfg.MaxRetries = value
	}

	configFile := flag.String("config", "", "Optional TOML config file")
	sourceURL := flag.String("url", cfg.SourceURL, "Menu page URL")
	backend := flag.String("store", cfg.StoreBackend, "Store backend: csv, sqlite, postgres, or sheets")
	storeDir := flag.String("store-dir", cfg.StoreDir, "Directory for the csv backend")
	sqlitePath := flag.String("sqlite", cfg.SQLitePath, "Database path for the sqlite backend")
	postgresDSN := flag.String("postgres-dsn", "", "Connection string for the postgres backend")
	spreadsheetID := flag.String("spreadsheet-id", "", "Spreadsheet ID for the sheets backend")
	credentialsFile := flag.String("credentials", "", "Service account credentials for the sheets backend")
	storeRate := flag.Float64("store-rate", cfg.StoreRateLimit, "Store request rate limit per second (0 = unlimited)")
	maxRetries := flag.Int("max-retries", cfg.MaxRetries, "Maximum fetch retry attempts")
	timeout := flag.Duration("timeout", cfg.Timeout, "HTTP request timeout")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	dryRun := flag.Bool("dry-run", false, "Compute the diff without writing to the store")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if *configFile != "" {
		if err := cfg.LoadFile(*configFile); err != nil {
			slog.Error("loading config file", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// flags passed explicitly win over env and config file
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["url"] {
		cfg.SourceURL = *sourceURL
	}
	if set["store"] {
		cfg.StoreBackend = *backend
	}
	if set["store-dir"] {
		cfg.StoreDir = *storeDir
	}
	if set["sqlite"] {
		cfg.SQLitePath = *sqlitePath
	}
	if set["postgres-dsn"] {
		cfg.PostgresDSN = *postgresDSN
	}
	if set["spreadsheet-id"] {
		cfg.SpreadsheetID = *spreadsheetID
	}
	if set["credentials"] {
		cfg.CredentialsFile = *credentialsFile
	}
	if set["store-rate"] {
		cfg.StoreRateLimit = *storeRate
	}
	if set["max-retries"] {
		cfg.MaxRetries = *maxRetries
	}
	if set["timeout"] {
		cfg.Timeout = *timeout
	}
	if set["metrics-addr"] {
		cfg.MetricsAddr = *metricsAddr
	}
	cfg.DryRun = *dryRun
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := scraper.NewMetrics()

	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("initialising store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if closer, ok := st.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				slog.Error("close store", slog.Any("error", err))
			}
		}
	}()
	if cfg.StoreRateLimit > 0 {
		st = store.RateLimited(st, cfg.StoreRateLimit, cfg.StoreRateBurst)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting run",
		slog.String("url", cfg.SourceURL),
		slog.String("store", cfg.StoreBackend),
		slog.Bool("dry_run", cfg.DryRun),
	)

	runner := &pipeline.Runner{
		Fetcher: fetcher,
		Store:   st,
		Metrics: metrics,
		DryRun:  cfg.DryRun,
	}

	result, err := runner.Run(ctx)
	if err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result)
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendCSV:
		return store.NewCSVStore(cfg.StoreDir)
	case config.BackendSQLite:
		return store.NewSQLiteStore(cfg.SQLitePath)
	case config.BackendPostgres:
		return store.NewPostgresStore(cfg.PostgresDSN)
	case config.BackendSheets:
		return store.NewSheetsStore(ctx, cfg.SpreadsheetID, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}
}

func printSummary(result *models.RunResult) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	if result.DryRun {
		fmt.Println("Run complete (dry run, nothing persisted)")
	} else {
		fmt.Println("Run complete")
	}
	fmt.Printf("  Run ID:          %s\n", result.RunID)
	fmt.Printf("  Rows fetched:    %d\n", result.RowsFetched)
	fmt.Printf("  Section headers: %d\n", result.HeaderRows)
	fmt.Printf("  Rows skipped:    %d\n", result.SkippedRows)
	fmt.Printf("  Records:         %d\n", result.RecordCount)
	fmt.Printf("  Added:           %d\n", result.Added)
	fmt.Printf("  Removed:         %d\n", result.Removed)
	fmt.Printf("  Field changes:   %d\n", result.FieldChanges)
	if result.ParseWarnings > 0 {
		fmt.Printf("  Parse warnings:  %d\n", result.ParseWarnings)
	}
	if result.Collisions > 0 {
		fmt.Printf("  Collisions:      %d\n", result.Collisions)
	}
	fmt.Printf("  Duration:        %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
