package main

import (
	"context"
	"fmt"
	"io"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"klinefetch/config"
	"klinefetch/internal/adapters/binanceclient"
	"klinefetch/internal/adapters/logger"
	"klinefetch/internal/adapters/sqlite"
	"klinefetch/internal/app"
	"klinefetch/internal/ports"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("FATAL: Failed to load configuration: %v", err)
		return 2
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Exchange Client (Binance Adapter)
	client, err := binanceclient.New(binanceclient.Config{
		BaseURL:    cfg.BaseURL,
		UseTestnet: cfg.IsTestnet,
		Timeout:    cfg.HTTPTimeout,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		return 1
	}

	if cfg.PingBeforeFetch {
		if err := checkExchange(ctx, client, appLogger); err != nil {
			appLogger.Error(ctx, err, "FATAL: Exchange is not reachable", map[string]interface{}{"baseURL": client.BaseURL()})
			return 1
		}
	}

	// 4. Initialize Repository (optional)
	pipelineCfg := app.Config{Fetcher: client, Logger: appLogger, Concurrency: cfg.Concurrency}
	if cfg.DBPath != "" {
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
			return 1
		}
		defer func() {
			if err := repo.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing database repository")
			}
		}()
		pipelineCfg.Store = repo
	}

	pipeline, err := app.NewPipeline(pipelineCfg)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize pipeline")
		return 1
	}

	// 5. Run one pipeline per symbol
	reqs := make([]app.Request, 0, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		reqs = append(reqs, app.Request{Symbol: symbol, Interval: cfg.Interval, Limit: cfg.Limit})
	}

	results, err := pipeline.RunAll(ctx, reqs)
	if err != nil {
		appLogger.Error(ctx, err, "Kline pipeline failed", map[string]interface{}{"kind": app.ErrorKind(err)})
		return 1
	}

	// 6. Export tables
	for _, res := range results {
		if err := export(res, cfg.OutputDir, os.Stdout); err != nil {
			appLogger.Error(ctx, err, "Error writing kline table", map[string]interface{}{"symbol": res.Symbol})
			return 1
		}
		appLogger.Info(ctx, "Kline table exported", map[string]interface{}{"symbol": res.Symbol, "interval": res.Interval, "rows": res.Table.Height()})
	}
	return 0
}

// checkExchange pings the exchange and logs the clock skew against it.
func checkExchange(ctx context.Context, client ports.ExchangeClient, appLogger ports.Logger) error {
	if err := client.Ping(ctx); err != nil {
		return err
	}
	serverTime, err := client.ServerTime(ctx)
	if err != nil {
		return err
	}
	appLogger.Info(ctx, "Exchange reachable", map[string]interface{}{
		"serverTime": serverTime.UTC().Format("2006-01-02T15:04:05.000Z"),
		"clockSkew":  time.Since(serverTime).Round(time.Millisecond).String(),
	})
	return nil
}

// export writes the table as CSV to stdout, or to <dir>/<symbol>_<interval>.csv.
func export(res *app.Result, dir string, stdout io.Writer) error {
	if dir == "" {
		return res.Table.WriteCSV(stdout)
	}
	for _, part := range []string{res.Symbol, res.Interval} {
		if part == "" || part != filepath.Base(part) || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("invalid file name component %q", part)
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", res.Symbol, res.Interval))
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	if err := res.Table.WriteCSV(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return file.Close()
}
