package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/efreitasn/marketsim/internal/config"
	"github.com/efreitasn/marketsim/internal/ensemble"
	"github.com/efreitasn/marketsim/internal/handler"
	"github.com/efreitasn/marketsim/internal/metrics"
	"github.com/efreitasn/marketsim/internal/service"
	"github.com/efreitasn/marketsim/internal/simulation"
	"github.com/efreitasn/marketsim/internal/sink"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	runEnsemble := flag.Bool("ensemble", false, "Run REPLICAS independent simulations and print the reduced summary")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if *runEnsemble {
		err = ensembleMode(cfg, logger)
	} else {
		err = interactiveMode(cfg, logger)
	}
	if err != nil {
		logger.Error("marketsim failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func simulationConfig(cfg *config.Config) simulation.Config {
	return simulation.Config{
		Traders:         cfg.Traders,
		InitialPrice:    cfg.InitialPrice,
		InitialCash:     cfg.InitialCash,
		InitialHoldings: cfg.InitialHoldings,
		HumanTrader:     cfg.HumanTrader,
		Seed:            cfg.Seed,
		TimeScale:       cfg.TimeScale,
		DecisionWorkers: cfg.DecisionWorkers,
		OrderTTL:        cfg.OrderTTL.Seconds(),
	}
}

// openSinks builds the logging collaborators enabled by cfg behind a
// single asynchronous writer, so ticks only enqueue. The returned closer
// flushes the queue and then releases file handles and database
// connections.
func openSinks(cfg *config.Config, runID string, logger *slog.Logger, extra ...simulation.Sink) (simulation.Sink, func(), error) {
	sinks := sink.Fanout{sink.NewLogger(logger)}
	sinks = append(sinks, extra...)
	var closers []io.Closer

	closeFiles := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("failed to close sink", slog.String("error", err.Error()))
			}
		}
	}

	if cfg.LogDir != "" {
		csvSink, err := sink.NewCSV(cfg.LogDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open csv sink: %w", err)
		}
		sinks = append(sinks, csvSink)
		closers = append(closers, csvSink)
	}
	if cfg.SQLitePath != "" {
		db, err := sink.OpenSQLite(cfg.SQLitePath, runID)
		if err != nil {
			closeFiles()
			return nil, nil, fmt.Errorf("open sqlite sink: %w", err)
		}
		sinks = append(sinks, db)
		closers = append(closers, db)
	}

	async := sink.NewAsync(sinks, sink.DefaultAsyncBuffer, logger)
	closeAll := func() {
		async.Close()
		if n := async.Dropped(); n > 0 {
			logger.Warn("sink events dropped", slog.Int64("count", n))
		}
		closeFiles()
	}
	return async, closeAll, nil
}

func interactiveMode(cfg *config.Config, logger *slog.Logger) error {
	runID := uuid.NewString()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	sinks, closeSinks, err := openSinks(cfg, runID, logger, collector)
	if err != nil {
		return err
	}
	defer closeSinks()

	simCfg := simulationConfig(cfg)
	simCfg.RunID = runID
	sim := simulation.New(simCfg, sinks, logger)

	marketSvc := service.NewMarketService(sim)
	router := handler.NewRouter(marketSvc, collector, reg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := service.NewRunner(sim, cfg.TickInterval, cfg.Duration, logger)
	runner.Start(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("run_id", runID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Stop on SIGINT/SIGTERM, when the run reaches its duration, or if the
	// server cannot listen.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case <-runner.Done():
		logger.Info("simulation complete")
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	<-runner.Done()

	if path := summaryPath(cfg, "simulation_summary.json"); path != "" {
		if err := sink.WriteJSON(path, sim.Stats()); err != nil {
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}

func ensembleMode(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	simCfg := simulationConfig(cfg)
	// Replicas use one decision worker each; the ensemble owns parallelism.
	simCfg.DecisionWorkers = 1

	coord := ensemble.NewCoordinator(ensemble.Config{
		Replicas:   cfg.Replicas,
		Workers:    cfg.Workers,
		BaseSeed:   cfg.Seed,
		Duration:   cfg.Duration,
		Simulation: simCfg,
	}, logger)

	summary, err := coord.Run(ctx)
	if err != nil {
		return fmt.Errorf("ensemble: %w", err)
	}

	if cfg.SQLitePath != "" {
		db, err := sink.OpenSQLite(cfg.SQLitePath, summary.RunID)
		if err != nil {
			return fmt.Errorf("open sqlite sink: %w", err)
		}
		err = db.LogEnsemble(ctx, summary.Records)
		if cerr := db.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("store ensemble records: %w", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return err
	}

	if path := summaryPath(cfg, "ensemble_summary.json"); path != "" {
		return sink.WriteJSON(path, summary)
	}
	return nil
}

// summaryPath is SUMMARY_PATH, or name inside LOG_DIR, or empty.
func summaryPath(cfg *config.Config, name string) string {
	if cfg.SummaryPath != "" {
		return cfg.SummaryPath
	}
	if cfg.LogDir != "" {
		return filepath.Join(cfg.LogDir, name)
	}
	return ""
}
