// Command signalsai serves the customer-success signal feed: it ingests the
// analytical dataset, keeps the normalized working set in a persistent store,
// and exposes read projections and optimistic mutations over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"signalsai/internal/backup"
	"signalsai/internal/blob"
	_ "signalsai/internal/blob/fs"
	_ "signalsai/internal/blob/memory"
	_ "signalsai/internal/blob/s3"
	"signalsai/internal/config"
	"signalsai/internal/core"
	"signalsai/internal/gateway"
	"signalsai/internal/httpapi"
	"signalsai/internal/ingest"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := core.OpenPersistentStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	blobStore, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	backups := backup.NewManager(blobStore)

	var remote gateway.Remote
	if cfg.GatewayBaseURL != "" {
		remote = gateway.NewClient(cfg.GatewayBaseURL, gateway.WithLogger(logger))
	}
	appdb := gateway.NewFallback(remote, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics, err := core.NewPrometheusMetrics(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if err := core.RegisterStoreGauges(registry, store); err != nil {
		return fmt.Errorf("register store gauges: %w", err)
	}

	service := core.NewService(store,
		core.WithGateway(appdb),
		core.WithMetrics(metrics),
		core.WithLogger(logger),
		core.WithUser(cfg.UserID, cfg.UserName),
		core.WithGatewayTimeout(cfg.GatewayTimeout),
	)

	if cfg.DatasetPath != "" {
		if err := ingestDataset(ctx, service, logger, cfg.DatasetPath); err != nil {
			return err
		}
	}

	api := httpapi.New(service,
		httpapi.WithBackups(backups),
		httpapi.WithLogger(logger),
		httpapi.WithMetricsRegistry(registry),
	)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "storage", cfg.Storage.Driver, "blob", cfg.Blob.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}

	// Snapshot the working set on the way out so a restart can restore it.
	if exporter, ok := store.(backup.StateExporter); ok {
		if object, err := backups.Create(shutdownCtx, exporter); err != nil {
			logger.Warn("shutdown backup failed", "error", err)
		} else {
			logger.Info("shutdown backup written", "key", object.Key)
		}
	}
	return nil
}

func ingestDataset(ctx context.Context, service *core.Service, logger *slog.Logger, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	loader := ingest.NewLoader(ingest.WithLogger(logger))
	dataset, report, err := loader.Load(f)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset loaded",
		"rows", report.RowsTotal,
		"accepted", report.RowsAccepted,
		"rejected", report.RowsRejected,
		"duplicates", report.DuplicateRows,
		"corrected_names", report.CorrectedNames,
	)

	if _, err := service.Dispatch(ctx, core.LoadDataset{
		Accounts: dataset.Accounts,
		Signals:  dataset.Signals,
		Actions:  dataset.Actions,
	}); err != nil {
		return fmt.Errorf("install dataset: %w", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
