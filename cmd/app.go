package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Shamim-Fav/lvmh/internal/clock/system"
	"github.com/Shamim-Fav/lvmh/internal/config"
	"github.com/Shamim-Fav/lvmh/internal/fetcher"
	"github.com/Shamim-Fav/lvmh/internal/harvester"
	"github.com/Shamim-Fav/lvmh/internal/logging"
	"github.com/Shamim-Fav/lvmh/internal/metrics"
	"github.com/Shamim-Fav/lvmh/internal/normalize"
	"github.com/Shamim-Fav/lvmh/internal/progress"
	"github.com/Shamim-Fav/lvmh/internal/progress/sinks"
	"github.com/Shamim-Fav/lvmh/internal/session"
)

// app holds the wired harvest pipeline shared by the subcommands.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	clock      *system.Clock
	hub        *progress.Hub
	progress   *sinks.MemorySink
	harvester  *harvester.Harvester
	normalizer *normalize.Normalizer
}

func buildApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	clk := system.New()
	sessions := session.NewProvider(session.Config{
		BootstrapURL: cfg.Upstream.BootstrapURL,
		Origin:       cfg.Upstream.Origin,
		UserAgent:    cfg.Upstream.UserAgent,
		MaxAge:       cfg.SessionMaxAge(),
		MaxAttempts:  cfg.Session.MaxRetries,
		BackoffBase:  cfg.BackoffInitial(),
		BackoffMax:   cfg.BackoffMax(),
		Timeout:      cfg.RequestTimeout(),
	}, clk, logger.Named("session"))

	pageFetcher := fetcher.New(fetcher.Config{
		Endpoint:          cfg.Upstream.Endpoint,
		IndexName:         cfg.Upstream.IndexName,
		HitsPerPage:       cfg.Upstream.HitsPerPage,
		MaxValuesPerFacet: cfg.Upstream.MaxValuesPerFacet,
	}, sessions, logger.Named("fetcher"))

	progressSink := sinks.NewMemorySink()
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		sinks.NewPrometheusSink(),
		progressSink,
	)

	h := harvester.New(pageFetcher, harvester.Config{
		MaxRecords: cfg.Harvest.MaxRecords,
		PageDelay:  cfg.PageDelay(),
	}, clk, hub, logger.Named("harvester"))

	return &app{
		cfg:        cfg,
		logger:     logger,
		clock:      clk,
		hub:        hub,
		progress:   progressSink,
		harvester:  h,
		normalizer: normalize.New(normalize.Config{}),
	}, nil
}

// Close flushes the progress hub and the logger.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.hub.Close(ctx); err != nil {
		a.logger.Warn("progress hub close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
