// Package app wires configuration, storage and services for the server and the CLI.
package app

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/metrics"
	"github.com/AI-Template-SDK/senso-tracker/internal/places"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers"
	"github.com/AI-Template-SDK/senso-tracker/internal/store"
	"github.com/AI-Template-SDK/senso-tracker/services"
)

// App is the set of long-lived dependencies
type App struct {
	Config   *config.Config
	Store    *store.Store
	Registry *prometheus.Registry
	Metrics  *metrics.TrackerMetrics
	Tracker  services.TrackerService
	Reports  services.ReportService
	Maps     services.MapsService
}

type options struct {
	skipDatabase bool
}

// Option configures New
type Option func(*options)

// WithoutDatabase builds an App that can run batches but not persist or report
func WithoutDatabase() Option {
	return func(o *options) {
		o.skipDatabase = true
	}
}

// LoadEnv loads .env, falling back to dev.env for local development
func LoadEnv() {
	if err := godotenv.Load(); err == nil {
		zap.L().Info("loaded .env file")
		return
	}
	if err := godotenv.Load("dev.env"); err == nil {
		zap.L().Info("loaded dev.env file for local development")
		return
	}
	zap.L().Debug("no .env or dev.env file loaded")
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a := &App{Config: cfg, Registry: reg, Metrics: m}

	var (
		trackerStore services.TrackerStore
		mapsStore    services.MapsStore
	)
	if !o.skipDatabase {
		st, err := store.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		zap.L().Info("connected to database",
			zap.String("host", cfg.Database.Host),
			zap.String("name", cfg.Database.Name),
		)
		a.Store = st
		trackerStore = st
		mapsStore = st
		a.Reports = services.NewReportService(st)
	}

	costService := services.NewCostService()
	extraction := services.NewExtractionService(cfg.OpenAI, costService)
	extractor := services.NewSignalExtractor(extraction, m)
	a.Tracker = services.NewTrackerService(cfg, providers.NewFactory(cfg), extractor, trackerStore, costService,
		services.WithTrackerMetrics(m),
	)
	a.Maps = services.NewMapsService(cfg, places.NewClient(cfg.Places.APIKey, places.WithBaseURL(cfg.Places.BaseURL)), mapsStore)

	return a, nil
}

func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
