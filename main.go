// main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AI-Template-SDK/senso-tracker/internal/api"
	"github.com/AI-Template-SDK/senso-tracker/internal/app"
	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/workflows"
)

func main() {
	app.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("failed to load config", zap.Error(err))
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		zap.L().Fatal("failed to init logger", zap.Error(err))
	}
	defer zap.L().Sync()

	log := zap.L()
	log.Info("starting senso tracker",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
		zap.String("tracking_path", cfg.TrackingPath),
	)
	for name, key := range map[string]string{
		"openai":     cfg.OpenAI.APIKey,
		"anthropic":  cfg.Anthropic.APIKey,
		"gemini":     cfg.Gemini.APIKey,
		"perplexity": cfg.Perplexity.APIKey,
		"places":     cfg.Places.APIKey,
	} {
		if key == "" {
			log.Warn("provider API key not loaded", zap.String("provider", name))
		}
	}

	if err := cfg.Auth.Validate(); err != nil {
		log.Fatal("refusing to start API server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	if err := a.Store.Migrate(ctx); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	if cfg.Environment == "development" || cfg.Environment == "" {
		os.Unsetenv("INNGEST_SIGNING_KEY")
		log.Info("running in development mode, signing key verification disabled")
	} else if cfg.Inngest.SigningKey != "" {
		os.Setenv("INNGEST_SIGNING_KEY", cfg.Inngest.SigningKey)
	}

	client, err := inngestgo.NewClient(inngestgo.ClientOpts{
		AppID:    "senso-tracker",
		EventKey: inngestgo.StrPtr(cfg.Inngest.EventKey),
		Env:      inngestgo.StrPtr(cfg.Environment),
	})
	if err != nil {
		log.Fatal("failed to create inngest client", zap.Error(err))
	}

	scheduled := workflows.NewScheduledProcessor(cfg)
	scheduled.SetClient(client)
	scheduled.DailyTracker()

	batches := workflows.NewBatchProcessor(a.Tracker, a.Reports)
	batches.SetClient(client)
	if alerter := workflows.NewSlackAlerter(cfg.Alerts.SlackWebhookURL); alerter != nil {
		batches.SetAlerter(alerter)
	}
	batches.RunTrackerBatch()
	batches.VisibilityMonitor()

	maps := workflows.NewMapsProcessor(cfg, a.Maps, a.Reports)
	maps.SetClient(client)
	if alerter := workflows.NewSlackAlerter(cfg.Alerts.SlackWebhookURL); alerter != nil {
		maps.SetAlerter(alerter)
	}
	maps.DailyMaps()
	log.Info("workflows registered")

	router := api.NewServer(cfg.Auth, a.Tracker, a.Reports).Routes()
	router.Handle("/api/inngest", client.Serve())
	router.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"service":"senso-tracker","status":"running"}`))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server stopped", zap.Error(err))
	}
}
