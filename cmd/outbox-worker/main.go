package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/stclabs/engage-backend/internal/notify"
	"github.com/stclabs/engage-backend/internal/survey"
	"github.com/stclabs/engage-backend/pkg/config"
	"github.com/stclabs/engage-backend/pkg/db"
	"github.com/stclabs/engage-backend/pkg/db/models"
	"github.com/stclabs/engage-backend/pkg/logger"
	"github.com/stclabs/engage-backend/pkg/metrics"
	"github.com/stclabs/engage-backend/pkg/migrate"
	"github.com/stclabs/engage-backend/pkg/outbox"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: workerName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = workerName

	logg = logger.New(logger.Options{
		ServiceName: workerName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	registry := outbox.NewRegistry()
	if err := registerHandlers(registry, cfg, logg); err != nil {
		logg.Error(context.Background(), "failed to register outbox handlers", err)
		os.Exit(1)
	}

	dispatcher, err := outbox.NewDispatcher(outbox.DispatcherParams{
		Repo:     outbox.NewRepository(dbClient.DB(), nil),
		Registry: registry,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	outboxMetrics := metrics.NewOutboxMetrics(promRegistry)

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Dispatcher: dispatcher,
		Metrics:    outboxMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": workerName,
	})

	metricsServer := &http.Server{
		Addr: ":" + cfg.Outbox.MetricsPort,
		Handler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{
			Registry: promRegistry,
		}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "metrics server stopped unexpectedly", err)
		}
	}()

	logg.Info(ctx, "starting outbox worker")

	runErr := service.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	closeErr := multierr.Append(nil, metricsServer.Shutdown(shutdownCtx))

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(ctx, "outbox worker stopped unexpectedly", multierr.Append(runErr, closeErr))
		os.Exit(1)
	}
	if closeErr != nil {
		logg.Error(ctx, "error shutting down metrics server", closeErr)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox worker shutting down gracefully")
}

// registerHandlers binds each topic to its delivery path. Without a
// webhook URL survey events are acknowledged with a log line so the
// outbox still drains in environments with no downstream consumer.
func registerHandlers(registry *outbox.Registry, cfg *config.Config, logg *logger.Logger) error {
	if cfg.Outbox.WebhookURL != "" {
		webhook, err := notify.NewWebhook(notify.WebhookParams{
			URL:    cfg.Outbox.WebhookURL,
			Logger: logg,
		})
		if err != nil {
			return err
		}
		return registry.Register(survey.TopicSubmitted, webhook.Deliver)
	}

	return registry.Register(survey.TopicSubmitted, func(ctx context.Context, event models.OutboxEvent) error {
		logg.Info(logg.WithTopic(ctx, event.Topic), "no webhook configured, event acknowledged")
		return nil
	})
}
