package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/stclabs/engage-backend/api/routes"
	"github.com/stclabs/engage-backend/internal/accesskeys"
	"github.com/stclabs/engage-backend/internal/analytics"
	"github.com/stclabs/engage-backend/internal/identity"
	"github.com/stclabs/engage-backend/internal/quiz"
	"github.com/stclabs/engage-backend/internal/survey"
	"github.com/stclabs/engage-backend/pkg/config"
	"github.com/stclabs/engage-backend/pkg/db"
	"github.com/stclabs/engage-backend/pkg/logger"
	"github.com/stclabs/engage-backend/pkg/migrate"
	"github.com/stclabs/engage-backend/pkg/outbox"
	"github.com/stclabs/engage-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	// Redis only backs submit rate limiting; the API runs without it.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, submit rate limiting disabled")
	}

	identityRepo := identity.NewRepository(dbClient.DB())

	identityService, err := identity.NewService(identity.ServiceParams{
		Store:  identityRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create identity service", err)
		os.Exit(1)
	}

	surveyService, err := survey.NewService(survey.ServiceParams{
		Store:      survey.NewRepository(dbClient.DB()),
		Outbox:     outbox.NewRepository(dbClient.DB(), nil),
		Identities: identityService,
		Tx:         dbClient,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create survey service", err)
		os.Exit(1)
	}

	quizService, err := quiz.NewService(quiz.ServiceParams{
		Store:      quiz.NewRepository(dbClient.DB()),
		Identities: identityRepo,
		Tx:         dbClient,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create quiz service", err)
		os.Exit(1)
	}

	analyticsService, err := analytics.NewService(analytics.ServiceParams{
		Store:  analytics.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics service", err)
		os.Exit(1)
	}

	accessKeyService, err := accesskeys.NewService(accesskeys.ServiceParams{
		Store:  accesskeys.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create access key service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient,
			identityService, surveyService, quizService, analyticsService, accessKeyService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
