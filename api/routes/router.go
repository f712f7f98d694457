package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stclabs/engage-backend/api/controllers"
	"github.com/stclabs/engage-backend/api/middleware"
	"github.com/stclabs/engage-backend/internal/accesskeys"
	"github.com/stclabs/engage-backend/internal/analytics"
	"github.com/stclabs/engage-backend/internal/identity"
	"github.com/stclabs/engage-backend/internal/quiz"
	"github.com/stclabs/engage-backend/internal/survey"
	"github.com/stclabs/engage-backend/pkg/config"
	"github.com/stclabs/engage-backend/pkg/db"
	"github.com/stclabs/engage-backend/pkg/logger"
	"github.com/stclabs/engage-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	identityService identity.Service,
	surveyService survey.Service,
	quizService quiz.Service,
	analyticsService analytics.Service,
	accessKeyService accesskeys.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.API.AllowedOrigins),
	)

	submitPolicy := middleware.NewSubmitRateLimitPolicy(
		"submit",
		cfg.RateLimit.SubmitWindow,
		cfg.RateLimit.SubmitIPLimit,
	)
	submitLimit := func(next http.Handler) http.Handler { return next }
	var redisPinger db.Pinger
	if redisClient != nil {
		submitLimit = middleware.SubmitRateLimit(submitPolicy, redisClient, logg)
		redisPinger = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/identities", func(r chi.Router) {
			r.Post("/register", controllers.RegisterIdentity(identityService, logg))
			r.Get("/by-scan/{scanToken}", controllers.IdentityByScanToken(identityService, logg))
		})

		r.With(submitLimit).Post("/surveys/submit", controllers.SubmitSurvey(surveyService, logg))
		r.With(submitLimit).Post("/quiz/submit", controllers.SubmitQuiz(quizService, logg))

		r.Post("/access-keys/validate", controllers.ValidateAccessKey(accessKeyService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.AccessKey(cfg.API.RootKey, accessKeyService, logg))

			r.Get("/identities", controllers.ListIdentities(identityService, logg))
			r.Get("/surveys", controllers.ListSurveys(surveyService, logg))
			r.Get("/surveys/by-scan/{scanToken}", controllers.SurveysByScanToken(surveyService, logg))
			r.Get("/quiz/results", controllers.ListQuizResults(quizService, logg))

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/organizations", controllers.OrganizationAnalytics(analyticsService, logg))
				r.Get("/scores", controllers.ScoreAnalytics(analyticsService, logg))
				r.Get("/overview", controllers.OverviewAnalytics(analyticsService, logg))
			})

			r.Post("/access-keys", controllers.GenerateAccessKeys(accessKeyService, logg))
		})
	})

	return r
}
