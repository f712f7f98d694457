package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/stclabs/engage-backend/api/responses"
	"github.com/stclabs/engage-backend/internal/analytics"
	pkgerrors "github.com/stclabs/engage-backend/pkg/errors"
	"github.com/stclabs/engage-backend/pkg/logger"
)

func parseIntParam(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, name+" must be a non-negative integer")
	}
	return value, nil
}

func OrganizationAnalytics(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit, err := parseIntParam(r, "limit", 0)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		counts, err := svc.OrganizationCounts(ctx, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"organizations": counts})
	}
}

func ScoreAnalytics(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		minCount, err := parseIntParam(r, "minCount", 0)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		averages, err := svc.AverageScores(ctx, minCount)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"averages": averages})
	}
}

func OverviewAnalytics(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		overview, err := svc.Overview(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}
