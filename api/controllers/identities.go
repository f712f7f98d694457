package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stclabs/engage-backend/api/responses"
	"github.com/stclabs/engage-backend/api/validators"
	"github.com/stclabs/engage-backend/internal/identity"
	"github.com/stclabs/engage-backend/pkg/db/models"
	"github.com/stclabs/engage-backend/pkg/logger"
)

type registerIdentityRequest struct {
	ScanToken    string  `json:"scanToken" validate:"required"`
	DisplayName  string  `json:"displayName" validate:"required,min=3,max=50"`
	Phone        *string `json:"phone,omitempty"`
	Organization *string `json:"organization,omitempty"`
}

type identityResponse struct {
	ScanToken           string     `json:"scanToken"`
	SystemID            string     `json:"systemId"`
	DisplayName         string     `json:"displayName"`
	Phone               *string    `json:"phone,omitempty"`
	Organization        *string    `json:"organization,omitempty"`
	QuizzesTaken        int        `json:"quizzesTaken"`
	TotalCorrectAnswers int        `json:"totalCorrectAnswers"`
	LastSubmittedAt     *time.Time `json:"lastSubmittedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}

func toIdentityResponse(row *models.Identity) identityResponse {
	return identityResponse{
		ScanToken:           row.ScanToken,
		SystemID:            row.SystemID,
		DisplayName:         row.DisplayName,
		Phone:               row.PhoneE164,
		Organization:        row.Organization,
		QuizzesTaken:        row.QuizzesTaken,
		TotalCorrectAnswers: row.TotalCorrectAnswers,
		LastSubmittedAt:     row.LastSubmittedAt,
		CreatedAt:           row.CreatedAt,
	}
}

func RegisterIdentity(svc identity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req registerIdentityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := identity.ResolveInput{
			ScanToken:    req.ScanToken,
			DisplayName:  req.DisplayName,
			Organization: req.Organization,
		}
		if req.Phone != nil {
			phone, err := validators.NormalizePhone(*req.Phone)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			input.Phone = &phone
		}

		row, err := svc.Register(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toIdentityResponse(row))
	}
}

func IdentityByScanToken(svc identity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		row, err := svc.GetByScanToken(ctx, chi.URLParam(r, "scanToken"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toIdentityResponse(row))
	}
}

func ListIdentities(svc identity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		dateRange, err := validators.ParseDateRange(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, err := svc.List(ctx, dateRange)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items := make([]identityResponse, 0, len(rows))
		for i := range rows {
			items = append(items, toIdentityResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "count": len(items)})
	}
}
