package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stclabs/engage-backend/api/responses"
	"github.com/stclabs/engage-backend/api/validators"
	"github.com/stclabs/engage-backend/internal/survey"
	"github.com/stclabs/engage-backend/pkg/db/models"
	"github.com/stclabs/engage-backend/pkg/enums"
	pkgerrors "github.com/stclabs/engage-backend/pkg/errors"
	"github.com/stclabs/engage-backend/pkg/logger"
	"github.com/stclabs/engage-backend/pkg/types"
)

type submitSurveyRequest struct {
	ScanToken        string          `json:"scanToken" validate:"required"`
	DisplayName      string          `json:"displayName" validate:"required,min=3,max=50"`
	Phone            *string         `json:"phone,omitempty"`
	Organization     *string         `json:"organization,omitempty"`
	Answers          types.AnswerMap `json:"answers" validate:"required"`
	Note             *string         `json:"note,omitempty"`
	InterestCategory string          `json:"interestCategory,omitempty"`
}

type surveyResponse struct {
	ID               string          `json:"id"`
	SystemID         string          `json:"systemId"`
	ScanToken        string          `json:"scanToken"`
	DisplayName      string          `json:"displayName"`
	Organization     *string         `json:"organization,omitempty"`
	Answers          types.AnswerMap `json:"answers"`
	Note             *string         `json:"note,omitempty"`
	InterestCategory string          `json:"interestCategory"`
	RaffleEligible   bool            `json:"raffleEligible"`
	RaffleDate       *time.Time      `json:"raffleDate,omitempty"`
	SubmittedAt      time.Time       `json:"submittedAt"`
}

func toSurveyResponse(row *models.SurveySubmission) surveyResponse {
	return surveyResponse{
		ID:               row.ID.String(),
		SystemID:         row.SystemID,
		ScanToken:        row.ScanToken,
		DisplayName:      row.DisplayName,
		Organization:     row.Organization,
		Answers:          row.Answers,
		Note:             row.Note,
		InterestCategory: string(row.InterestCategory),
		RaffleEligible:   row.RaffleEligible,
		RaffleDate:       row.RaffleDate,
		SubmittedAt:      row.SubmittedAt,
	}
}

func SubmitSurvey(svc survey.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req submitSurveyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		category := enums.InterestNone
		if req.InterestCategory != "" {
			parsed, err := enums.ParseInterestCategory(req.InterestCategory)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid interest category"))
				return
			}
			category = parsed
		}

		input := survey.SubmitInput{
			ScanToken:        req.ScanToken,
			DisplayName:      req.DisplayName,
			Organization:     req.Organization,
			Answers:          req.Answers,
			Note:             req.Note,
			InterestCategory: category,
		}
		if req.Phone != nil {
			phone, err := validators.NormalizePhone(*req.Phone)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			input.Phone = &phone
		}

		row, err := svc.Submit(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toSurveyResponse(row))
	}
}

func SurveysByScanToken(svc survey.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rows, err := svc.ListByScanToken(ctx, chi.URLParam(r, "scanToken"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items := make([]surveyResponse, 0, len(rows))
		for i := range rows {
			items = append(items, toSurveyResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "count": len(items)})
	}
}

func ListSurveys(svc survey.Service, logg *logger.Logger) http.HandlerFunc {
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

		items := make([]surveyResponse, 0, len(rows))
		for i := range rows {
			items = append(items, toSurveyResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "count": len(items)})
	}
}
