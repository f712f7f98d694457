package controllers

import (
	"net/http"
	"time"

	"github.com/stclabs/engage-backend/api/responses"
	"github.com/stclabs/engage-backend/api/validators"
	"github.com/stclabs/engage-backend/internal/quiz"
	"github.com/stclabs/engage-backend/pkg/db/models"
	"github.com/stclabs/engage-backend/pkg/logger"
)

type submitQuizRequest struct {
	ScanToken      string `json:"scanToken" validate:"required"`
	CorrectAnswers int    `json:"correctAnswers" validate:"gte=0"`
}

type quizResponse struct {
	ID             string    `json:"id"`
	SystemID       string    `json:"systemId"`
	ScanToken      string    `json:"scanToken"`
	CorrectAnswers int       `json:"correctAnswers"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

func toQuizResponse(row *models.QuizResult) quizResponse {
	return quizResponse{
		ID:             row.ID.String(),
		SystemID:       row.SystemID,
		ScanToken:      row.ScanToken,
		CorrectAnswers: row.CorrectAnswers,
		SubmittedAt:    row.SubmittedAt,
	}
}

func SubmitQuiz(svc quiz.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req submitQuizRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		row, err := svc.Submit(ctx, quiz.SubmitInput{
			ScanToken:      req.ScanToken,
			CorrectAnswers: req.CorrectAnswers,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toQuizResponse(row))
	}
}

func ListQuizResults(svc quiz.Service, logg *logger.Logger) http.HandlerFunc {
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

		items := make([]quizResponse, 0, len(rows))
		for i := range rows {
			items = append(items, toQuizResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "count": len(items)})
	}
}
