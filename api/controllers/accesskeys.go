package controllers

import (
	"net/http"

	"github.com/stclabs/engage-backend/api/responses"
	"github.com/stclabs/engage-backend/api/validators"
	"github.com/stclabs/engage-backend/internal/accesskeys"
	"github.com/stclabs/engage-backend/pkg/logger"
)

type generateKeysRequest struct {
	Count int    `json:"count" validate:"required,min=1,max=1000"`
	Label string `json:"label,omitempty" validate:"omitempty,max=100"`
}

type validateKeyRequest struct {
	Key string `json:"key" validate:"required"`
}

func GenerateAccessKeys(svc accesskeys.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req generateKeysRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		keys, err := svc.Generate(ctx, req.Count, req.Label)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		// the plaintext keys exist only in this response
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"keys": keys, "count": len(keys)})
	}
}

func ValidateAccessKey(svc accesskeys.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req validateKeyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ok, err := svc.Validate(ctx, req.Key)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"valid": ok})
	}
}
