package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/stclabs/engage-backend/api/responses"
	pkgerrors "github.com/stclabs/engage-backend/pkg/errors"
	"github.com/stclabs/engage-backend/pkg/logger"
)

const apiKeyHeader = "X-Api-Key"

type accessKeyValidator interface {
	Validate(ctx context.Context, key string) (bool, error)
}

// AccessKey gates the admin surface. The operator root key always
// passes; otherwise the key must match a stored dashboard key digest.
func AccessKey(rootKey string, keys accessKeyValidator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			presented := strings.TrimSpace(r.Header.Get(apiKeyHeader))
			if presented == "" {
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing API key"))
				return
			}

			if rootKey != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(rootKey)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			if keys != nil {
				ok, err := keys.Validate(ctx, presented)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				if ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			if logg != nil {
				logg.Warn(ctx, "admin.access_key.rejected")
			}
			responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid API key"))
		})
	}
}
