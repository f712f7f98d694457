package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stclabs/engage-backend/internal/accesskeys"
	"github.com/stclabs/engage-backend/internal/analytics"
	"github.com/stclabs/engage-backend/internal/identity"
	"github.com/stclabs/engage-backend/internal/quiz"
	"github.com/stclabs/engage-backend/internal/survey"
	"github.com/stclabs/engage-backend/pkg/config"
	"github.com/stclabs/engage-backend/pkg/outbox"
)

const testRootKey = "test-root-key"

func setupRouterTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS identities (
  id TEXT PRIMARY KEY,
  scan_token TEXT NOT NULL,
  system_id TEXT NOT NULL,
  display_name TEXT NOT NULL,
  phone_e164 TEXT,
  organization TEXT,
  quizzes_taken INTEGER NOT NULL DEFAULT 0,
  total_correct_answers INTEGER NOT NULL DEFAULT 0,
  last_submitted_at DATETIME,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_identities_scan_token ON identities (scan_token);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_identities_phone_e164 ON identities (phone_e164) WHERE phone_e164 IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS survey_submissions (
  id TEXT PRIMARY KEY,
  system_id TEXT NOT NULL,
  scan_token TEXT NOT NULL,
  display_name TEXT NOT NULL,
  phone_e164 TEXT,
  organization TEXT,
  answers TEXT NOT NULL,
  note TEXT,
  interest_category TEXT NOT NULL,
  raffle_eligible INTEGER NOT NULL DEFAULT 0,
  raffle_date DATETIME,
  submitted_at DATETIME NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS quiz_results (
  id TEXT PRIMARY KEY,
  system_id TEXT NOT NULL,
  scan_token TEXT NOT NULL,
  correct_answers INTEGER NOT NULL,
  submitted_at DATETIME NOT NULL
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_quiz_results_scan_token ON quiz_results (scan_token);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  topic TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  created_at DATETIME NOT NULL,
  last_updated_at DATETIME NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS outbox_log (
  id TEXT PRIMARY KEY,
  outbox_id TEXT NOT NULL,
  topic TEXT NOT NULL,
  status TEXT NOT NULL,
  error TEXT,
  at DATETIME NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS access_keys (
  id TEXT PRIMARY KEY,
  digest TEXT NOT NULL,
  label TEXT,
  created_at DATETIME NOT NULL
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_access_keys_digest ON access_keys (digest);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type okPinger struct{}

func (okPinger) Ping(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db := setupRouterTestDB(t)
	now := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	identityService, err := identity.NewService(identity.ServiceParams{
		Store: identity.NewRepository(db),
		Now:   now,
	})
	require.NoError(t, err)

	surveyService, err := survey.NewService(survey.ServiceParams{
		Store:      survey.NewRepository(db),
		Outbox:     outbox.NewRepository(db, now),
		Identities: identityService,
		Tx:         gormTxRunner{db: db},
		Now:        now,
	})
	require.NoError(t, err)

	quizService, err := quiz.NewService(quiz.ServiceParams{
		Store:      quiz.NewRepository(db),
		Identities: identity.NewRepository(db),
		Tx:         gormTxRunner{db: db},
		Now:        now,
	})
	require.NoError(t, err)

	analyticsService, err := analytics.NewService(analytics.ServiceParams{
		Store: analytics.NewRepository(db),
		Now:   now,
	})
	require.NoError(t, err)

	accessKeyService, err := accesskeys.NewService(accesskeys.ServiceParams{
		Store: accesskeys.NewRepository(db),
		Now:   now,
	})
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.API.RootKey = testRootKey

	return NewRouter(cfg, nil, okPinger{}, nil,
		identityService, surveyService, quizService, analyticsService, accessKeyService)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	handler := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "live")
}

func TestRegisterAndFetchIdentity(t *testing.T) {
	handler := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/identities/register", map[string]any{
		"scanToken":   "tok-1",
		"displayName": "Ada Lovelace",
		"phone":       "5551230001",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data struct {
			SystemID string `json:"systemId"`
			Phone    string `json:"phone"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Len(t, created.Data.SystemID, 32)
	assert.Equal(t, "+15551230001", created.Data.Phone)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/identities/by-scan/tok-1", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/identities/by-scan/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterDuplicateTokenConflicts(t *testing.T) {
	handler := newTestRouter(t)

	body := map[string]any{"scanToken": "tok-1", "displayName": "Ada Lovelace"}
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/identities/register", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/identities/register", body, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitSurveyEndToEnd(t *testing.T) {
	handler := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/surveys/submit", map[string]any{
		"scanToken":   "tok-1",
		"displayName": "Ada Lovelace",
		"answers":     map[string]any{"rating": 5, "feedback": "great"},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"raffleEligible":true`)
}

func TestQuizSubmitRequiresIdentity(t *testing.T) {
	handler := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/quiz/submit", map[string]any{
		"scanToken":      "missing",
		"correctAnswers": 3,
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesRequireAccessKey(t *testing.T) {
	handler := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/identities", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/identities", nil, map[string]string{
		"X-Api-Key": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/identities", nil, map[string]string{
		"X-Api-Key": testRootKey,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGeneratedAccessKeyOpensAdminSurface(t *testing.T) {
	handler := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/access-keys", map[string]any{
		"count": 1,
		"label": "booth-a",
	}, map[string]string{"X-Api-Key": testRootKey})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var generated struct {
		Data struct {
			Keys []string `json:"keys"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &generated))
	require.Len(t, generated.Data.Keys, 1)

	// a stored dashboard key validates publicly and opens the admin surface
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/access-keys/validate", map[string]any{
		"key": generated.Data.Keys[0],
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/analytics/overview", nil, map[string]string{
		"X-Api-Key": generated.Data.Keys[0],
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListSurveysRejectsBadDates(t *testing.T) {
	handler := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/surveys?startDate=2026-03-05&endDate=2026-03-01", nil, map[string]string{
		"X-Api-Key": testRootKey,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
