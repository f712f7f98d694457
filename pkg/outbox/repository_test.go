package outbox

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stclabs/engage-backend/pkg/db/models"
	"github.com/stclabs/engage-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	events := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  topic TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  created_at DATETIME NOT NULL,
  last_updated_at DATETIME NOT NULL
);`
	log := `
CREATE TABLE IF NOT EXISTS outbox_log (
  id TEXT PRIMARY KEY,
  outbox_id TEXT NOT NULL,
  topic TEXT NOT NULL,
  status TEXT NOT NULL,
  error TEXT,
  at DATETIME NOT NULL
);`
	require.NoError(t, db.Exec(events).Error)
	require.NoError(t, db.Exec(log).Error)
	return db
}

// stepClock hands out strictly increasing timestamps so created_at
// ordering is deterministic.
type stepClock struct {
	t time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func enqueueEvent(t *testing.T, db *gorm.DB, repo *Repository, topic string, data any) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = repo.Enqueue(tx, topic, data)
		return err
	})
	require.NoError(t, err)
	return id
}

func loadEvent(t *testing.T, db *gorm.DB, id uuid.UUID) models.OutboxEvent {
	t.Helper()

	var row models.OutboxEvent
	require.NoError(t, db.Where("id = ?", id).First(&row).Error)
	return row
}

func TestEnqueueRequiresTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db, newStepClock().Now)

	_, err := repo.Enqueue(nil, "survey.submitted", map[string]string{"k": "v"})
	require.Error(t, err)
}

func TestEnqueueRollsBackWithCaller(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db, newStepClock().Now)

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := repo.Enqueue(tx, "survey.submitted", map[string]string{"k": "v"}); err != nil {
			return err
		}
		return fmt.Errorf("business write failed")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestClaimNextReturnsOldestPending(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db, newStepClock().Now)
	ctx := context.Background()

	first := enqueueEvent(t, db, repo, "survey.submitted", map[string]int{"n": 1})
	second := enqueueEvent(t, db, repo, "survey.submitted", map[string]int{"n": 2})

	claimed, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first, claimed.ID)
	assert.Equal(t, enums.OutboxProcessing, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)

	// first is PROCESSING now, so the next claim must skip it
	next, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, second, next.ID)

	third, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, third)
}

func TestClaimNextEmptyTable(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db, newStepClock().Now)

	claimed, err := repo.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestMarkDoneWritesAuditLog(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db, newStepClock().Now)
	ctx := context.Background()

	id := enqueueEvent(t, db, repo, "quiz.submitted", map[string]int{"score": 4})
	claimed, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, repo.MarkDone(ctx, *claimed))

	row := loadEvent(t, db, id)
	assert.Equal(t, enums.OutboxDone, row.Status)
	assert.Nil(t, row.LastError)

	entries, err := repo.LogFor(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.OutboxDone, entries[0].Status)
	assert.Equal(t, "quiz.submitted", entries[0].Topic)
	assert.Nil(t, entries[0].Error)
}

func TestMarkFailedIsTerminal(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db, newStepClock().Now)
	ctx := context.Background()

	id := enqueueEvent(t, db, repo, "survey.submitted", map[string]int{"n": 1})
	claimed, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, repo.MarkFailed(ctx, *claimed, fmt.Errorf("webhook returned 500")))

	row := loadEvent(t, db, id)
	assert.Equal(t, enums.OutboxFailed, row.Status)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "webhook returned 500", *row.LastError)

	// FAILED never becomes claimable again
	next, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	// and a terminal row cannot be finished twice
	require.Error(t, repo.MarkDone(ctx, row))

	entries, err := repo.LogFor(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.OutboxFailed, entries[0].Status)
	require.NotNil(t, entries[0].Error)
	assert.Equal(t, "webhook returned 500", *entries[0].Error)
}

func TestMarkDoneRequiresProcessing(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db, newStepClock().Now)
	ctx := context.Background()

	id := enqueueEvent(t, db, repo, "survey.submitted", map[string]int{"n": 1})
	row := loadEvent(t, db, id)

	require.Error(t, repo.MarkDone(ctx, row))

	// failed transition writes no audit entry
	entries, err := repo.LogFor(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, entries)

	reloaded := loadEvent(t, db, id)
	assert.Equal(t, enums.OutboxPending, reloaded.Status)
}

func TestListFiltersByStatus(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db, newStepClock().Now)
	ctx := context.Background()

	enqueueEvent(t, db, repo, "survey.submitted", map[string]int{"n": 1})
	enqueueEvent(t, db, repo, "survey.submitted", map[string]int{"n": 2})

	claimed, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.MarkDone(ctx, *claimed))

	pending, err := repo.List(ctx, enums.OutboxPending, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	done, err := repo.List(ctx, enums.OutboxDone, 0)
	require.NoError(t, err)
	assert.Len(t, done, 1)

	all, err := repo.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
