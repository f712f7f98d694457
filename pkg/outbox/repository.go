package outbox

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/stclabs/engage-backend/pkg/errors"

	"github.com/stclabs/engage-backend/pkg/db/models"
	"github.com/stclabs/engage-backend/pkg/enums"
)

// claimSQL claims the oldest PENDING event in a single statement. The
// outer status check re-verifies the row after the lock is granted, so
// two concurrent claimers can never both win the same row.
const claimSQL = `
UPDATE outbox_events
SET status = 'PROCESSING', attempts = attempts + 1, last_updated_at = ?
WHERE id = (
	SELECT id FROM outbox_events
	WHERE status = 'PENDING'
	ORDER BY created_at, id
	LIMIT 1
)
AND status = 'PENDING'
RETURNING id, topic, payload, status, attempts, last_error, created_at, last_updated_at`

type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB, now func() time.Time) *Repository {
	if now == nil {
		now = time.Now
	}
	return &Repository{db: db, now: now}
}

// Enqueue inserts a PENDING event inside the caller's transaction so the
// event commits or rolls back together with the business write.
func (r *Repository) Enqueue(tx *gorm.DB, topic string, data any) (uuid.UUID, error) {
	if tx == nil {
		return uuid.Nil, stdErrors.New("transaction required")
	}
	if topic == "" {
		return uuid.Nil, apperrors.New(apperrors.CodeValidation, "outbox topic is required")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.CodeValidation, err, "marshaling outbox payload")
	}

	now := r.now().UTC()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		Topic:         topic,
		Payload:       payload,
		Status:        enums.OutboxPending,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if err := tx.Create(&row).Error; err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.CodeDependency, err, "inserting outbox event")
	}
	return row.ID, nil
}

// ClaimNext atomically moves the oldest PENDING event to PROCESSING and
// returns it. Returns nil when no claimable event exists.
func (r *Repository) ClaimNext(ctx context.Context) (*models.OutboxEvent, error) {
	var row models.OutboxEvent
	res := r.db.WithContext(ctx).Raw(claimSQL, r.now().UTC()).Scan(&row)
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, res.Error, "claiming outbox event")
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// MarkDone transitions a PROCESSING event to DONE and appends the audit
// record in the same transaction.
func (r *Repository) MarkDone(ctx context.Context, event models.OutboxEvent) error {
	return r.finish(ctx, event, enums.OutboxDone, nil)
}

// MarkFailed transitions a PROCESSING event to FAILED, recording the
// handler error. FAILED is terminal; the event is never retried.
func (r *Repository) MarkFailed(ctx context.Context, event models.OutboxEvent, cause error) error {
	return r.finish(ctx, event, enums.OutboxFailed, cause)
}

func (r *Repository) finish(ctx context.Context, event models.OutboxEvent, status enums.OutboxStatus, cause error) error {
	now := r.now().UTC()

	updates := map[string]any{
		"status":          status,
		"last_updated_at": now,
	}
	var errText *string
	if cause != nil {
		text := cause.Error()
		errText = &text
		updates["last_error"] = text
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND status = ?", event.ID, enums.OutboxProcessing).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return stdErrors.New("event is not PROCESSING")
		}

		entry := models.OutboxLogEntry{
			ID:       uuid.New(),
			OutboxID: event.ID,
			Topic:    event.Topic,
			Status:   status,
			Error:    errText,
			At:       now,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "finishing outbox event")
	}
	return nil
}

// List returns events filtered by status, newest first. An empty status
// returns everything.
func (r *Repository) List(ctx context.Context, status enums.OutboxStatus, limit int) ([]models.OutboxEvent, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.OutboxEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "listing outbox events")
	}
	return rows, nil
}

// LogFor returns the audit trail for one event in write order.
func (r *Repository) LogFor(ctx context.Context, outboxID uuid.UUID) ([]models.OutboxLogEntry, error) {
	var rows []models.OutboxLogEntry
	err := r.db.WithContext(ctx).
		Where("outbox_id = ?", outboxID).
		Order("at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "listing outbox log")
	}
	return rows, nil
}
