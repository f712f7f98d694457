package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stclabs/engage-backend/pkg/db/models"
	"github.com/stclabs/engage-backend/pkg/types"
)

// Repository exposes identity persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an identity repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetByScanToken loads the identity behind a scan token. Returns nil when
// no identity exists for the token.
func (r *Repository) GetByScanToken(ctx context.Context, scanToken string) (*models.Identity, error) {
	var row models.Identity
	err := r.db.WithContext(ctx).Where("scan_token = ?", scanToken).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// PhoneInUse reports whether any identity already holds the phone number.
func (r *Repository) PhoneInUse(ctx context.Context, phone string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Identity{}).
		Where("phone_e164 = ?", phone).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new identity. Unique violations surface unwrapped so
// callers can inspect the constraint.
func (r *Repository) Create(ctx context.Context, row *models.Identity) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// Update applies the given column updates to one identity.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Identity{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// List returns identities created within the range, newest first.
func (r *Repository) List(ctx context.Context, dateRange types.DateRange) ([]models.Identity, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if dateRange.HasStart() {
		query = query.Where("created_at >= ?", dateRange.Start)
	}
	if dateRange.HasEnd() {
		query = query.Where("created_at < ?", dateRange.End)
	}

	var rows []models.Identity
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// IncrementQuizRollup applies the quiz counter rollup in a single update
// so concurrent submissions never lose increments. Runs in the caller's
// transaction; returns the number of rows touched.
func (r *Repository) IncrementQuizRollup(tx *gorm.DB, scanToken string, correct int, now time.Time) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	res := tx.Model(&models.Identity{}).
		Where("scan_token = ?", scanToken).
		Updates(map[string]any{
			"quizzes_taken":         gorm.Expr("quizzes_taken + 1"),
			"total_correct_answers": gorm.Expr("total_correct_answers + ?", correct),
			"last_submitted_at":     now,
			"updated_at":            now,
		})
	return res.RowsAffected, res.Error
}
