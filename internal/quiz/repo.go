package quiz

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/stclabs/engage-backend/pkg/db/models"
	"github.com/stclabs/engage-backend/pkg/types"
)

// Repository exposes quiz result persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a quiz repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes one result inside the caller's transaction. Unique
// violations surface unwrapped so callers can inspect the constraint.
func (r *Repository) Insert(tx *gorm.DB, row *models.QuizResult) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(row).Error
}

// GetByScanToken loads the result for one token. Returns nil when the
// token has no result yet.
func (r *Repository) GetByScanToken(ctx context.Context, scanToken string) (*models.QuizResult, error) {
	var row models.QuizResult
	err := r.db.WithContext(ctx).Where("scan_token = ?", scanToken).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns results within the range, newest first.
func (r *Repository) List(ctx context.Context, dateRange types.DateRange) ([]models.QuizResult, error) {
	query := r.db.WithContext(ctx).Order("submitted_at DESC, id DESC")
	if dateRange.HasStart() {
		query = query.Where("submitted_at >= ?", dateRange.Start)
	}
	if dateRange.HasEnd() {
		query = query.Where("submitted_at < ?", dateRange.End)
	}

	var rows []models.QuizResult
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
