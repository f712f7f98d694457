package survey

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/stclabs/engage-backend/pkg/db/models"
	"github.com/stclabs/engage-backend/pkg/types"
)

// Repository exposes survey persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a survey repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes one submission inside the caller's transaction.
func (r *Repository) Insert(tx *gorm.DB, row *models.SurveySubmission) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(row).Error
}

// PhoneHasSubmission reports whether any submission already carries the
// phone number.
func (r *Repository) PhoneHasSubmission(ctx context.Context, phone string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SurveySubmission{}).
		Where("phone_e164 = ?", phone).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByScanToken returns submissions for one token, newest first.
func (r *Repository) ListByScanToken(ctx context.Context, scanToken string) ([]models.SurveySubmission, error) {
	var rows []models.SurveySubmission
	err := r.db.WithContext(ctx).
		Where("scan_token = ?", scanToken).
		Order("submitted_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// List returns submissions within the range, newest first.
func (r *Repository) List(ctx context.Context, dateRange types.DateRange) ([]models.SurveySubmission, error) {
	query := r.db.WithContext(ctx).Order("submitted_at DESC, id DESC")
	if dateRange.HasStart() {
		query = query.Where("submitted_at >= ?", dateRange.Start)
	}
	if dateRange.HasEnd() {
		query = query.Where("submitted_at < ?", dateRange.End)
	}

	var rows []models.SurveySubmission
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
