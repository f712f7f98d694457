package analytics

import (
	"context"

	"gorm.io/gorm"

	"github.com/stclabs/engage-backend/pkg/db/models"
)

// Repository reads the raw rows the aggregations are computed from.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an analytics repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AllSubmissions streams every survey submission, oldest first.
func (r *Repository) AllSubmissions(ctx context.Context) ([]models.SurveySubmission, error) {
	var rows []models.SurveySubmission
	err := r.db.WithContext(ctx).
		Order("submitted_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountIdentities returns the total identity count.
func (r *Repository) CountIdentities(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Identity{}).Count(&count).Error
	return count, err
}
