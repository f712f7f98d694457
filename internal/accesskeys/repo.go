package accesskeys

import (
	"context"

	"gorm.io/gorm"

	"github.com/stclabs/engage-backend/pkg/db/models"
)

// Repository exposes access key persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an access key repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertBatch stores a batch of key digests in one transaction.
func (r *Repository) InsertBatch(ctx context.Context, rows []models.AccessKey) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// DigestExists reports whether the digest matches a stored key.
func (r *Repository) DigestExists(ctx context.Context, digest string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AccessKey{}).
		Where("digest = ?", digest).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
