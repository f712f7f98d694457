package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessKey is a dashboard credential stored only as a one-way digest.
type AccessKey struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Digest    string    `gorm:"column:digest;type:text;not null;uniqueIndex:uq_access_keys_digest"`
	Label     *string   `gorm:"column:label;type:text"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (AccessKey) TableName() string {
	return "access_keys"
}
