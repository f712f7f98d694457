package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stclabs/engage-backend/pkg/enums"
)

// OutboxLogEntry is the append-only audit record written when an event
// reaches a terminal status. Never mutated after creation.
type OutboxLogEntry struct {
	ID       uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OutboxID uuid.UUID          `gorm:"column:outbox_id;type:uuid;not null;index"`
	Topic    string             `gorm:"column:topic;type:text;not null"`
	Status   enums.OutboxStatus `gorm:"column:status;type:text;not null"`
	Error    *string            `gorm:"column:error;type:text"`
	At       time.Time          `gorm:"column:at;not null"`
}

func (OutboxLogEntry) TableName() string {
	return "outbox_log"
}
