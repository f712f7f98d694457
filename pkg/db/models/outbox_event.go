package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stclabs/engage-backend/pkg/enums"
)

// OutboxEvent is one unit of deferred side-effect work. Status moves
// PENDING -> PROCESSING -> DONE|FAILED; FAILED is terminal.
type OutboxEvent struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Topic         string             `gorm:"column:topic;type:text;not null;index:ix_outbox_events_topic_status,priority:1"`
	Payload       json.RawMessage    `gorm:"column:payload;type:jsonb;not null"`
	Status        enums.OutboxStatus `gorm:"column:status;type:text;not null;default:PENDING;index:ix_outbox_events_status_created_at,priority:1;index:ix_outbox_events_topic_status,priority:2"`
	Attempts      int                `gorm:"column:attempts;not null;default:0"`
	LastError     *string            `gorm:"column:last_error;type:text"`
	CreatedAt     time.Time          `gorm:"column:created_at;index:ix_outbox_events_status_created_at,priority:2"`
	LastUpdatedAt time.Time          `gorm:"column:last_updated_at"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
