package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the canonical record behind a scanned QR token. ScanToken is
// the external lookup key; SystemID is the stable internal foreign key used
// by surveys and quiz results.
type Identity struct {
	ID                  uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ScanToken           string     `gorm:"column:scan_token;type:text;not null;uniqueIndex:uq_identities_scan_token"`
	SystemID            string     `gorm:"column:system_id;type:text;not null;uniqueIndex:uq_identities_system_id"`
	DisplayName         string     `gorm:"column:display_name;type:text;not null"`
	PhoneE164           *string    `gorm:"column:phone_e164;type:text;uniqueIndex:uq_identities_phone_e164"`
	Organization        *string    `gorm:"column:organization;type:text"`
	QuizzesTaken        int        `gorm:"column:quizzes_taken;not null;default:0"`
	TotalCorrectAnswers int        `gorm:"column:total_correct_answers;not null;default:0"`
	LastSubmittedAt     *time.Time `gorm:"column:last_submitted_at"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (Identity) TableName() string {
	return "identities"
}
