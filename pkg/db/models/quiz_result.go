package models

import (
	"time"

	"github.com/google/uuid"
)

// QuizResult records a single quiz submission. The unique index on
// ScanToken enforces the one-quiz-per-identity rule.
type QuizResult struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SystemID       string    `gorm:"column:system_id;type:text;not null"`
	ScanToken      string    `gorm:"column:scan_token;type:text;not null;uniqueIndex:uq_quiz_results_scan_token"`
	CorrectAnswers int       `gorm:"column:correct_answers;not null"`
	SubmittedAt    time.Time `gorm:"column:submitted_at;not null;index"`
}

func (QuizResult) TableName() string {
	return "quiz_results"
}
