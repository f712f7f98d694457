package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stclabs/engage-backend/pkg/enums"
	"github.com/stclabs/engage-backend/pkg/types"
)

// SurveySubmission stores one visitor survey. ScanToken is denormalized
// alongside SystemID so per-token listings avoid a join.
type SurveySubmission struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	SystemID         string                 `gorm:"column:system_id;type:text;not null;index"`
	ScanToken        string                 `gorm:"column:scan_token;type:text;not null;index:ix_survey_submissions_scan_token_submitted_at,priority:1"`
	DisplayName      string                 `gorm:"column:display_name;type:text;not null"`
	PhoneE164        *string                `gorm:"column:phone_e164;type:text;index"`
	Organization     *string                `gorm:"column:organization;type:text"`
	Answers          types.AnswerMap        `gorm:"column:answers;type:jsonb;not null"`
	Note             *string                `gorm:"column:note;type:text"`
	InterestCategory enums.InterestCategory `gorm:"column:interest_category;type:text;not null"`
	RaffleEligible   bool                   `gorm:"column:raffle_eligible;not null;default:false"`
	RaffleDate       *time.Time             `gorm:"column:raffle_date"`
	SubmittedAt      time.Time              `gorm:"column:submitted_at;not null;index:ix_survey_submissions_scan_token_submitted_at,priority:2"`
}

func (SurveySubmission) TableName() string {
	return "survey_submissions"
}
