package survey

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stclabs/engage-backend/internal/identity"
	"github.com/stclabs/engage-backend/pkg/db/models"
	"github.com/stclabs/engage-backend/pkg/enums"
	pkgerrors "github.com/stclabs/engage-backend/pkg/errors"
	"github.com/stclabs/engage-backend/pkg/logger"
	"github.com/stclabs/engage-backend/pkg/types"
)

// TopicSubmitted is the outbox topic emitted for every accepted survey.
const TopicSubmitted = "survey.submitted"

const noteMax = 140

// Store is the persistence surface the service needs.
type Store interface {
	Insert(tx *gorm.DB, row *models.SurveySubmission) error
	PhoneHasSubmission(ctx context.Context, phone string) (bool, error)
	ListByScanToken(ctx context.Context, scanToken string) ([]models.SurveySubmission, error)
	List(ctx context.Context, dateRange types.DateRange) ([]models.SurveySubmission, error)
}

// Outbox enqueues deferred side effects inside the submission transaction.
type Outbox interface {
	Enqueue(tx *gorm.DB, topic string, data any) (uuid.UUID, error)
}

// Identities resolves the canonical identity behind a scan token.
type Identities interface {
	ResolveOrCreate(ctx context.Context, input identity.ResolveInput) (*models.Identity, error)
}

// TxRunner runs fn inside one storage transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines survey submission and listing operations.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.SurveySubmission, error)
	ListByScanToken(ctx context.Context, scanToken string) ([]models.SurveySubmission, error)
	List(ctx context.Context, dateRange types.DateRange) ([]models.SurveySubmission, error)
}

// SubmitInput carries one survey submission. Phone arrives E.164
// normalized from the API boundary.
type SubmitInput struct {
	ScanToken        string
	DisplayName      string
	Phone            *string
	Organization     *string
	Answers          types.AnswerMap
	Note             *string
	InterestCategory enums.InterestCategory
}

// SubmittedEvent is the outbox payload for TopicSubmitted.
type SubmittedEvent struct {
	SubmissionID     uuid.UUID              `json:"submissionId"`
	SystemID         string                 `json:"systemId"`
	ScanToken        string                 `json:"scanToken"`
	DisplayName      string                 `json:"displayName"`
	Organization     *string                `json:"organization,omitempty"`
	InterestCategory enums.InterestCategory `json:"interestCategory"`
	RaffleEligible   bool                   `json:"raffleEligible"`
	SubmittedAt      time.Time              `json:"submittedAt"`
}

type ServiceParams struct {
	Store      Store
	Outbox     Outbox
	Identities Identities
	Tx         TxRunner
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	store      Store
	outbox     Outbox
	identities Identities
	tx         TxRunner
	logg       *logger.Logger
	now        func() time.Time
}

// NewService wires survey dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "survey store required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox required")
	}
	if params.Identities == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity service required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		store:      params.Store,
		outbox:     params.Outbox,
		identities: params.Identities,
		tx:         params.Tx,
		logg:       params.Logger,
		now:        params.Now,
	}, nil
}

// Submit validates and stores one survey, enqueueing the notification
// event in the same transaction so the two commit or roll back together.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.SurveySubmission, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	if input.Phone != nil {
		taken, err := s.store.PhoneHasSubmission(ctx, *input.Phone)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking phone submission guard")
		}
		if taken {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a survey was already submitted with this phone number")
		}
	}

	resolved, err := s.identities.ResolveOrCreate(ctx, identity.ResolveInput{
		ScanToken:    input.ScanToken,
		DisplayName:  input.DisplayName,
		Phone:        input.Phone,
		Organization: input.Organization,
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	eligible := input.InterestCategory.RaffleEligible()
	var raffleDate *time.Time
	if eligible {
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		raffleDate = &day
	}

	row := &models.SurveySubmission{
		ID:               uuid.New(),
		SystemID:         resolved.SystemID,
		ScanToken:        resolved.ScanToken,
		DisplayName:      resolved.DisplayName,
		PhoneE164:        input.Phone,
		Organization:     input.Organization,
		Answers:          input.Answers,
		Note:             input.Note,
		InterestCategory: input.InterestCategory,
		RaffleEligible:   eligible,
		RaffleDate:       raffleDate,
		SubmittedAt:      now,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.store.Insert(tx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inserting survey submission")
		}
		event := SubmittedEvent{
			SubmissionID:     row.ID,
			SystemID:         row.SystemID,
			ScanToken:        row.ScanToken,
			DisplayName:      row.DisplayName,
			Organization:     row.Organization,
			InterestCategory: row.InterestCategory,
			RaffleEligible:   row.RaffleEligible,
			SubmittedAt:      row.SubmittedAt,
		}
		_, err := s.outbox.Enqueue(tx, TopicSubmitted, event)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithScanToken(ctx, row.ScanToken), "survey submission stored")
	}
	return row, nil
}

func (s *service) ListByScanToken(ctx context.Context, scanToken string) ([]models.SurveySubmission, error) {
	scanToken = strings.TrimSpace(scanToken)
	if scanToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scan token is required")
	}

	rows, err := s.store.ListByScanToken(ctx, scanToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing submissions")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no submissions for scan token")
	}
	return rows, nil
}

func (s *service) List(ctx context.Context, dateRange types.DateRange) ([]models.SurveySubmission, error) {
	rows, err := s.store.List(ctx, dateRange)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing submissions")
	}
	return rows, nil
}

func normalizeInput(input SubmitInput) (SubmitInput, error) {
	input.ScanToken = strings.TrimSpace(input.ScanToken)
	if input.ScanToken == "" {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "scan token is required")
	}
	if len(input.Answers) == 0 {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "answers are required")
	}
	if !input.InterestCategory.IsValid() {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid interest category")
	}
	if input.Note != nil {
		note := strings.TrimSpace(*input.Note)
		if note == "" {
			input.Note = nil
		} else if len(note) > noteMax {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "note must be 140 characters or fewer")
		} else {
			input.Note = &note
		}
	}
	return input, nil
}
