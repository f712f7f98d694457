package quiz

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/stclabs/engage-backend/pkg/db"
	"github.com/stclabs/engage-backend/pkg/db/models"
	pkgerrors "github.com/stclabs/engage-backend/pkg/errors"
	"github.com/stclabs/engage-backend/pkg/logger"
	"github.com/stclabs/engage-backend/pkg/types"
)

// Store is the persistence surface the service needs.
type Store interface {
	Insert(tx *gorm.DB, row *models.QuizResult) error
	GetByScanToken(ctx context.Context, scanToken string) (*models.QuizResult, error)
	List(ctx context.Context, dateRange types.DateRange) ([]models.QuizResult, error)
}

// Identities provides the lookup and counter rollup against the identity
// table. Satisfied by *identity.Repository.
type Identities interface {
	GetByScanToken(ctx context.Context, scanToken string) (*models.Identity, error)
	IncrementQuizRollup(tx *gorm.DB, scanToken string, correct int, now time.Time) (int64, error)
}

// TxRunner runs fn inside one storage transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines quiz submission and listing operations.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.QuizResult, error)
	List(ctx context.Context, dateRange types.DateRange) ([]models.QuizResult, error)
}

type SubmitInput struct {
	ScanToken      string
	CorrectAnswers int
}

type ServiceParams struct {
	Store      Store
	Identities Identities
	Tx         TxRunner
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	store      Store
	identities Identities
	tx         TxRunner
	logg       *logger.Logger
	now        func() time.Time
}

// NewService wires quiz dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "quiz store required")
	}
	if params.Identities == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity store required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		store:      params.Store,
		identities: params.Identities,
		tx:         params.Tx,
		logg:       params.Logger,
		now:        params.Now,
	}, nil
}

// Submit records one quiz result per scan token and rolls the identity
// counters forward in the same transaction. A second submission for the
// same token is a conflict and leaves the counters untouched.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.QuizResult, error) {
	input.ScanToken = strings.TrimSpace(input.ScanToken)
	if input.ScanToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scan token is required")
	}
	if input.CorrectAnswers < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "correct answers must be zero or more")
	}

	existing, err := s.identities.GetByScanToken(ctx, input.ScanToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up identity")
	}
	if existing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "identity not found")
	}

	prior, err := s.store.GetByScanToken(ctx, input.ScanToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking prior quiz result")
	}
	if prior != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "quiz already submitted for this scan token")
	}

	now := s.now().UTC()
	row := &models.QuizResult{
		ID:             uuid.New(),
		SystemID:       existing.SystemID,
		ScanToken:      input.ScanToken,
		CorrectAnswers: input.CorrectAnswers,
		SubmittedAt:    now,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.store.Insert(tx, row); err != nil {
			return err
		}
		affected, err := s.identities.IncrementQuizRollup(tx, input.ScanToken, input.CorrectAnswers, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rolling up quiz counters")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "identity not found")
		}
		return nil
	})
	if err != nil {
		// pre-check raced another submitter; the insert lost on the
		// unique index and the whole transaction rolled back
		if dbpkg.IsUniqueViolation(err, "scan_token") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "quiz already submitted for this scan token")
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing quiz result")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithScanToken(ctx, input.ScanToken), "quiz result stored")
	}
	return row, nil
}

func (s *service) List(ctx context.Context, dateRange types.DateRange) ([]models.QuizResult, error) {
	rows, err := s.store.List(ctx, dateRange)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing quiz results")
	}
	return rows, nil
}
