package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/stclabs/engage-backend/pkg/db"
	"github.com/stclabs/engage-backend/pkg/db/models"
	pkgerrors "github.com/stclabs/engage-backend/pkg/errors"
	"github.com/stclabs/engage-backend/pkg/logger"
	"github.com/stclabs/engage-backend/pkg/types"
)

const (
	displayNameMin = 3
	displayNameMax = 50
)

// Store is the persistence surface the service needs.
type Store interface {
	GetByScanToken(ctx context.Context, scanToken string) (*models.Identity, error)
	PhoneInUse(ctx context.Context, phone string) (bool, error)
	Create(ctx context.Context, row *models.Identity) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	List(ctx context.Context, dateRange types.DateRange) ([]models.Identity, error)
}

// Service defines identity resolution and lookup operations.
type Service interface {
	ResolveOrCreate(ctx context.Context, input ResolveInput) (*models.Identity, error)
	Register(ctx context.Context, input ResolveInput) (*models.Identity, error)
	GetByScanToken(ctx context.Context, scanToken string) (*models.Identity, error)
	List(ctx context.Context, dateRange types.DateRange) ([]models.Identity, error)
}

// ResolveInput carries the attributes observed alongside a scan. Phone is
// expected to be normalized to E.164 at the API boundary.
type ResolveInput struct {
	ScanToken    string
	DisplayName  string
	Phone        *string
	Organization *string
}

type ServiceParams struct {
	Store       Store
	Logger      *logger.Logger
	Now         func() time.Time
	NewSystemID func() string
}

type service struct {
	store       Store
	logg        *logger.Logger
	now         func() time.Time
	newSystemID func() string
}

// NewService wires identity dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity store required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.NewSystemID == nil {
		params.NewSystemID = NewSystemID
	}
	return &service{
		store:       params.Store,
		logg:        params.Logger,
		now:         params.Now,
		newSystemID: params.NewSystemID,
	}, nil
}

// NewSystemID returns a 32-char lowercase hex identifier.
func NewSystemID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ResolveOrCreate finds the identity behind a scan token, backfilling
// missing attributes, or creates it. Losing an insert race against a
// concurrent resolver adopts the winner's row instead of failing.
func (s *service) ResolveOrCreate(ctx context.Context, input ResolveInput) (*models.Identity, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetByScanToken(ctx, input.ScanToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up identity")
	}
	if existing != nil {
		return s.backfill(ctx, existing, input)
	}

	created, err := s.create(ctx, input)
	if err == nil {
		return created, nil
	}

	if dbpkg.IsUniqueViolation(err, "scan_token") {
		// lost the insert race; the winner's row is canonical
		winner, readErr := s.store.GetByScanToken(ctx, input.ScanToken)
		if readErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, readErr, "re-reading identity after insert race")
		}
		if winner == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "identity vanished after insert race")
		}
		if s.logg != nil {
			s.logg.Info(s.logg.WithScanToken(ctx, input.ScanToken), "adopted concurrently created identity")
		}
		return winner, nil
	}
	return nil, err
}

// Register strictly creates a new identity. Duplicate scan tokens and
// phone numbers are conflicts, never silent adoptions.
func (s *service) Register(ctx context.Context, input ResolveInput) (*models.Identity, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetByScanToken(ctx, input.ScanToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up identity")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "scan token already registered")
	}

	created, err := s.create(ctx, input)
	if err == nil {
		return created, nil
	}
	if dbpkg.IsUniqueViolation(err, "scan_token") {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "scan token already registered")
	}
	return nil, err
}

func (s *service) GetByScanToken(ctx context.Context, scanToken string) (*models.Identity, error) {
	scanToken = strings.TrimSpace(scanToken)
	if scanToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scan token is required")
	}

	row, err := s.store.GetByScanToken(ctx, scanToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up identity")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "identity not found")
	}
	return row, nil
}

func (s *service) List(ctx context.Context, dateRange types.DateRange) ([]models.Identity, error) {
	rows, err := s.store.List(ctx, dateRange)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing identities")
	}
	return rows, nil
}

func (s *service) create(ctx context.Context, input ResolveInput) (*models.Identity, error) {
	if input.Phone != nil {
		inUse, err := s.store.PhoneInUse(ctx, *input.Phone)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking phone uniqueness")
		}
		if inUse {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "phone number already registered")
		}
	}

	now := s.now().UTC()
	row := &models.Identity{
		ID:           uuid.New(),
		ScanToken:    input.ScanToken,
		SystemID:     s.newSystemID(),
		DisplayName:  input.DisplayName,
		PhoneE164:    input.Phone,
		Organization: input.Organization,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, row); err != nil {
		if dbpkg.IsUniqueViolation(err, "phone_e164") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "phone number already registered")
		}
		return nil, err
	}
	return row, nil
}

// backfill fills attributes the stored identity is missing. Existing
// values always win; a different phone on file is a conflict.
func (s *service) backfill(ctx context.Context, existing *models.Identity, input ResolveInput) (*models.Identity, error) {
	if input.Phone != nil && existing.PhoneE164 != nil && *existing.PhoneE164 != *input.Phone {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "identity already has a different phone number")
	}

	updates := map[string]any{}
	if input.Phone != nil && existing.PhoneE164 == nil {
		inUse, err := s.store.PhoneInUse(ctx, *input.Phone)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking phone uniqueness")
		}
		if inUse {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "phone number already registered")
		}
		updates["phone_e164"] = *input.Phone
		existing.PhoneE164 = input.Phone
	}
	if input.Organization != nil && existing.Organization == nil {
		updates["organization"] = *input.Organization
		existing.Organization = input.Organization
	}
	if existing.DisplayName == "" && input.DisplayName != "" {
		updates["display_name"] = input.DisplayName
		existing.DisplayName = input.DisplayName
	}

	if len(updates) == 0 {
		return existing, nil
	}

	now := s.now().UTC()
	updates["updated_at"] = now
	existing.UpdatedAt = now

	if err := s.store.Update(ctx, existing.ID, updates); err != nil {
		if dbpkg.IsUniqueViolation(err, "phone_e164") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "phone number already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backfilling identity")
	}
	return existing, nil
}

func normalizeInput(input ResolveInput) (ResolveInput, error) {
	input.ScanToken = strings.TrimSpace(input.ScanToken)
	if input.ScanToken == "" {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "scan token is required")
	}

	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if len(input.DisplayName) < displayNameMin || len(input.DisplayName) > displayNameMax {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "display name must be 3-50 characters")
	}

	if input.Phone != nil {
		phone := strings.TrimSpace(*input.Phone)
		if phone == "" {
			input.Phone = nil
		} else {
			input.Phone = &phone
		}
	}
	if input.Organization != nil {
		org := strings.TrimSpace(*input.Organization)
		if org == "" {
			input.Organization = nil
		} else {
			input.Organization = &org
		}
	}
	return input, nil
}
