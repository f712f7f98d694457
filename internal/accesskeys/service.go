package accesskeys

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stclabs/engage-backend/pkg/db/models"
	pkgerrors "github.com/stclabs/engage-backend/pkg/errors"
	"github.com/stclabs/engage-backend/pkg/logger"
	"github.com/stclabs/engage-backend/pkg/security"
)

const (
	generateMin = 1
	generateMax = 1000
)

// Store is the persistence surface the service needs.
type Store interface {
	InsertBatch(ctx context.Context, rows []models.AccessKey) error
	DigestExists(ctx context.Context, digest string) (bool, error)
}

// Service defines dashboard access key operations.
type Service interface {
	Generate(ctx context.Context, count int, label string) ([]string, error)
	Validate(ctx context.Context, key string) (bool, error)
}

type ServiceParams struct {
	Store  Store
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	store Store
	logg  *logger.Logger
	now   func() time.Time
}

// NewService wires access key dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "access key store required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{store: params.Store, logg: params.Logger, now: params.Now}, nil
}

// Generate mints count random keys, stores only their digests, and
// returns the plaintexts. This is the only time the plaintext exists.
func (s *service) Generate(ctx context.Context, count int, label string) ([]string, error) {
	if count < generateMin || count > generateMax {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "count must be between 1 and 1000")
	}
	label = strings.TrimSpace(label)

	now := s.now().UTC()
	plaintexts := make([]string, 0, count)
	rows := make([]models.AccessKey, 0, count)
	for i := 0; i < count; i++ {
		key, err := security.NewAccessKey()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating access key")
		}
		row := models.AccessKey{
			ID:        uuid.New(),
			Digest:    security.DigestKey(key),
			CreatedAt: now,
		}
		if label != "" {
			row.Label = &label
		}
		plaintexts = append(plaintexts, key)
		rows = append(rows, row)
	}

	if err := s.store.InsertBatch(ctx, rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing access keys")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "count", count), "access keys generated")
	}
	return plaintexts, nil
}

// Validate reports whether the plaintext matches a stored digest.
func (s *service) Validate(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, nil
	}
	ok, err := s.store.DigestExists(ctx, security.DigestKey(key))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validating access key")
	}
	return ok, nil
}
