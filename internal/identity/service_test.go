package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stclabs/engage-backend/pkg/db/models"
	pkgerrors "github.com/stclabs/engage-backend/pkg/errors"
	"github.com/stclabs/engage-backend/pkg/types"
)

type fakeStore struct {
	getFn     func(ctx context.Context, scanToken string) (*models.Identity, error)
	phoneFn   func(ctx context.Context, phone string) (bool, error)
	createFn  func(ctx context.Context, row *models.Identity) error
	updateFn  func(ctx context.Context, id uuid.UUID, updates map[string]any) error
	listFn    func(ctx context.Context, dateRange types.DateRange) ([]models.Identity, error)
	createdAt int
}

func (f *fakeStore) GetByScanToken(ctx context.Context, scanToken string) (*models.Identity, error) {
	if f.getFn != nil {
		return f.getFn(ctx, scanToken)
	}
	return nil, nil
}

func (f *fakeStore) PhoneInUse(ctx context.Context, phone string) (bool, error) {
	if f.phoneFn != nil {
		return f.phoneFn(ctx, phone)
	}
	return false, nil
}

func (f *fakeStore) Create(ctx context.Context, row *models.Identity) error {
	f.createdAt++
	if f.createFn != nil {
		return f.createFn(ctx, row)
	}
	return nil
}

func (f *fakeStore) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, updates)
	}
	return nil
}

func (f *fakeStore) List(ctx context.Context, dateRange types.DateRange) ([]models.Identity, error) {
	if f.listFn != nil {
		return f.listFn(ctx, dateRange)
	}
	return nil, nil
}

func newServiceWithStore(t *testing.T, store Store) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Store: store,
		Now:   func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return svc
}

func strPtr(v string) *string { return &v }

func TestResolveOrCreateCreatesNewIdentity(t *testing.T) {
	store := &fakeStore{}
	svc := newServiceWithStore(t, store)

	got, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		ScanToken:   "tok-1",
		DisplayName: "  Ada Lovelace  ",
		Phone:       strPtr("+15551230001"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DisplayName != "Ada Lovelace" {
		t.Fatalf("expected trimmed display name, got %q", got.DisplayName)
	}
	if len(got.SystemID) != 32 {
		t.Fatalf("expected 32-char system id, got %q", got.SystemID)
	}
	if got.QuizzesTaken != 0 || got.TotalCorrectAnswers != 0 {
		t.Fatal("expected zeroed counters on create")
	}
	if store.createdAt != 1 {
		t.Fatalf("expected exactly one create, got %d", store.createdAt)
	}
}

func TestResolveOrCreateAdoptsRaceWinner(t *testing.T) {
	winner := &models.Identity{
		ID:          uuid.New(),
		ScanToken:   "tok-race",
		SystemID:    NewSystemID(),
		DisplayName: "Winner",
	}

	calls := 0
	store := &fakeStore{
		getFn: func(ctx context.Context, scanToken string) (*models.Identity, error) {
			calls++
			if calls == 1 {
				return nil, nil
			}
			return winner, nil
		},
		createFn: func(ctx context.Context, row *models.Identity) error {
			return errors.New("UNIQUE constraint failed: identities.scan_token")
		},
	}

	svc := newServiceWithStore(t, store)
	got, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		ScanToken:   "tok-race",
		DisplayName: "Loser",
	})
	if err != nil {
		t.Fatalf("expected race to converge, got %v", err)
	}
	if got.ID != winner.ID {
		t.Fatal("expected the winner's row to be adopted")
	}
}

func TestResolveOrCreatePhoneConflictOnCreate(t *testing.T) {
	store := &fakeStore{
		phoneFn: func(ctx context.Context, phone string) (bool, error) {
			return true, nil
		},
	}

	svc := newServiceWithStore(t, store)
	_, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		ScanToken:   "tok-1",
		DisplayName: "Ada Lovelace",
		Phone:       strPtr("+15551230001"),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if store.createdAt != 0 {
		t.Fatal("expected no create attempt after phone pre-check")
	}
}

func TestResolveOrCreateBackfillsMissingFields(t *testing.T) {
	existing := &models.Identity{
		ID:          uuid.New(),
		ScanToken:   "tok-1",
		SystemID:    NewSystemID(),
		DisplayName: "Ada Lovelace",
	}

	var applied map[string]any
	store := &fakeStore{
		getFn: func(ctx context.Context, scanToken string) (*models.Identity, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, id uuid.UUID, updates map[string]any) error {
			applied = updates
			return nil
		},
	}

	svc := newServiceWithStore(t, store)
	got, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		ScanToken:    "tok-1",
		DisplayName:  "Someone Else",
		Phone:        strPtr("+15551230002"),
		Organization: strPtr("STC Labs"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// name already set, never overwritten
	if got.DisplayName != "Ada Lovelace" {
		t.Fatalf("expected existing name preserved, got %q", got.DisplayName)
	}
	if applied["phone_e164"] != "+15551230002" {
		t.Fatalf("expected phone backfill, got %v", applied)
	}
	if applied["organization"] != "STC Labs" {
		t.Fatalf("expected organization backfill, got %v", applied)
	}
	if _, ok := applied["display_name"]; ok {
		t.Fatal("display name must not be overwritten")
	}
}

func TestResolveOrCreateRejectsDifferentPhone(t *testing.T) {
	existing := &models.Identity{
		ID:          uuid.New(),
		ScanToken:   "tok-1",
		SystemID:    NewSystemID(),
		DisplayName: "Ada Lovelace",
		PhoneE164:   strPtr("+15551230001"),
	}

	store := &fakeStore{
		getFn: func(ctx context.Context, scanToken string) (*models.Identity, error) {
			return existing, nil
		},
	}

	svc := newServiceWithStore(t, store)
	_, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		ScanToken:   "tok-1",
		DisplayName: "Ada Lovelace",
		Phone:       strPtr("+15559990000"),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestResolveOrCreateIsIdempotent(t *testing.T) {
	existing := &models.Identity{
		ID:          uuid.New(),
		ScanToken:   "tok-1",
		SystemID:    NewSystemID(),
		DisplayName: "Ada Lovelace",
		PhoneE164:   strPtr("+15551230001"),
	}

	updates := 0
	store := &fakeStore{
		getFn: func(ctx context.Context, scanToken string) (*models.Identity, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, id uuid.UUID, _ map[string]any) error {
			updates++
			return nil
		},
	}

	svc := newServiceWithStore(t, store)
	got, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		ScanToken:   "tok-1",
		DisplayName: "Ada Lovelace",
		Phone:       strPtr("+15551230001"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != existing.ID {
		t.Fatal("expected the existing row back")
	}
	if updates != 0 {
		t.Fatal("expected no writes when nothing is missing")
	}
}

func TestRegisterRejectsExistingToken(t *testing.T) {
	store := &fakeStore{
		getFn: func(ctx context.Context, scanToken string) (*models.Identity, error) {
			return &models.Identity{ID: uuid.New(), ScanToken: scanToken}, nil
		},
	}

	svc := newServiceWithStore(t, store)
	_, err := svc.Register(context.Background(), ResolveInput{
		ScanToken:   "tok-1",
		DisplayName: "Ada Lovelace",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestGetByScanTokenNotFound(t *testing.T) {
	svc := newServiceWithStore(t, &fakeStore{})

	_, err := svc.GetByScanToken(context.Background(), "missing")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveOrCreateValidatesDisplayName(t *testing.T) {
	svc := newServiceWithStore(t, &fakeStore{})

	_, err := svc.ResolveOrCreate(context.Background(), ResolveInput{
		ScanToken:   "tok-1",
		DisplayName: "ab",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
