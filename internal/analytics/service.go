package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/stclabs/engage-backend/pkg/db/models"
	pkgerrors "github.com/stclabs/engage-backend/pkg/errors"
	"github.com/stclabs/engage-backend/pkg/logger"
)

const (
	unknownOrganization = "Unknown"
	overviewTopOrgs     = 5
	recentWindow        = 7 * 24 * time.Hour
)

// Store is the read surface the aggregations need.
type Store interface {
	AllSubmissions(ctx context.Context) ([]models.SurveySubmission, error)
	CountIdentities(ctx context.Context) (int64, error)
}

// Service defines the reporting operations behind the admin dashboard.
type Service interface {
	OrganizationCounts(ctx context.Context, limit int) ([]OrganizationCount, error)
	AverageScores(ctx context.Context, minCount int) ([]QuestionAverage, error)
	Overview(ctx context.Context) (*Overview, error)
}

// OrganizationCount aggregates survey activity for one organization.
type OrganizationCount struct {
	Organization     string     `json:"organization"`
	Surveys          int        `json:"surveys"`
	UniqueIdentities int        `json:"uniqueIdentities"`
	LastSubmission   *time.Time `json:"lastSubmission,omitempty"`
}

// QuestionAverage is the mean numeric answer for one question key.
type QuestionAverage struct {
	Question string  `json:"question"`
	Average  float64 `json:"average"`
	Count    int     `json:"count"`
}

// Overview is the headline dashboard payload.
type Overview struct {
	TotalIdentities  int64               `json:"totalIdentities"`
	TotalSurveys     int                 `json:"totalSurveys"`
	SurveysLast7Days int                 `json:"surveysLast7Days"`
	OverallAverage   *float64            `json:"overallAverage,omitempty"`
	TopOrganizations []OrganizationCount `json:"topOrganizations"`
	GeneratedAt      time.Time           `json:"generatedAt"`
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

// NewService wires analytics dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "analytics store required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{store: params.Store, logg: params.Logger, now: params.Now}, nil
}

// OrganizationCounts groups submissions by organization, sorted by survey
// count descending then name. Submissions without an organization fall
// into the "Unknown" bucket.
func (s *service) OrganizationCounts(ctx context.Context, limit int) ([]OrganizationCount, error) {
	rows, err := s.store.AllSubmissions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading submissions")
	}
	counts := organizationCounts(rows)
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}

// AverageScores computes the per-question mean over numeric answers.
// Questions with fewer than minCount numeric answers are dropped.
func (s *service) AverageScores(ctx context.Context, minCount int) ([]QuestionAverage, error) {
	rows, err := s.store.AllSubmissions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading submissions")
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, row := range rows {
		for question, answer := range row.Answers {
			if value, ok := answer.Numeric(); ok {
				sums[question] += value
				counts[question]++
			}
		}
	}

	averages := make([]QuestionAverage, 0, len(sums))
	for question, sum := range sums {
		if counts[question] < minCount {
			continue
		}
		averages = append(averages, QuestionAverage{
			Question: question,
			Average:  round2(sum / float64(counts[question])),
			Count:    counts[question],
		})
	}
	sort.Slice(averages, func(i, j int) bool {
		return averages[i].Question < averages[j].Question
	})
	return averages, nil
}

// Overview assembles the totals, the last-7-days window, the overall
// numeric answer average and the top organizations.
func (s *service) Overview(ctx context.Context) (*Overview, error) {
	identities, err := s.store.CountIdentities(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting identities")
	}
	rows, err := s.store.AllSubmissions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading submissions")
	}

	now := s.now().UTC()
	cutoff := now.Add(-recentWindow)

	recent := 0
	var sum float64
	numeric := 0
	for _, row := range rows {
		if !row.SubmittedAt.Before(cutoff) {
			recent++
		}
		for _, answer := range row.Answers {
			if value, ok := answer.Numeric(); ok {
				sum += value
				numeric++
			}
		}
	}

	var overall *float64
	if numeric > 0 {
		avg := round2(sum / float64(numeric))
		overall = &avg
	}

	top := organizationCounts(rows)
	if len(top) > overviewTopOrgs {
		top = top[:overviewTopOrgs]
	}

	return &Overview{
		TotalIdentities:  identities,
		TotalSurveys:     len(rows),
		SurveysLast7Days: recent,
		OverallAverage:   overall,
		TopOrganizations: top,
		GeneratedAt:      now,
	}, nil
}

func organizationCounts(rows []models.SurveySubmission) []OrganizationCount {
	type bucket struct {
		surveys    int
		identities map[string]struct{}
		last       time.Time
	}

	buckets := map[string]*bucket{}
	for _, row := range rows {
		name := unknownOrganization
		if row.Organization != nil && *row.Organization != "" {
			name = *row.Organization
		}
		b, ok := buckets[name]
		if !ok {
			b = &bucket{identities: map[string]struct{}{}}
			buckets[name] = b
		}
		b.surveys++
		b.identities[row.SystemID] = struct{}{}
		if row.SubmittedAt.After(b.last) {
			b.last = row.SubmittedAt
		}
	}

	counts := make([]OrganizationCount, 0, len(buckets))
	for name, b := range buckets {
		last := b.last
		counts = append(counts, OrganizationCount{
			Organization:     name,
			Surveys:          b.surveys,
			UniqueIdentities: len(b.identities),
			LastSubmission:   &last,
		})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Surveys != counts[j].Surveys {
			return counts[i].Surveys > counts[j].Surveys
		}
		return counts[i].Organization < counts[j].Organization
	})
	return counts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
