package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/stclabs/engage-backend/pkg/config"
	"github.com/stclabs/engage-backend/pkg/logger"
	"github.com/stclabs/engage-backend/pkg/metrics"
	"github.com/stclabs/engage-backend/pkg/outbox"
)

const (
	workerName       = "outbox-worker"
	defaultBatchSize = 20
	defaultPollMs    = 500
	maxBackoff       = 10 * time.Second
	jitterWindow     = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type pinger interface {
	Ping(context.Context) error
}

type drainer interface {
	Drain(ctx context.Context, batchLimit int) (outbox.Result, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         pinger
	Dispatcher drainer
	Metrics    *metrics.OutboxMetrics
}

type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	db           pinger
	dispatcher   drainer
	metrics      *metrics.OutboxMetrics
	batchSize    int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		db:           params.DB,
		dispatcher:   params.Dispatcher,
		metrics:      params.Metrics,
		batchSize:    batch,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Run drains until the context is canceled. A store error backs the loop
// off exponentially; an idle pass sleeps one poll interval.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox worker context canceled")
			return ctx.Err()
		default:
		}

		start := time.Now()
		result, err := s.dispatcher.Drain(ctx, s.batchSize)
		s.metrics.ObserveDrain(workerName, time.Since(start))
		s.metrics.AddDone(workerName, result.Done)
		s.metrics.AddFailed(workerName, result.Failed)

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logg.Error(ctx, "outbox drain error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if result.Total() > 0 {
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"done":   result.Done,
				"failed": result.Failed,
			}), "outbox drain pass complete")
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
