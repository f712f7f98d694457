package outbox

import (
	"context"
	"fmt"

	"github.com/stclabs/engage-backend/pkg/db/models"
	"github.com/stclabs/engage-backend/pkg/logger"
)

// Result summarizes one drain pass.
type Result struct {
	Done   int
	Failed int
}

func (r Result) Total() int {
	return r.Done + r.Failed
}

// Dispatcher drains claimable events one at a time. It holds no state
// between passes, so any number of dispatchers can run against the same
// table.
type Dispatcher struct {
	repo     *Repository
	registry *Registry
	logg     *logger.Logger
}

type DispatcherParams struct {
	Repo     *Repository
	Registry *Registry
	Logger   *logger.Logger
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("repo is required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	return &Dispatcher{
		repo:     params.Repo,
		registry: params.Registry,
		logg:     params.Logger,
	}, nil
}

// Drain claims and processes up to batchLimit events. Handler errors and
// panics are contained: the event is marked FAILED and the pass moves on.
// Drain stops early only when no claimable event remains or the store
// itself fails.
func (d *Dispatcher) Drain(ctx context.Context, batchLimit int) (Result, error) {
	var result Result
	if batchLimit <= 0 {
		return result, fmt.Errorf("batchLimit must be positive, got %d", batchLimit)
	}

	for i := 0; i < batchLimit; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		event, err := d.repo.ClaimNext(ctx)
		if err != nil {
			return result, err
		}
		if event == nil {
			return result, nil
		}

		eventCtx := ctx
		if d.logg != nil {
			eventCtx = d.logg.WithFields(ctx, map[string]any{
				"outbox_id": event.ID.String(),
				"topic":     event.Topic,
				"attempts":  event.Attempts,
			})
		}

		if handlerErr := d.process(eventCtx, *event); handlerErr != nil {
			if err := d.repo.MarkFailed(ctx, *event, handlerErr); err != nil {
				return result, err
			}
			result.Failed++
			if d.logg != nil {
				d.logg.Warn(eventCtx, "outbox event failed: "+handlerErr.Error())
			}
			continue
		}

		if err := d.repo.MarkDone(ctx, *event); err != nil {
			return result, err
		}
		result.Done++
		if d.logg != nil {
			d.logg.Info(eventCtx, "outbox event done")
		}
	}
	return result, nil
}

// process invokes the topic handler, converting panics into errors so a
// misbehaving handler can never take down the drain loop.
func (d *Dispatcher) process(ctx context.Context, event models.OutboxEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	handler, ok := d.registry.Resolve(event.Topic)
	if !ok {
		return fmt.Errorf("no handler registered for topic %q", event.Topic)
	}
	return handler(ctx, event)
}
