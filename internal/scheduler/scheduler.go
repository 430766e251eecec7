package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Invoker interface {
	RunOnce(ctx context.Context) error
}

// Scheduler invokes reconciliation on a fixed interval, for deployments
// without an external timer. The first invocation starts right away.
type Scheduler struct {
	invoker Invoker
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewScheduler(invoker Invoker, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		invoker: invoker,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		log:     logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks until ctx is done. Failed invocations are logged and the next
// one runs on schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		err := s.limiter.Wait(ctx)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.log.Error().Err(err).Msg("unexpected limiter error, sleep before next invocation")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
				continue
			}
		}
		err = s.invoker.RunOnce(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("scheduler: invocation failed")
		}
	}
}
