package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/rs/zerolog"

	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/metrics"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/models"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/reconciler"
)

const sinkTimeout = 5 * time.Second

type Reconciler interface {
	Reconcile(ctx context.Context) (reconciler.Report, error)
}

type Locker interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

type Journal interface {
	Record(ctx context.Context, rec models.RunRecord) error
}

type Publisher interface {
	Publish(ctx context.Context, rec models.RunRecord) error
}

type Option func(r *Runner)

func WithLocker(locker Locker) Option {
	return func(r *Runner) {
		r.locker = locker
	}
}

func WithJournal(journal Journal) Option {
	return func(r *Runner) {
		r.journal = journal
	}
}

func WithPublisher(publisher Publisher) Option {
	return func(r *Runner) {
		r.publisher = publisher
	}
}

func WithMetrics(m metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTimeout bounds a whole invocation, zero means no deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		r.timeout = timeout
	}
}

// Runner wraps one reconciliation pass with everything around it. Nothing the
// runner does feeds back into the reconciliation decision.
type Runner struct {
	reconciler  Reconciler
	targetGroup models.TargetGroupID
	database    models.DatabaseID

	locker    Locker
	journal   Journal
	publisher Publisher
	metrics   metrics.Metrics
	timeout   time.Duration

	now     func() time.Time
	newUUID func() (string, error)
	log     zerolog.Logger
}

func NewRunner(
	rec Reconciler,
	targetGroup models.TargetGroupID,
	database models.DatabaseID,
	logger zerolog.Logger,
	opts ...Option,
) *Runner {
	r := &Runner{
		reconciler:  rec,
		targetGroup: targetGroup,
		database:    database,
		metrics:     metrics.Noop{},
		now:         time.Now,
		newUUID:     uuid.GenerateUUID,
		log:         logger.With().Str("component", "runner").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce runs a single invocation. It returns an error only when the lease
// could not be taken or the pass itself aborted.
func (r *Runner) RunOnce(ctx context.Context) error {
	runID, err := r.newUUID()
	if err != nil {
		return fmt.Errorf("failed to generate run id: %w", err)
	}
	log := r.log.With().Str("run_id", runID).Logger()
	ctx = models.ContextWithRunID(ctx, runID)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if r.locker != nil {
		release, acquired, err := r.locker.Acquire(ctx)
		if err != nil {
			r.metrics.Increment(metrics.LeaseErrors)
			return fmt.Errorf("failed to acquire reconciliation lease: %w", err)
		}
		if !acquired {
			r.metrics.Increment(metrics.RunsSkipped)
			log.Warn().Msg("another invocation holds the lease, skip this one")
			return nil
		}
		defer release()
	}

	log.Info().Msgf("start reconciliation of %s", r.targetGroup)
	startedAt := r.now()
	report, runErr := r.reconciler.Reconcile(ctx)
	finishedAt := r.now()

	r.observe(report, runErr, finishedAt.Sub(startedAt))

	rec := r.newRunRecord(runID, report, runErr, startedAt, finishedAt)
	r.sink(ctx, log, rec)

	if runErr != nil {
		return fmt.Errorf("reconciliation %s failed: %w", runID, runErr)
	}
	log.Info().Msgf(
		"reconciliation done: register calls %d, deregister calls %d, errors %d, duration %d ms",
		rec.RegisterCalls,
		rec.DeregisterCalls,
		len(report.Errors),
		finishedAt.Sub(startedAt).Milliseconds(),
	)
	return nil
}

func (r *Runner) observe(report reconciler.Report, runErr error, duration time.Duration) {
	r.metrics.Increment(metrics.RunsTotal)
	r.metrics.Duration(metrics.RunDuration, duration)
	for range report.Errors {
		r.metrics.Increment(metrics.CollaboratorError)
	}
	if runErr != nil {
		r.metrics.Increment(metrics.RunsFailed)
		return
	}
	r.metrics.Gauge(metrics.RegisteredTargets, len(report.Registered))
	r.metrics.Gauge(metrics.DesiredTargets, len(report.Desired))
	if !report.ZoneFound {
		r.metrics.Increment(metrics.ZoneMissing)
	}
	for range report.RegisterCalls {
		r.metrics.Increment(metrics.RegisterCalls)
	}
	for range report.DeregisterCalls {
		r.metrics.Increment(metrics.DeregisterCalls)
	}
}

func (r *Runner) newRunRecord(
	runID string,
	report reconciler.Report,
	runErr error,
	startedAt, finishedAt time.Time,
) models.RunRecord {
	rec := models.RunRecord{
		RunID:           runID,
		TargetGroup:     r.targetGroup,
		Database:        r.database,
		Zone:            report.Zone,
		Registered:      report.Registered,
		Desired:         report.Desired,
		RegisterCalls:   len(report.RegisterCalls),
		DeregisterCalls: len(report.DeregisterCalls),
		Failed:          runErr != nil,
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
	}
	for _, call := range report.RegisterCalls {
		rec.Registrations = append(rec.Registrations, call...)
	}
	if n := len(report.DeregisterCalls); n > 0 {
		// cumulative batches end with the full set, a single batch is the full set
		rec.Deregistrations = report.DeregisterCalls[n-1]
	}
	for _, err := range report.Errors {
		rec.Errors = append(rec.Errors, err.Error())
	}
	if runErr != nil {
		rec.Errors = append(rec.Errors, runErr.Error())
	}
	return rec
}

func (r *Runner) sink(ctx context.Context, log zerolog.Logger, rec models.RunRecord) {
	if r.journal == nil && (r.publisher == nil || !rec.Changed()) {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	if r.journal != nil {
		err := r.journal.Record(ctx, rec)
		if err != nil {
			r.metrics.Increment(metrics.SinkErrors)
			log.Error().Err(err).Msg("failed to journal reconciliation run")
		}
	}
	if r.publisher != nil && rec.Changed() {
		err := r.publisher.Publish(ctx, rec)
		if err != nil {
			r.metrics.Increment(metrics.SinkErrors)
			log.Error().Err(err).Msg("failed to publish target group change event")
		}
	}
}
