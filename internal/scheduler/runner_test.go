package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/metrics"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/models"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/reconciler"
)

type fakeReconciler struct {
	report   reconciler.Report
	err      error
	waitDone bool

	calls  int
	runIDs []string
	ctxErr error
}

func (f *fakeReconciler) Reconcile(ctx context.Context) (reconciler.Report, error) {
	f.calls++
	f.runIDs = append(f.runIDs, models.RunIDFromContext(ctx))
	if f.waitDone {
		<-ctx.Done()
	}
	f.ctxErr = ctx.Err()
	return f.report, f.err
}

type fakeLocker struct {
	acquired bool
	err      error

	released int
}

func (f *fakeLocker) Acquire(context.Context) (func(), bool, error) {
	if f.err != nil || !f.acquired {
		return nil, f.acquired, f.err
	}
	return func() { f.released++ }, true, nil
}

type fakeJournal struct {
	records []models.RunRecord
	err     error
}

func (f *fakeJournal) Record(_ context.Context, rec models.RunRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

type fakePublisher struct {
	records []models.RunRecord
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, rec models.RunRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

type fakeMetrics struct {
	mu        sync.Mutex
	counters  map[string]int
	gauges    map[string]int
	durations map[string]time.Duration
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		counters:  make(map[string]int),
		gauges:    make(map[string]int),
		durations: make(map[string]time.Duration),
	}
}

func (f *fakeMetrics) Increment(metric string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[metric]++
}

func (f *fakeMetrics) Duration(metric string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations[metric] = d
}

func (f *fakeMetrics) Gauge(metric string, v int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gauges[metric] = v
}

func changedReport() reconciler.Report {
	return reconciler.Report{
		Registered: []string{"A", "B"},
		Zone:       "eu-west-1a",
		ZoneFound:  true,
		Desired:    []string{"B", "C"},
		RegisterCalls: [][]models.Target{
			{{Addr: "B", Port: 5432}, {Addr: "C", Port: 5432}},
		},
		DeregisterCalls: [][]models.Target{
			{{Addr: "A", Port: 5432}},
			{{Addr: "A", Port: 5432}, {Addr: "B", Port: 5432}},
		},
		Errors: []error{errors.New("deregister throttled")},
	}
}

func newTestRunner(rec Reconciler, opts ...Option) *Runner {
	r := NewRunner(rec, "tg-arn", "orders-db", zerolog.Nop(), opts...)

	ids := 0
	r.newUUID = func() (string, error) {
		ids++
		return "run-" + string(rune('0'+ids)), nil
	}
	start := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	ticks := 0
	r.now = func() time.Time {
		ticks++
		return start.Add(time.Duration(ticks) * time.Second)
	}
	return r
}

func TestRunOnceChanged(t *testing.T) {
	var (
		rec       = &fakeReconciler{report: changedReport()}
		locker    = &fakeLocker{acquired: true}
		journal   = &fakeJournal{}
		publisher = &fakePublisher{}
		m         = newFakeMetrics()
	)
	r := newTestRunner(rec,
		WithLocker(locker),
		WithJournal(journal),
		WithPublisher(publisher),
		WithMetrics(m),
	)

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, []string{"run-1"}, rec.runIDs)
	assert.Equal(t, 1, locker.released)

	require.Len(t, journal.records, 1)
	got := journal.records[0]
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, models.TargetGroupID("tg-arn"), got.TargetGroup)
	assert.Equal(t, models.DatabaseID("orders-db"), got.Database)
	assert.Equal(t, "eu-west-1a", got.Zone)
	assert.Equal(t, 1, got.RegisterCalls)
	assert.Equal(t, 2, got.DeregisterCalls)
	assert.Equal(t, []models.Target{{Addr: "B", Port: 5432}, {Addr: "C", Port: 5432}}, got.Registrations)
	assert.Equal(t, []models.Target{{Addr: "A", Port: 5432}, {Addr: "B", Port: 5432}}, got.Deregistrations)
	assert.Equal(t, []string{"deregister throttled"}, got.Errors)
	assert.False(t, got.Failed)
	assert.Equal(t, time.Second, got.FinishedAt.Sub(got.StartedAt))

	require.Len(t, publisher.records, 1)
	assert.Equal(t, got, publisher.records[0])

	assert.Equal(t, 1, m.counters[metrics.RunsTotal])
	assert.Equal(t, 1, m.counters[metrics.RegisterCalls])
	assert.Equal(t, 2, m.counters[metrics.DeregisterCalls])
	assert.Equal(t, 1, m.counters[metrics.CollaboratorError])
	assert.Zero(t, m.counters[metrics.ZoneMissing])
	assert.Equal(t, 2, m.gauges[metrics.RegisteredTargets])
	assert.Equal(t, 2, m.gauges[metrics.DesiredTargets])
	assert.Equal(t, time.Second, m.durations[metrics.RunDuration])
}

func TestRunOnceUnchangedSkipsPublisher(t *testing.T) {
	var (
		rec = &fakeReconciler{report: reconciler.Report{
			Registered: []string{"A"},
			Desired:    []string{"A"},
			ZoneFound:  true,
		}}
		journal   = &fakeJournal{}
		publisher = &fakePublisher{}
	)
	r := newTestRunner(rec, WithJournal(journal), WithPublisher(publisher))

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Len(t, journal.records, 1)
	assert.Empty(t, publisher.records)
}

func TestRunOnceLeaseHeldElsewhere(t *testing.T) {
	var (
		rec     = &fakeReconciler{}
		journal = &fakeJournal{}
		m       = newFakeMetrics()
	)
	r := newTestRunner(rec, WithLocker(&fakeLocker{acquired: false}), WithJournal(journal), WithMetrics(m))

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Zero(t, rec.calls)
	assert.Empty(t, journal.records)
	assert.Equal(t, 1, m.counters[metrics.RunsSkipped])
}

func TestRunOnceLeaseError(t *testing.T) {
	var (
		rec      = &fakeReconciler{}
		leaseErr = errors.New("etcdserver: request timed out")
		m        = newFakeMetrics()
	)
	r := newTestRunner(rec, WithLocker(&fakeLocker{err: leaseErr}), WithMetrics(m))

	err := r.RunOnce(context.Background())
	require.ErrorIs(t, err, leaseErr)
	assert.Zero(t, rec.calls)
	assert.Equal(t, 1, m.counters[metrics.LeaseErrors])
}

func TestRunOnceReconcileFailure(t *testing.T) {
	var (
		listErr = &reconciler.RegistryError{Op: reconciler.OpList, TargetGroup: "tg-arn", Err: errors.New("throttled")}
		topoErr = &reconciler.TopologyError{SecurityGroup: "sg-1", Zone: "eu-west-1a", Err: errors.New("timeout")}
		rec     = &fakeReconciler{
			report: reconciler.Report{Zone: "eu-west-1a", ZoneFound: true, Errors: []error{listErr}},
			err:    topoErr,
		}
		journal = &fakeJournal{}
		m       = newFakeMetrics()
	)
	r := newTestRunner(rec, WithJournal(journal), WithMetrics(m))

	err := r.RunOnce(context.Background())
	var tErr *reconciler.TopologyError
	require.ErrorAs(t, err, &tErr)

	require.Len(t, journal.records, 1)
	assert.True(t, journal.records[0].Failed)
	assert.Equal(t, []string{listErr.Error(), topoErr.Error()}, journal.records[0].Errors)
	assert.Equal(t, 1, m.counters[metrics.RunsFailed])
	assert.Equal(t, 1, m.counters[metrics.CollaboratorError], "errors seen before the abort are counted")
}

func TestRunOnceSinkFailuresAreAbsorbed(t *testing.T) {
	var (
		rec       = &fakeReconciler{report: changedReport()}
		journal   = &fakeJournal{err: errors.New("db down")}
		publisher = &fakePublisher{err: errors.New("broker down")}
		m         = newFakeMetrics()
	)
	r := newTestRunner(rec, WithJournal(journal), WithPublisher(publisher), WithMetrics(m))

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, 2, m.counters[metrics.SinkErrors])
}

func TestRunOnceTimeout(t *testing.T) {
	rec := &fakeReconciler{waitDone: true}
	r := newTestRunner(rec, WithTimeout(10*time.Millisecond))

	require.NoError(t, r.RunOnce(context.Background()))
	require.Equal(t, 1, rec.calls)
	assert.ErrorIs(t, rec.ctxErr, context.DeadlineExceeded)
}

func TestRunOnceZoneMissingMetric(t *testing.T) {
	m := newFakeMetrics()
	r := newTestRunner(&fakeReconciler{}, WithMetrics(m))

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, 1, m.counters[metrics.ZoneMissing])
}
