package metrics

import "time"

type Metrics interface {
	Increment(string)
	Duration(string, time.Duration)
	Gauge(string, int)
}

// Prefix is prepended to every metric name below.
const Prefix = "apps.rds_tg_sync."

const (
	RunsTotal         = "reconcile.runs"
	RunsFailed        = "reconcile.runs_failed"
	RunsSkipped       = "reconcile.runs_skipped"
	RunDuration       = "reconcile.duration"
	RegisterCalls     = "reconcile.register_calls"
	DeregisterCalls   = "reconcile.deregister_calls"
	RegisteredTargets = "reconcile.registered_targets"
	DesiredTargets    = "reconcile.desired_targets"
	ZoneMissing       = "reconcile.zone_missing"
	CollaboratorError = "reconcile.collaborator_errors"
	LeaseErrors       = "lease.errors"
	SinkErrors        = "sink.errors"
)

type Noop struct{}

func (Noop) Increment(string)               {}
func (Noop) Duration(string, time.Duration) {}
func (Noop) Gauge(string, int)              {}
