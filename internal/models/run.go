package models

import (
	"context"
	"time"
)

type runIDKey struct{}

func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func RunIDFromContext(ctx context.Context) string {
	runID, _ := ctx.Value(runIDKey{}).(string)
	return runID
}

// RunRecord summarizes one invocation for the journal and change events.
// It is diagnostic output and is never read back to make decisions.
type RunRecord struct {
	RunID       string
	TargetGroup TargetGroupID
	Database    DatabaseID
	Zone        string
	Registered  []string
	Desired     []string

	RegisterCalls   int
	DeregisterCalls int
	Registrations   []Target
	Deregistrations []Target

	Errors     []string
	Failed     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r RunRecord) Changed() bool {
	return r.RegisterCalls > 0 || r.DeregisterCalls > 0
}
