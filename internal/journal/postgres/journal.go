// Package postgres keeps a write-only journal of reconciliation runs. Rows
// are for operators; the reconciler never reads them.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/models"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/pgerror"
)

const (
	runsTable      = "reconcile_runs"
	runsPrimaryKey = "reconcile_runs_pkey"
)

//go:embed schema.sql
var schema string

type Journal struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Journal, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return &Journal{
		db: pool,
	}, nil
}

func (j *Journal) EnsureSchema(ctx context.Context) error {
	_, err := j.db.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to apply journal schema: %w", err)
	}
	return nil
}

func (j *Journal) Record(ctx context.Context, rec models.RunRecord) error {
	sql, args, err := insertRunQuery(rec)
	if err != nil {
		return fmt.Errorf("failed to create db request: %w", err)
	}
	_, err = j.db.Exec(ctx, sql, args...)
	if err != nil {
		return insertError(rec.RunID, err)
	}
	return nil
}

func insertError(runID string, err error) error {
	if pgerror.IsUniqueViolation(err, runsPrimaryKey) {
		return fmt.Errorf("run %s already journaled", runID)
	}
	if constraint, ok := pgerror.ConstraintName(err); ok {
		return fmt.Errorf("run %s violates %s: %w", runID, constraint, err)
	}
	return fmt.Errorf("failed to insert run %s: %w", runID, err)
}

func (j *Journal) Close() {
	j.db.Close()
}

func insertRunQuery(rec models.RunRecord) (string, []any, error) {
	return squirrel.Insert(runsTable).
		Columns(
			"run_id",
			"target_group",
			"database_id",
			"zone",
			"registered",
			"desired",
			"register_calls",
			"deregister_calls",
			"registrations",
			"deregistrations",
			"errors",
			"failed",
			"started_at",
			"finished_at",
		).
		Values(
			rec.RunID,
			string(rec.TargetGroup),
			string(rec.Database),
			rec.Zone,
			nonNil(rec.Registered),
			nonNil(rec.Desired),
			rec.RegisterCalls,
			rec.DeregisterCalls,
			targetStrings(rec.Registrations),
			targetStrings(rec.Deregistrations),
			nonNil(rec.Errors),
			rec.Failed,
			rec.StartedAt,
			rec.FinishedAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

// nil slices are encoded as sql null, columns are not null
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func targetStrings(targets []models.Target) []string {
	result := make([]string, 0, len(targets))
	for _, target := range targets {
		result = append(result, target.String())
	}
	return result
}
