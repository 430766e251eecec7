package reconciler

import (
	"context"
	"slices"

	"github.com/rs/zerolog"

	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/models"
)

type TargetRegistry interface {
	ListTargets(ctx context.Context, tg models.TargetGroupID) ([]string, error)
	RegisterTargets(ctx context.Context, tg models.TargetGroupID, targets []models.Target) error
	DeregisterTargets(ctx context.Context, tg models.TargetGroupID, targets []models.Target) error
}

type DatabaseLocator interface {
	ResolveZone(ctx context.Context, db models.DatabaseID) (zone string, found bool, err error)
}

type NetworkTopology interface {
	ListAddresses(ctx context.Context, sg models.SecurityGroupID, zone string) ([]string, error)
}

// Report is what one pass saw and which calls it issued. Calls are recorded
// even when the registry rejected them; failures are in Errors.
type Report struct {
	Registered []string
	Zone       string
	ZoneFound  bool
	Desired    []string

	RegisterCalls   [][]models.Target
	DeregisterCalls [][]models.Target

	Errors []error
}

func (r Report) Changed() bool {
	return len(r.RegisterCalls) > 0 || len(r.DeregisterCalls) > 0
}

type Reconciler struct {
	cfg      Config
	registry TargetRegistry
	locator  DatabaseLocator
	topology NetworkTopology

	log zerolog.Logger
}

func New(
	cfg Config,
	registry TargetRegistry,
	locator DatabaseLocator,
	topology NetworkTopology,
	logger zerolog.Logger,
) *Reconciler {
	if cfg.DeregisterMode == "" {
		cfg.DeregisterMode = DeregisterCumulative
	}
	if cfg.TopologyErrorPolicy == "" {
		cfg.TopologyErrorPolicy = TopologyErrorFail
	}
	return &Reconciler{
		cfg:      cfg,
		registry: registry,
		locator:  locator,
		topology: topology,
		log:      logger.With().Str("component", "reconciler").Logger(),
	}
}

// Reconcile makes one pass over the target group. Registered and desired
// addresses are compared as ordered sequences, so a reordering alone counts
// as a difference and triggers a full re-registration and deregistration.
//
// Collaborator failures are logged and turn into empty results, which is
// fail-open: a failed list or zone lookup can deregister every target. The
// only returned error is a TopologyError under TopologyErrorFail.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	var (
		report = Report{}
		log    = r.log.With().Str("run_id", models.RunIDFromContext(ctx)).Logger()
	)

	registered, err := r.registry.ListTargets(ctx, r.cfg.TargetGroup)
	if err != nil {
		err = &RegistryError{Op: OpList, TargetGroup: r.cfg.TargetGroup, Err: err}
		log.Error().Err(err).Msg("failed to list registered targets, continue with empty list")
		report.Errors = append(report.Errors, err)
		registered = nil
	}
	report.Registered = registered
	log.Info().Msgf("number of currently registered targets: %d", len(registered))

	log.Info().Msgf("resolving current zone of database %s", r.cfg.Database)
	zone, found, err := r.locator.ResolveZone(ctx, r.cfg.Database)
	if err != nil {
		err = &LocatorError{Database: r.cfg.Database, Err: err}
		log.Error().Err(err).Msg("failed to resolve database zone, desired targets are empty")
		report.Errors = append(report.Errors, err)
		zone, found = "", false
	}
	report.Zone, report.ZoneFound = zone, found

	var desired []string
	if found {
		log.Info().Msgf("database %s is in zone %s", r.cfg.Database, zone)

		desired, err = r.topology.ListAddresses(ctx, r.cfg.SecurityGroup, zone)
		if err != nil {
			err = &TopologyError{SecurityGroup: r.cfg.SecurityGroup, Zone: zone, Err: err}
			if r.cfg.TopologyErrorPolicy == TopologyErrorFail {
				log.Error().Err(err).Msg("failed to list database interfaces, aborting reconciliation")
				return report, err
			}
			log.Error().Err(err).Msg("failed to list database interfaces, desired targets are empty")
			report.Errors = append(report.Errors, err)
			desired = nil
		}
	} else if err == nil {
		log.Warn().Msgf("database %s has no zone, desired targets are empty", r.cfg.Database)
	}
	report.Desired = desired

	inSync := slices.Equal(registered, desired)

	if len(registered) == 0 || !inSync {
		r.register(ctx, log, desired, &report)
	} else {
		log.Info().Msg("no new target registered")
	}

	if inSync {
		log.Info().Msg("no old target deregistered")
		return report, nil
	}
	r.deregister(ctx, log, registered, &report)
	return report, nil
}

func (r *Reconciler) register(ctx context.Context, log zerolog.Logger, desired []string, report *Report) {
	if len(desired) == 0 {
		log.Info().Msg("no new target registered")
		return
	}
	targets := models.TargetsFor(desired, r.cfg.Port)
	report.RegisterCalls = append(report.RegisterCalls, targets)

	log.Info().Msgf("registering targets: %v", targets)
	err := r.registry.RegisterTargets(ctx, r.cfg.TargetGroup, targets)
	if err != nil {
		err = &RegistryError{Op: OpRegister, TargetGroup: r.cfg.TargetGroup, Err: err}
		log.Error().Err(err).Msgf("failed to register targets %v", targets)
		report.Errors = append(report.Errors, err)
	}
}

func (r *Reconciler) deregister(ctx context.Context, log zerolog.Logger, registered []string, report *Report) {
	if r.cfg.DeregisterMode == DeregisterBatch {
		r.deregisterTargets(ctx, log, registered, report)
		return
	}
	batch := make([]string, 0, len(registered))
	for _, addr := range registered {
		batch = append(batch, addr)
		log.Info().Msgf("deregistering ip: %s", addr)
		r.deregisterTargets(ctx, log, batch, report)
	}
}

func (r *Reconciler) deregisterTargets(ctx context.Context, log zerolog.Logger, addrs []string, report *Report) {
	if len(addrs) == 0 {
		return
	}
	targets := models.TargetsFor(addrs, r.cfg.Port)
	report.DeregisterCalls = append(report.DeregisterCalls, targets)

	log.Info().Msgf("deregistering targets: %v", targets)
	err := r.registry.DeregisterTargets(ctx, r.cfg.TargetGroup, targets)
	if err != nil {
		err = &RegistryError{Op: OpDeregister, TargetGroup: r.cfg.TargetGroup, Err: err}
		log.Error().Err(err).Msgf("failed to deregister targets %v", targets)
		report.Errors = append(report.Errors, err)
	}
}
