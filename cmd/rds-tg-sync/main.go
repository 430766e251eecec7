package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/vrischmann/envconfig"

	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/cloud"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/cloud/ec2"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/cloud/elbv2"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/cloud/rds"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/events/kafka"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/journal/postgres"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/lease/etcd"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/metrics"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/models"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/reconciler"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/scheduler"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Msg("failed to load .env file")
	}

	appCfg := Config{}
	err = envconfig.Init(&appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read app config")
	}
	log.Logger = log.Level(loggerLevelFromString(appCfg.LoggerLevel))

	err = appCfg.validate()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid app config")
	}

	err = run(ctx, appCfg)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("rds-tg-sync failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg Config) error {
	recCfg, err := appCfg.reconcilerConfig()
	if err != nil {
		return err
	}

	awsCfg, err := cloud.LoadConfig(ctx, appCfg.AwsRegion)
	if err != nil {
		return err
	}
	rec := reconciler.New(
		recCfg,
		elbv2.NewRegistry(awsCfg),
		rds.NewLocator(awsCfg),
		ec2.NewTopology(awsCfg),
		log.Logger,
	)

	opts := []scheduler.Option{scheduler.WithTimeout(appCfg.RunTimeout)}

	if len(appCfg.EtcdEndpoints) != 0 {
		lease, err := etcd.NewLease(appCfg.EtcdEndpoints, appCfg.EtcdLockKey, appCfg.EtcdLockTTL, log.Logger)
		if err != nil {
			return err
		}
		defer lease.Close()
		opts = append(opts, scheduler.WithLocker(lease))
	}

	if appCfg.StatsdAddr != "" {
		statsd := metrics.NewStatsd(appCfg.MetricsNode, appCfg.StatsdAddr)
		defer statsd.Close()
		opts = append(opts, scheduler.WithMetrics(statsd))
	}

	if appCfg.JournalDSN != "" {
		journal, err := postgres.New(ctx, appCfg.JournalDSN)
		if err != nil {
			return err
		}
		defer journal.Close()

		err = journal.EnsureSchema(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, scheduler.WithJournal(journal))
	}

	if len(appCfg.KafkaBrokers) != 0 {
		publisher := kafka.NewPublisher(appCfg.KafkaBrokers, appCfg.KafkaTopic)
		defer func() {
			err := publisher.Close()
			if err != nil {
				log.Error().Err(err).Msg("failed to close kafka writer")
			}
		}()
		opts = append(opts, scheduler.WithPublisher(publisher))
	}

	runner := scheduler.NewRunner(
		rec,
		models.TargetGroupID(appCfg.TargetGroupARN),
		models.DatabaseID(appCfg.DatabaseID),
		log.Logger,
		opts...,
	)

	switch strings.ToLower(appCfg.RunMode) {
	case runModeLoop:
		log.Info().Msgf("syncing %s every %s", appCfg.TargetGroupARN, appCfg.SyncInterval)
		return scheduler.NewScheduler(runner, appCfg.SyncInterval, log.Logger).Run(ctx)
	case runModeOnce:
		return runner.RunOnce(ctx)
	}
	return fmt.Errorf("unknown run mode %q", appCfg.RunMode)
}
