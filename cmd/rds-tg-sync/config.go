package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/models"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/reconciler"
)

const (
	runModeOnce = "once"
	runModeLoop = "loop"
)

type Config struct {
	LoggerLevel string `envconfig:"LOGGER_LEVEL,default=info"`

	TargetGroupARN  string `envconfig:"NLB_TG_ARN"`
	DatabasePort    uint16 `envconfig:"RDS_PORT"`
	SecurityGroupID string `envconfig:"RDS_SG_ID"`
	DatabaseID      string `envconfig:"RDS_ID"`
	AwsRegion       string `envconfig:"AWS_REGION,optional"`

	DeregisterMode      string `envconfig:"DEREGISTER_MODE,default=cumulative"`
	TopologyErrorPolicy string `envconfig:"TOPOLOGY_ERROR_POLICY,default=fail"`

	RunMode      string        `envconfig:"RUN_MODE,default=once"`
	SyncInterval time.Duration `envconfig:"SYNC_INTERVAL,default=1m"`
	RunTimeout   time.Duration `envconfig:"RUN_TIMEOUT,default=0s"`

	EtcdEndpoints []string      `envconfig:"ETCD_ENDPOINTS,optional"`
	EtcdLockKey   string        `envconfig:"ETCD_LOCK_KEY,optional"`
	EtcdLockTTL   time.Duration `envconfig:"ETCD_LOCK_TTL,default=30s"`

	StatsdAddr  string `envconfig:"STATSD_ADDR,optional"`
	MetricsNode string `envconfig:"METRICS_NODE,default=rds-tg-sync"`

	JournalDSN string `envconfig:"JOURNAL_DSN,optional"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS,optional"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC,default=rds-tg-sync.changes"`
}

func (c Config) reconcilerConfig() (reconciler.Config, error) {
	mode, err := reconciler.ParseDeregisterMode(c.DeregisterMode)
	if err != nil {
		return reconciler.Config{}, err
	}
	policy, err := reconciler.ParseTopologyErrorPolicy(c.TopologyErrorPolicy)
	if err != nil {
		return reconciler.Config{}, err
	}
	if c.DatabasePort == 0 {
		return reconciler.Config{}, fmt.Errorf("RDS_PORT must be a valid port")
	}
	return reconciler.Config{
		TargetGroup:         models.TargetGroupID(c.TargetGroupARN),
		Database:            models.DatabaseID(c.DatabaseID),
		SecurityGroup:       models.SecurityGroupID(c.SecurityGroupID),
		Port:                int32(c.DatabasePort),
		DeregisterMode:      mode,
		TopologyErrorPolicy: policy,
	}, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.RunMode) {
	case runModeOnce:
	case runModeLoop:
		if c.SyncInterval <= 0 {
			return fmt.Errorf("SYNC_INTERVAL must be positive in loop mode")
		}
	default:
		return fmt.Errorf("unknown run mode %q", c.RunMode)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("RUN_TIMEOUT must not be negative")
	}
	if len(c.KafkaBrokers) != 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required with KAFKA_BROKERS")
	}
	_, err := c.reconcilerConfig()
	return err
}

func loggerLevelFromString(level string) zerolog.Level {
	level = strings.ToLower(level)
	switch level {
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
