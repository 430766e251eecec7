package reconciler

import (
	"fmt"
	"strings"

	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/models"
)

type DeregisterMode string

const (
	// DeregisterCumulative issues one call per registered address with a
	// growing batch: [a1], [a1 a2], ...
	DeregisterCumulative DeregisterMode = "cumulative"
	// DeregisterBatch issues a single call with every registered address.
	DeregisterBatch DeregisterMode = "batch"
)

func ParseDeregisterMode(s string) (DeregisterMode, error) {
	switch mode := DeregisterMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return DeregisterCumulative, nil
	case DeregisterCumulative, DeregisterBatch:
		return mode, nil
	}
	return "", fmt.Errorf("unknown deregister mode %q", s)
}

type TopologyErrorPolicy string

const (
	// TopologyErrorFail aborts the pass before any register/deregister call.
	TopologyErrorFail TopologyErrorPolicy = "fail"
	// TopologyErrorEmpty treats a failed lookup as an empty desired set.
	TopologyErrorEmpty TopologyErrorPolicy = "empty"
)

func ParseTopologyErrorPolicy(s string) (TopologyErrorPolicy, error) {
	switch policy := TopologyErrorPolicy(strings.ToLower(strings.TrimSpace(s))); policy {
	case "":
		return TopologyErrorFail, nil
	case TopologyErrorFail, TopologyErrorEmpty:
		return policy, nil
	}
	return "", fmt.Errorf("unknown topology error policy %q", s)
}

type Config struct {
	TargetGroup   models.TargetGroupID
	Database      models.DatabaseID
	SecurityGroup models.SecurityGroupID
	Port          int32

	DeregisterMode      DeregisterMode
	TopologyErrorPolicy TopologyErrorPolicy
}
