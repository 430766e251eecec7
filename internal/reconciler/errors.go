package reconciler

import (
	"fmt"

	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/models"
)

type RegistryOp string

const (
	OpList       RegistryOp = "list"
	OpRegister   RegistryOp = "register"
	OpDeregister RegistryOp = "deregister"
)

// RegistryError is a failed target group call. The pass continues with
// whatever it already has.
type RegistryError struct {
	Op          RegistryOp
	TargetGroup models.TargetGroupID
	Err         error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("target registry %s on %s: %v", e.Op, e.TargetGroup, e.Err)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// LocatorError is a failed zone lookup. It is treated as an absent zone, so
// the desired set becomes empty.
type LocatorError struct {
	Database models.DatabaseID
	Err      error
}

func (e *LocatorError) Error() string {
	return fmt.Sprintf("database locator for %s: %v", e.Database, e.Err)
}

func (e *LocatorError) Unwrap() error {
	return e.Err
}

// TopologyError is a failed interface lookup, handled according to
// TopologyErrorPolicy.
type TopologyError struct {
	SecurityGroup models.SecurityGroupID
	Zone          string
	Err           error
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("network topology for %s in %s: %v", e.SecurityGroup, e.Zone, e.Err)
}

func (e *TopologyError) Unwrap() error {
	return e.Err
}
