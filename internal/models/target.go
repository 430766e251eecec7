package models

import (
	"net"
	"strconv"
)

type TargetGroupID string

type DatabaseID string

type SecurityGroupID string

// Target is one endpoint of the target group. Addr is the private ip of a
// database network interface, Port is the configured database port.
type Target struct {
	Addr string
	Port int32
}

func (t Target) String() string {
	return net.JoinHostPort(t.Addr, strconv.Itoa(int(t.Port)))
}

// TargetsFor builds the targets submitted in one register or deregister call.
// Every address gets the same port and appears at most once.
func TargetsFor(addrs []string, port int32) []Target {
	var (
		seen    = make(map[string]struct{}, len(addrs))
		targets = make([]Target, 0, len(addrs))
	)
	for _, addr := range addrs {
		if _, exists := seen[addr]; exists {
			continue
		}
		seen[addr] = struct{}{}
		targets = append(targets, Target{Addr: addr, Port: port})
	}
	return targets
}
