// Package provider acquires neighbor snapshots from LLDP agents. Two
// providers exist: LLDPCtl reads the local lldpd over lldpctl, and
// HTTPAgent reads a remote daemon's export API. Both present the same
// contract to the watcher.
package provider

import (
	"context"
	"errors"

	"github.com/lldpwatch/lldpwatchd/internal/lldp"
)

// Provider produces neighbor records from one LLDP agent. A fetch
// either returns the agent's complete current table or an error; there
// is no partial result.
type Provider interface {
	// Name identifies the agent in logs and events.
	Name() string

	// FetchNeighbors returns the agent's current neighbor table. The
	// context bounds the whole acquisition, including any subprocess
	// or network round trip.
	FetchNeighbors(ctx context.Context) ([]lldp.Record, error)

	// AgentVersion reports the agent software version, best effort.
	AgentVersion(ctx context.Context) (string, error)
}

var (
	// ErrAgentUnavailable marks an agent that cannot be reached or
	// answered with something unusable.
	ErrAgentUnavailable = errors.New("lldp agent unavailable")

	// ErrAgentTimeout marks an agent that did not answer within the
	// fetch deadline.
	ErrAgentTimeout = errors.New("lldp agent timed out")
)
