// Package watcher turns successive neighbor snapshots from a provider
// into change events: a background task polls the provider, diffs the
// result against the previous table and dispatches the delta to
// observers and subscribers.
package watcher

import "github.com/lldpwatch/lldpwatchd/internal/lldp"

type EventType string

const (
	NeighborAdded   EventType = "NEIGHBOR_ADDED"
	NeighborUpdated EventType = "NEIGHBOR_UPDATED"
	NeighborRemoved EventType = "NEIGHBOR_REMOVED"
)

// Event is one observed change to an agent's neighbor table. Removed
// events carry the last known record; updates also carry the previous
// neighbor attributes.
type Event struct {
	Type     EventType      `json:"type"`
	Agent    string         `json:"agent"`
	Record   lldp.Record    `json:"record"`
	Previous *lldp.Neighbor `json:"previous,omitempty"`
}
