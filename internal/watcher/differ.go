package watcher

import "github.com/lldpwatch/lldpwatchd/internal/lldp"

// Diff computes the events that turn prev into cur. Neighbors present
// in both with equal attributes produce nothing. Ordering is fixed:
// removals first, then updates, then additions, each group in key
// order, so consumers can free state before reusing identities.
func Diff(agent string, prev, cur lldp.Snapshot) []Event {
	var events []Event

	for _, k := range prev.Keys() {
		if _, ok := cur[k]; !ok {
			events = append(events, Event{
				Type:   NeighborRemoved,
				Agent:  agent,
				Record: prev[k],
			})
		}
	}

	curKeys := cur.Keys()
	for _, k := range curKeys {
		old, ok := prev[k]
		if !ok {
			continue
		}
		if !old.Neighbor.AttributesEqual(cur[k].Neighbor) {
			previous := old.Neighbor
			events = append(events, Event{
				Type:     NeighborUpdated,
				Agent:    agent,
				Record:   cur[k],
				Previous: &previous,
			})
		}
	}

	for _, k := range curKeys {
		if _, ok := prev[k]; !ok {
			events = append(events, Event{
				Type:   NeighborAdded,
				Agent:  agent,
				Record: cur[k],
			})
		}
	}

	return events
}
