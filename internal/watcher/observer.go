package watcher

import "github.com/lldpwatch/lldpwatchd/internal/lldp"

// Observer receives neighbor change callbacks from a watcher. Calls
// arrive on the watcher goroutine, one at a time, in event order. A
// returned error is logged; it does not stop the watcher or suppress
// delivery to other observers.
type Observer interface {
	OnNeighborAdded(local lldp.LocalPort, neighbor lldp.Neighbor) error
	OnNeighborUpdated(local lldp.LocalPort, previous, current lldp.Neighbor) error
	OnNeighborRemoved(local lldp.LocalPort, neighbor lldp.Neighbor) error
}

// ObserverFuncs adapts plain functions to Observer. Nil functions are
// no-ops, so callers can handle just the changes they care about.
type ObserverFuncs struct {
	Added   func(local lldp.LocalPort, neighbor lldp.Neighbor) error
	Updated func(local lldp.LocalPort, previous, current lldp.Neighbor) error
	Removed func(local lldp.LocalPort, neighbor lldp.Neighbor) error
}

func (o ObserverFuncs) OnNeighborAdded(local lldp.LocalPort, neighbor lldp.Neighbor) error {
	if o.Added == nil {
		return nil
	}
	return o.Added(local, neighbor)
}

func (o ObserverFuncs) OnNeighborUpdated(local lldp.LocalPort, previous, current lldp.Neighbor) error {
	if o.Updated == nil {
		return nil
	}
	return o.Updated(local, previous, current)
}

func (o ObserverFuncs) OnNeighborRemoved(local lldp.LocalPort, neighbor lldp.Neighbor) error {
	if o.Removed == nil {
		return nil
	}
	return o.Removed(local, neighbor)
}
