package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lldpwatch/lldpwatchd/internal/lldp"
)

func record(port, chassis, portID, sysName string) lldp.Record {
	return lldp.Record{
		Local: lldp.LocalPort{Name: port},
		Neighbor: lldp.Neighbor{
			ChassisID: chassis,
			PortID:    portID,
			SysName:   sysName,
		},
	}
}

func snapshotOf(t *testing.T, records ...lldp.Record) lldp.Snapshot {
	t.Helper()
	snap, collided := lldp.NewSnapshot(records)
	require.Empty(t, collided)
	return snap
}

func TestDiff_EmptyToPopulatedIsAllAdds(t *testing.T) {
	cur := snapshotOf(t,
		record("eth1", "bb", "2", "b"),
		record("eth0", "aa", "1", "a"),
	)

	events := Diff("local", lldp.Snapshot{}, cur)
	require.Len(t, events, 2)

	// Adds arrive in key order.
	assert.Equal(t, NeighborAdded, events[0].Type)
	assert.Equal(t, "eth0", events[0].Record.Local.Name)
	assert.Equal(t, NeighborAdded, events[1].Type)
	assert.Equal(t, "eth1", events[1].Record.Local.Name)
	assert.Equal(t, "local", events[0].Agent)
	assert.Nil(t, events[0].Previous)
}

func TestDiff_NoChangesNoEvents(t *testing.T) {
	snap := snapshotOf(t, record("eth0", "aa", "1", "a"))

	assert.Empty(t, Diff("local", snap, snap))
	assert.Empty(t, Diff("local", lldp.Snapshot{}, lldp.Snapshot{}))
}

func TestDiff_AttributeChangeIsUpdateWithPrevious(t *testing.T) {
	prev := snapshotOf(t, record("eth0", "aa", "1", "old-name"))
	cur := snapshotOf(t, record("eth0", "aa", "1", "new-name"))

	events := Diff("local", prev, cur)
	require.Len(t, events, 1)
	assert.Equal(t, NeighborUpdated, events[0].Type)
	assert.Equal(t, "new-name", events[0].Record.Neighbor.SysName)
	require.NotNil(t, events[0].Previous)
	assert.Equal(t, "old-name", events[0].Previous.SysName)
}

func TestDiff_IdentityChangeIsRemoveAndAdd(t *testing.T) {
	// A new switch on the same port is a different key, never an
	// update.
	prev := snapshotOf(t, record("eth0", "aa", "1", "old-switch"))
	cur := snapshotOf(t, record("eth0", "bb", "1", "new-switch"))

	events := Diff("local", prev, cur)
	require.Len(t, events, 2)
	assert.Equal(t, NeighborRemoved, events[0].Type)
	assert.Equal(t, "aa", events[0].Record.Neighbor.ChassisID)
	assert.Equal(t, NeighborAdded, events[1].Type)
	assert.Equal(t, "bb", events[1].Record.Neighbor.ChassisID)
}

func TestDiff_GroupOrderingRemovedUpdatedAdded(t *testing.T) {
	prev := snapshotOf(t,
		record("eth0", "aa", "1", "stays-changed"),
		record("eth1", "bb", "1", "goes-1"),
		record("eth2", "cc", "1", "stays-same"),
		record("eth0", "ab", "1", "goes-2"),
	)
	changed := record("eth0", "aa", "1", "stays-CHANGED")
	cur := snapshotOf(t,
		changed,
		record("eth2", "cc", "1", "stays-same"),
		record("eth3", "dd", "1", "arrives-2"),
		record("eth1", "ba", "1", "arrives-1"),
	)

	events := Diff("local", prev, cur)
	require.Len(t, events, 5)

	// Removals first in key order, then updates, then adds.
	assert.Equal(t, NeighborRemoved, events[0].Type)
	assert.Equal(t, "goes-2", events[0].Record.Neighbor.SysName)
	assert.Equal(t, NeighborRemoved, events[1].Type)
	assert.Equal(t, "goes-1", events[1].Record.Neighbor.SysName)
	assert.Equal(t, NeighborUpdated, events[2].Type)
	assert.Equal(t, "stays-CHANGED", events[2].Record.Neighbor.SysName)
	assert.Equal(t, NeighborAdded, events[3].Type)
	assert.Equal(t, "arrives-1", events[3].Record.Neighbor.SysName)
	assert.Equal(t, NeighborAdded, events[4].Type)
	assert.Equal(t, "arrives-2", events[4].Record.Neighbor.SysName)
}

func TestDiff_ReorderedSetsAreNotUpdates(t *testing.T) {
	a := record("eth0", "aa", "1", "a")
	a.Neighbor.ManagementIPs = []string{"192.0.2.1", "192.0.2.2"}
	a.Neighbor.Capabilities = lldp.CapabilityMap{lldp.CapBridge: true, lldp.CapRouter: true}

	b := record("eth0", "aa", "1", "a")
	b.Neighbor.ManagementIPs = []string{"192.0.2.2", "192.0.2.1"}
	b.Neighbor.Capabilities = lldp.CapabilityMap{lldp.CapRouter: true, lldp.CapBridge: true}

	assert.Empty(t, Diff("local", snapshotOf(t, a), snapshotOf(t, b)))
}

func TestDiff_PopulatedToEmptyIsAllRemoves(t *testing.T) {
	prev := snapshotOf(t,
		record("eth0", "aa", "1", "a"),
		record("eth1", "bb", "2", "b"),
	)

	events := Diff("local", prev, lldp.Snapshot{})
	require.Len(t, events, 2)
	assert.Equal(t, NeighborRemoved, events[0].Type)
	assert.Equal(t, NeighborRemoved, events[1].Type)
}
