// Package lldp holds the neighbor data model shared by providers, the
// watcher and the API: who we heard, on which local port, and what they
// advertised.
package lldp

import (
	"slices"
	"strings"
)

// Chassis and port ID subtype names as lldpd spells them.
const (
	SubtypeMAC     = "mac"
	SubtypeIfname  = "ifname"
	SubtypeIfalias = "ifalias"
	SubtypeLocal   = "local"
	SubtypeIP      = "ip"
)

// LocalPort is the interface on this system a neighbor was heard on.
type LocalPort struct {
	Name string `json:"name"`
}

// Neighbor is one remote system as advertised on a single local port.
type Neighbor struct {
	ChassisID     string        `json:"chassis_id"`
	ChassisIDType string        `json:"chassis_id_type,omitempty"`
	PortID        string        `json:"port_id"`
	PortIDType    string        `json:"port_id_type,omitempty"`
	SysName       string        `json:"sys_name,omitempty"`
	SysDescr      string        `json:"sys_descr,omitempty"`
	PortDescr     string        `json:"port_descr,omitempty"`
	TTL           int           `json:"ttl,omitempty"`
	Capabilities  CapabilityMap `json:"capabilities,omitempty"`
	ManagementIPs []string      `json:"management_ips,omitempty"`
}

// AttributesEqual reports whether two neighbors advertise the same
// attributes. Capabilities and management addresses are compared as
// sets, so reordering between polls does not count as a change.
func (n Neighbor) AttributesEqual(o Neighbor) bool {
	if n.ChassisID != o.ChassisID ||
		n.ChassisIDType != o.ChassisIDType ||
		n.PortID != o.PortID ||
		n.PortIDType != o.PortIDType ||
		n.SysName != o.SysName ||
		n.SysDescr != o.SysDescr ||
		n.PortDescr != o.PortDescr ||
		n.TTL != o.TTL {
		return false
	}
	if !n.Capabilities.Equal(o.Capabilities) {
		return false
	}
	return equalIPSets(n.ManagementIPs, o.ManagementIPs)
}

func equalIPSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

// Key identifies a neighbor record within a snapshot. Two distinct
// neighbors on the same local port differ in chassis or port ID.
type Key struct {
	Port      string `json:"port"`
	ChassisID string `json:"chassis_id"`
	PortID    string `json:"port_id"`
}

func (k Key) String() string {
	return k.Port + "/" + k.ChassisID + "/" + k.PortID
}

// Compare orders keys by local port, then chassis ID, then port ID.
func (k Key) Compare(o Key) int {
	if c := strings.Compare(k.Port, o.Port); c != 0 {
		return c
	}
	if c := strings.Compare(k.ChassisID, o.ChassisID); c != 0 {
		return c
	}
	return strings.Compare(k.PortID, o.PortID)
}

// Record pairs a local port with one neighbor heard on it.
type Record struct {
	Local    LocalPort `json:"local"`
	Neighbor Neighbor  `json:"neighbor"`
}

func (r Record) Key() Key {
	return Key{
		Port:      r.Local.Name,
		ChassisID: r.Neighbor.ChassisID,
		PortID:    r.Neighbor.PortID,
	}
}

// Snapshot is one self-consistent view of the neighbor table at a
// point in time, keyed by (port, chassis ID, port ID). Snapshots are
// treated as immutable once built; holders must not mutate them.
type Snapshot map[Key]Record

// NewSnapshot builds a snapshot from raw provider records. When two
// records collide on the same key the later record wins, and the
// collided keys are returned so the caller can flag the source data.
func NewSnapshot(records []Record) (Snapshot, []Key) {
	snap := make(Snapshot, len(records))
	var collided []Key
	for _, rec := range records {
		key := rec.Key()
		if _, ok := snap[key]; ok {
			collided = append(collided, key)
		}
		snap[key] = rec
	}
	return snap, collided
}

// Keys returns the snapshot's keys in Compare order.
func (s Snapshot) Keys() []Key {
	keys := make([]Key, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, Key.Compare)
	return keys
}

// Records returns the snapshot's records in key order.
func (s Snapshot) Records() []Record {
	records := make([]Record, 0, len(s))
	for _, k := range s.Keys() {
		records = append(records, s[k])
	}
	return records
}
