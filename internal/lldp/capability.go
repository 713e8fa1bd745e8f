package lldp

import (
	"maps"
	"slices"
	"strings"
)

// Capability names as lldpd emits them in keyvalue output.
const (
	CapOther     = "Other"
	CapRepeater  = "Repeater"
	CapBridge    = "Bridge"
	CapWLAN      = "Wlan"
	CapRouter    = "Router"
	CapTelephone = "Tel"
	CapDocsis    = "Docsis"
	CapStation   = "Station"
)

// IEEE 802.1AB system capability bit layout.
var capabilityBits = map[string]uint16{
	CapOther:     0x01,
	CapRepeater:  0x02,
	CapBridge:    0x04,
	CapWLAN:      0x08,
	CapRouter:    0x10,
	CapTelephone: 0x20,
	CapDocsis:    0x40,
	CapStation:   0x80,
}

// CapabilityMap records which capabilities a neighbor advertises and
// which of those are enabled, keyed by capability name.
type CapabilityMap map[string]bool

// Enabled reports whether the named capability is advertised and on.
func (c CapabilityMap) Enabled(name string) bool {
	return c[name]
}

func (c CapabilityMap) IsBridge() bool { return c.Enabled(CapBridge) }
func (c CapabilityMap) IsRouter() bool { return c.Enabled(CapRouter) }
func (c CapabilityMap) IsWLAN() bool   { return c.Enabled(CapWLAN) }

// Bitmask packs the enabled capabilities into the IEEE 802.1AB bit
// layout. Names outside the standard set are ignored.
func (c CapabilityMap) Bitmask() uint16 {
	var mask uint16
	for name, enabled := range c {
		if !enabled {
			continue
		}
		mask |= capabilityBits[name]
	}
	return mask
}

// Names returns the advertised capability names in sorted order,
// enabled or not.
func (c CapabilityMap) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Summary renders the enabled capabilities as a comma-joined list for
// log output.
func (c CapabilityMap) Summary() string {
	var enabled []string
	for _, name := range c.Names() {
		if c[name] {
			enabled = append(enabled, name)
		}
	}
	return strings.Join(enabled, ",")
}

// Equal compares two capability maps. A nil map equals an empty one.
func (c CapabilityMap) Equal(o CapabilityMap) bool {
	return maps.Equal(c, o)
}
