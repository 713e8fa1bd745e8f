package provider

import (
	"slices"
	"strconv"
	"strings"

	"github.com/lldpwatch/lldpwatchd/internal/lldp"
)

// Section names that can follow the interface in an lldpctl keyvalue
// path. Needed to split `lldp.<iface>.<path>` when the interface name
// itself contains dots (VLAN interfaces like eth0.100).
var keyvalueSections = map[string]bool{
	"via":          true,
	"rid":          true,
	"age":          true,
	"chassis":      true,
	"port":         true,
	"vlan":         true,
	"ppvid":        true,
	"pi":           true,
	"lldp-med":     true,
	"unknown-tlvs": true,
}

// ParseKeyValue parses `lldpctl -f keyvalue` output into neighbor
// records. Each neighbor block opens with a `via` line; several blocks
// may share one interface when more than one neighbor is heard on it.
// Unknown keys are ignored so newer lldpd output stays parseable.
func ParseKeyValue(out string) []lldp.Record {
	var records []lldp.Record
	var cur *lldp.Record

	flush := func() {
		if cur == nil {
			return
		}
		if cur.Neighbor.ChassisID != "" || cur.Neighbor.PortID != "" {
			records = append(records, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "lldp.") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		iface, path, ok := splitKeyvaluePath(strings.TrimPrefix(key, "lldp."))
		if !ok {
			continue
		}

		// A via line opens a new neighbor block, as does a change of
		// interface without one.
		if path == "via" || cur == nil || cur.Local.Name != iface {
			flush()
			cur = &lldp.Record{Local: lldp.LocalPort{Name: iface}}
			if path == "via" {
				continue
			}
		}
		applyKeyvalueField(&cur.Neighbor, path, value)
	}
	flush()
	return records
}

// splitKeyvaluePath splits "<iface>.<path>" on the first segment that
// names a known section.
func splitKeyvaluePath(s string) (iface, path string, ok bool) {
	segs := strings.Split(s, ".")
	for i := 1; i < len(segs); i++ {
		if keyvalueSections[segs[i]] {
			return strings.Join(segs[:i], "."), strings.Join(segs[i:], "."), true
		}
	}
	return "", "", false
}

func applyKeyvalueField(n *lldp.Neighbor, path, value string) {
	switch path {
	case "chassis.id.type":
		n.ChassisIDType = value
	case "chassis.id":
		n.ChassisID = value
	case "chassis.mac":
		// Older lldpd spells the chassis ID by its subtype.
		n.ChassisID = value
		n.ChassisIDType = lldp.SubtypeMAC
	case "chassis.name":
		n.SysName = value
	case "chassis.descr":
		n.SysDescr = value
	case "chassis.mgmt-ip":
		if !slices.Contains(n.ManagementIPs, value) {
			n.ManagementIPs = append(n.ManagementIPs, value)
		}
	case "port.id.type":
		n.PortIDType = value
	case "port.id":
		n.PortID = value
	case "port.ifname":
		n.PortID = value
		n.PortIDType = lldp.SubtypeIfname
	case "port.descr":
		n.PortDescr = value
	case "port.ttl", "ttl":
		if ttl, err := strconv.Atoi(value); err == nil {
			n.TTL = ttl
		}
	default:
		if capName, ok := capabilityPath(path); ok {
			if n.Capabilities == nil {
				n.Capabilities = lldp.CapabilityMap{}
			}
			n.Capabilities[capName] = value == "on"
		}
	}
}

// capabilityPath matches `chassis.<Name>.enabled`.
func capabilityPath(path string) (string, bool) {
	rest, found := strings.CutPrefix(path, "chassis.")
	if !found {
		return "", false
	}
	name, found := strings.CutSuffix(rest, ".enabled")
	if !found || name == "" || strings.Contains(name, ".") {
		return "", false
	}
	return name, true
}
