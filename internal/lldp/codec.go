package lldp

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Neighbor field names understood by EncodeFiltered.
const (
	FieldChassisIDType = "chassis_id_type"
	FieldPortIDType    = "port_id_type"
	FieldSysName       = "sys_name"
	FieldSysDescr      = "sys_descr"
	FieldPortDescr     = "port_descr"
	FieldTTL           = "ttl"
	FieldCapabilities  = "capabilities"
	FieldManagementIPs = "management_ips"
)

var encodableFields = []string{
	FieldChassisIDType,
	FieldPortIDType,
	FieldSysName,
	FieldSysDescr,
	FieldPortDescr,
	FieldTTL,
	FieldCapabilities,
	FieldManagementIPs,
}

// EncodeFiltered renders records as a JSON array carrying only the
// requested neighbor fields. The identity triple (port, chassis_id,
// port_id) is always present. An empty field list selects every field.
// Unknown field names are rejected rather than silently dropped.
func EncodeFiltered(records []Record, fields []string) ([]byte, error) {
	selected := fields
	if len(selected) == 0 {
		selected = encodableFields
	}
	for _, f := range selected {
		if !slices.Contains(encodableFields, f) {
			return nil, fmt.Errorf("unknown neighbor field %q", f)
		}
	}

	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		n := rec.Neighbor
		obj := map[string]any{
			"port":       rec.Local.Name,
			"chassis_id": n.ChassisID,
			"port_id":    n.PortID,
		}
		for _, f := range selected {
			switch f {
			case FieldChassisIDType:
				if n.ChassisIDType != "" {
					obj[f] = n.ChassisIDType
				}
			case FieldPortIDType:
				if n.PortIDType != "" {
					obj[f] = n.PortIDType
				}
			case FieldSysName:
				if n.SysName != "" {
					obj[f] = n.SysName
				}
			case FieldSysDescr:
				if n.SysDescr != "" {
					obj[f] = n.SysDescr
				}
			case FieldPortDescr:
				if n.PortDescr != "" {
					obj[f] = n.PortDescr
				}
			case FieldTTL:
				if n.TTL != 0 {
					obj[f] = n.TTL
				}
			case FieldCapabilities:
				if len(n.Capabilities) != 0 {
					obj[f] = n.Capabilities
				}
			case FieldManagementIPs:
				if len(n.ManagementIPs) != 0 {
					obj[f] = n.ManagementIPs
				}
			}
		}
		out = append(out, obj)
	}
	return json.Marshal(out)
}
