package lldp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullRecord() Record {
	return Record{
		Local: LocalPort{Name: "eth0"},
		Neighbor: Neighbor{
			ChassisID:     "aa:bb:cc:dd:ee:ff",
			ChassisIDType: SubtypeMAC,
			PortID:        "ge-0/0/1",
			PortIDType:    SubtypeIfname,
			SysName:       "core-sw",
			SysDescr:      "big iron",
			PortDescr:     "uplink",
			TTL:           120,
			Capabilities:  CapabilityMap{CapBridge: true},
			ManagementIPs: []string{"192.0.2.10"},
		},
	}
}

func decodeObjects(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var objs []map[string]any
	require.NoError(t, json.Unmarshal(data, &objs))
	return objs
}

func TestEncodeFiltered_AllFieldsByDefault(t *testing.T) {
	data, err := EncodeFiltered([]Record{fullRecord()}, nil)
	require.NoError(t, err)

	objs := decodeObjects(t, data)
	require.Len(t, objs, 1)
	obj := objs[0]
	assert.Equal(t, "eth0", obj["port"])
	assert.Equal(t, "core-sw", obj["sys_name"])
	assert.Equal(t, "uplink", obj["port_descr"])
	assert.Equal(t, float64(120), obj["ttl"])
	assert.Contains(t, obj, "capabilities")
	assert.Contains(t, obj, "management_ips")
}

func TestEncodeFiltered_SubsetKeepsIdentity(t *testing.T) {
	data, err := EncodeFiltered([]Record{fullRecord()}, []string{FieldSysName})
	require.NoError(t, err)

	objs := decodeObjects(t, data)
	require.Len(t, objs, 1)
	obj := objs[0]

	// Identity triple always present, requested field present, the
	// rest filtered out.
	assert.Equal(t, "eth0", obj["port"])
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", obj["chassis_id"])
	assert.Equal(t, "ge-0/0/1", obj["port_id"])
	assert.Equal(t, "core-sw", obj["sys_name"])
	assert.NotContains(t, obj, "sys_descr")
	assert.NotContains(t, obj, "ttl")
	assert.NotContains(t, obj, "capabilities")
}

func TestEncodeFiltered_OmitsEmptyValues(t *testing.T) {
	rec := Record{
		Local:    LocalPort{Name: "eth1"},
		Neighbor: Neighbor{ChassisID: "aa", PortID: "1"},
	}

	data, err := EncodeFiltered([]Record{rec}, nil)
	require.NoError(t, err)

	objs := decodeObjects(t, data)
	require.Len(t, objs, 1)
	assert.NotContains(t, objs[0], "sys_name")
	assert.NotContains(t, objs[0], "ttl")
	assert.NotContains(t, objs[0], "management_ips")
}

func TestEncodeFiltered_RejectsUnknownField(t *testing.T) {
	_, err := EncodeFiltered([]Record{fullRecord()}, []string{"bogus"})
	assert.ErrorContains(t, err, "unknown neighbor field")
}

func TestEncodeFiltered_EmptyRecordsIsEmptyArray(t *testing.T) {
	data, err := EncodeFiltered(nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}
