package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lldpwatch/lldpwatchd/internal/lldp"
)

// AgentInfo is the identity a remote agent reports from GET /agent.
type AgentInfo struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// wireNeighbor is the flat neighbor shape the daemon API serves.
type wireNeighbor struct {
	Port          string             `json:"port"`
	ChassisID     string             `json:"chassis_id"`
	ChassisIDType string             `json:"chassis_id_type"`
	PortID        string             `json:"port_id"`
	PortIDType    string             `json:"port_id_type"`
	SysName       string             `json:"sys_name"`
	SysDescr      string             `json:"sys_descr"`
	PortDescr     string             `json:"port_descr"`
	TTL           int                `json:"ttl"`
	Capabilities  lldp.CapabilityMap `json:"capabilities"`
	ManagementIPs []string           `json:"management_ips"`
}

func (w wireNeighbor) record() lldp.Record {
	return lldp.Record{
		Local: lldp.LocalPort{Name: w.Port},
		Neighbor: lldp.Neighbor{
			ChassisID:     w.ChassisID,
			ChassisIDType: w.ChassisIDType,
			PortID:        w.PortID,
			PortIDType:    w.PortIDType,
			SysName:       w.SysName,
			SysDescr:      w.SysDescr,
			PortDescr:     w.PortDescr,
			TTL:           w.TTL,
			Capabilities:  w.Capabilities,
			ManagementIPs: w.ManagementIPs,
		},
	}
}

// HTTPAgent reads the local neighbor table of another lldpwatchd over
// its HTTP API, typically one found via mDNS discovery.
type HTTPAgent struct {
	name     string
	endpoint string // host:port
	client   *http.Client
	version  string
}

// NewHTTPAgent builds a provider for the daemon at endpoint. version
// may be empty, in which case AgentVersion probes the handshake.
func NewHTTPAgent(name, endpoint, version string) *HTTPAgent {
	return &HTTPAgent{
		name:     name,
		endpoint: endpoint,
		client:   &http.Client{},
		version:  version,
	}
}

func (a *HTTPAgent) Name() string { return a.name }

func (a *HTTPAgent) FetchNeighbors(ctx context.Context) ([]lldp.Record, error) {
	var wire []wireNeighbor
	if err := a.getJSON(ctx, "/neighbors/"+LocalAgentName, &wire); err != nil {
		return nil, err
	}
	records := make([]lldp.Record, 0, len(wire))
	for _, w := range wire {
		records = append(records, w.record())
	}
	return records, nil
}

func (a *HTTPAgent) AgentVersion(ctx context.Context) (string, error) {
	if a.version != "" {
		return a.version, nil
	}
	var info AgentInfo
	if err := a.getJSON(ctx, "/agent", &info); err != nil {
		return "", err
	}
	a.version = NormalizeVersion(info.Version)
	return a.version, nil
}

func (a *HTTPAgent) getJSON(ctx context.Context, path string, out any) error {
	// Zone separators in link-local endpoints must be escaped in URLs:
	// [fe80::1%eth0]:7962 becomes [fe80::1%25eth0]:7962.
	url := "http://" + strings.ReplaceAll(a.endpoint, "%", "%25") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: fetching %s from %s", ErrAgentTimeout, path, a.endpoint)
		}
		return fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s from %s returned %s", ErrAgentUnavailable, path, a.endpoint, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s payload: %v", ErrAgentUnavailable, path, err)
	}
	return nil
}

// ProbeAgent fetches the handshake identity of the daemon at endpoint.
// Used by discovery to turn an mDNS hit into a usable agent.
func ProbeAgent(ctx context.Context, endpoint string) (AgentInfo, error) {
	a := &HTTPAgent{endpoint: endpoint, client: &http.Client{}}
	var info AgentInfo
	if err := a.getJSON(ctx, "/agent", &info); err != nil {
		return AgentInfo{}, err
	}
	if info.ID == "" {
		return AgentInfo{}, fmt.Errorf("%w: agent at %s reported no id", ErrAgentUnavailable, endpoint)
	}
	info.Version = NormalizeVersion(info.Version)
	return info, nil
}
