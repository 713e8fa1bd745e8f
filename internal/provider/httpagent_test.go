package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lldpwatch/lldpwatchd/internal/lldp"
)

func agentServer(t *testing.T, handler http.Handler) (srv *httptest.Server, endpoint string) {
	t.Helper()
	srv = httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, strings.TrimPrefix(srv.URL, "http://")
}

func TestHTTPAgent_FetchNeighbors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/neighbors/local", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"port":"eth0","chassis_id":"aa:bb","chassis_id_type":"mac",
			 "port_id":"ge-0/0/1","port_id_type":"ifname","sys_name":"core",
			 "ttl":120,"capabilities":{"Bridge":true},
			 "management_ips":["192.0.2.1"]}
		]`))
	})
	_, endpoint := agentServer(t, mux)

	a := NewHTTPAgent("rack1", endpoint, "")
	records, err := a.FetchNeighbors(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "rack1", a.Name())
	assert.Equal(t, "eth0", rec.Local.Name)
	assert.Equal(t, "aa:bb", rec.Neighbor.ChassisID)
	assert.Equal(t, "core", rec.Neighbor.SysName)
	assert.Equal(t, 120, rec.Neighbor.TTL)
	assert.True(t, rec.Neighbor.Capabilities.IsBridge())
	assert.Equal(t, []string{"192.0.2.1"}, rec.Neighbor.ManagementIPs)
	assert.Equal(t, lldp.Key{Port: "eth0", ChassisID: "aa:bb", PortID: "ge-0/0/1"}, rec.Key())
}

func TestHTTPAgent_ServerErrorIsUnavailable(t *testing.T) {
	_, endpoint := agentServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))

	a := NewHTTPAgent("rack1", endpoint, "")
	_, err := a.FetchNeighbors(context.Background())
	assert.ErrorIs(t, err, ErrAgentUnavailable)
}

func TestHTTPAgent_ConnectionRefusedIsUnavailable(t *testing.T) {
	srv, endpoint := agentServer(t, http.NewServeMux())
	srv.Close()

	a := NewHTTPAgent("rack1", endpoint, "")
	_, err := a.FetchNeighbors(context.Background())
	assert.ErrorIs(t, err, ErrAgentUnavailable)
}

func TestHTTPAgent_MalformedPayloadIsUnavailable(t *testing.T) {
	_, endpoint := agentServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"`))
	}))

	a := NewHTTPAgent("rack1", endpoint, "")
	_, err := a.FetchNeighbors(context.Background())
	assert.ErrorIs(t, err, ErrAgentUnavailable)
}

func TestHTTPAgent_SlowServerIsTimeout(t *testing.T) {
	_, endpoint := agentServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	a := NewHTTPAgent("rack1", endpoint, "")
	_, err := a.FetchNeighbors(ctx)
	assert.ErrorIs(t, err, ErrAgentTimeout)
}

func TestHTTPAgent_AgentVersionPrefersKnownValue(t *testing.T) {
	a := NewHTTPAgent("rack1", "127.0.0.1:1", "0.4.0")

	v, err := a.AgentVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.4.0", v)
}

func TestHTTPAgent_AgentVersionProbesWhenUnknown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/agent", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"rack1","version":"v0.4.1"}`))
	})
	_, endpoint := agentServer(t, mux)

	a := NewHTTPAgent("rack1", endpoint, "")
	v, err := a.AgentVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.4.1", v)
}

func TestProbeAgent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/agent", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"rack7","version":"0.4.0"}`))
	})
	_, endpoint := agentServer(t, mux)

	info, err := ProbeAgent(context.Background(), endpoint)
	require.NoError(t, err)
	assert.Equal(t, "rack7", info.ID)
	assert.Equal(t, "0.4.0", info.Version)
}

func TestProbeAgent_RejectsAnonymousAgent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/agent", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"0.4.0"}`))
	})
	_, endpoint := agentServer(t, mux)

	_, err := ProbeAgent(context.Background(), endpoint)
	assert.ErrorIs(t, err, ErrAgentUnavailable)
	assert.ErrorContains(t, err, "no id")
}
