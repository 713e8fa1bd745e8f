// Package api serves the daemon's HTTP surface: neighbor tables, fleet
// status, the discovery handshake other daemons probe, and a WebSocket
// stream of live change events.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lldpwatch/lldpwatchd/internal/fleet"
	"github.com/lldpwatch/lldpwatchd/internal/lldp"
	"github.com/lldpwatch/lldpwatchd/internal/provider"
	"github.com/lldpwatch/lldpwatchd/internal/watcher"
	"github.com/lldpwatch/lldpwatchd/pkg/version"
)

// Fleet is the slice of the fleet manager the API reads.
type Fleet interface {
	Members() []fleet.MemberInfo
	Records(agentID string) ([]lldp.Record, bool)
	AllRecords() map[string][]lldp.Record
	SnapshotEvents() []watcher.Event
}

type Service struct {
	address string
	port    int
	agentID string

	fleet  Fleet
	events *watcher.Broadcaster

	started time.Time
}

func NewService(host string, port int, agentID string) *Service {
	return &Service{
		address: host,
		port:    port,
		agentID: agentID,
	}
}

// AttachFleet wires the fleet manager (call before Start).
func (s *Service) AttachFleet(f Fleet) {
	s.fleet = f
}

// AttachEvents wires the change-event broadcaster (call before Start).
func (s *Service) AttachEvents(b *watcher.Broadcaster) {
	s.events = b
}

// Start serves the API until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.started = time.Now()

	addr := fmt.Sprintf("%s:%d", s.address, s.port)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.handler(),
	}

	log.Infof("Starting API service at %s", addr)
	defer log.Info("Stopping API service")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Service) Close() error {
	return nil
}

func (s *Service) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleHealth)
	mux.HandleFunc("/agent", s.handleAgent)
	mux.HandleFunc("/neighbors", s.handleNeighbors)
	mux.HandleFunc("/neighbors/", s.handleNeighborsByAgent)
	mux.HandleFunc("/agents", s.handleAgents)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws/events", s.handleEvents)
	return mux
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAgent is the handshake remote daemons probe during discovery.
func (s *Service) handleAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, provider.AgentInfo{
		ID:      s.agentID,
		Version: version.Version,
	})
}

func (s *Service) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	fields := fieldsParam(r)
	tables := s.fleet.AllRecords()

	out := make(map[string]json.RawMessage, len(tables))
	for agent, records := range tables {
		encoded, err := lldp.EncodeFiltered(records, fields)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out[agent] = encoded
	}
	writeJSON(w, out)
}

func (s *Service) handleNeighborsByAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	agent := strings.TrimPrefix(r.URL.Path, "/neighbors/")
	if agent == "" {
		http.Error(w, "missing agent", http.StatusBadRequest)
		return
	}

	records, ok := s.fleet.Records(agent)
	if !ok {
		http.Error(w, "no such agent", http.StatusNotFound)
		return
	}

	encoded, err := lldp.EncodeFiltered(records, fieldsParam(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Add("Content-Type", "application/json")
	w.Write(encoded)
}

func (s *Service) handleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.fleet.Members())
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, StatusResponse{
		Version:       version.Version,
		AgentID:       s.agentID,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Agents:        s.fleet.Members(),
	})
}

// fieldsParam parses the ?fields= allowlist. Empty means every field.
func fieldsParam(r *http.Request) []string {
	raw := r.URL.Query().Get("fields")
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}
