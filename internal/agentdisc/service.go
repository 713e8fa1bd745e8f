// Package agentdisc maintains the table of known snapshot agents: the
// local lldpctl agent, static agents from configuration, and remote
// daemons found via mDNS. The fleet consumes its events to start and
// stop watchers.
package agentdisc

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lldpwatch/lldpwatchd/internal/provider"
	"github.com/lldpwatch/lldpwatchd/internal/runtime"
)

const (
	DefaultBrowseInterval = 30 * time.Second
	DefaultBrowseWindow   = 3 * time.Second
	DefaultProbeTimeout   = 3 * time.Second
)

// Config tunes the discovery service.
type Config struct {
	// Browse enables mDNS discovery of remote agents.
	Browse bool

	// BrowseInterval is the time between browse windows.
	BrowseInterval time.Duration

	// ProbeTimeout bounds the handshake with one responder.
	ProbeTimeout time.Duration

	// LocalAgent includes the local lldpctl agent in the table.
	LocalAgent bool

	// Static agents are injected at startup and never expire.
	Static []Agent
}

func (c Config) withDefaults() Config {
	if c.BrowseInterval <= 0 {
		c.BrowseInterval = DefaultBrowseInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	return c
}

type Service struct {
	cfg Config

	mu     sync.RWMutex
	agents map[string]Agent

	subsMu sync.Mutex
	subs   map[int]*runtime.SubQueue[AgentEvent]
	nextID int
	closed bool

	// browse is swappable for tests.
	browse func(ctx context.Context, window, probeTimeout time.Duration) ([]Agent, error)
}

func NewService(cfg Config) *Service {
	return &Service{
		cfg:    cfg.withDefaults(),
		agents: make(map[string]Agent),
		subs:   make(map[int]*runtime.SubQueue[AgentEvent]),
		browse: browseAgents,
	}
}

// Subscribe follows the snapshot-as-adds-then-live pattern.
func (s *Service) Subscribe() (<-chan AgentEvent, func()) {
	// Snapshot
	s.mu.RLock()
	snapshot := make([]Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		snapshot = append(snapshot, agent)
	}
	s.mu.RUnlock()

	outBuf := len(snapshot) + 8
	sub := runtime.NewSubQueue[AgentEvent](outBuf)

	// Register paused
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.subsMu.Unlock()

	// Emit snapshot as AGENT_ADDED
	for _, agent := range snapshot {
		sub.OutOfBandSnapshotSend(AgentEvent{
			Type:  AgentAdded,
			Agent: agent,
		})
	}

	// Go live
	sub.SetPaused(false)

	unsub := func() {
		s.subsMu.Lock()
		if q, ok := s.subs[id]; ok {
			delete(s.subs, id)
			q.Close()
		}
		s.subsMu.Unlock()
	}
	return sub.Chan(), unsub
}

func (s *Service) Start(ctx context.Context) error {
	log.Info("Starting agent discovery service")
	defer log.Info("Stopping agent discovery service")

	if s.cfg.LocalAgent {
		s.upsertAgent(Agent{
			ID:     provider.LocalAgentName,
			Source: SourceLocal,
		})
	}
	for _, agent := range s.cfg.Static {
		agent.Source = SourceStatic
		s.upsertAgent(agent)
	}

	if !s.cfg.Browse {
		<-ctx.Done()
		return nil
	}

	// First browse runs immediately; later ones on the ticker.
	s.runBrowse(ctx)

	ticker := time.NewTicker(s.cfg.BrowseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runBrowse(ctx)
		}
	}
}

func (s *Service) Close() error {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, q := range s.subs {
		q.Close()
		delete(s.subs, id)
	}
	return nil
}

// runBrowse reconciles the mDNS portion of the agent table against one
// browse window. Local and static agents are untouched.
func (s *Service) runBrowse(ctx context.Context) {
	found, err := s.browse(ctx, DefaultBrowseWindow, s.cfg.ProbeTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Warn("mDNS browse failed")
		return
	}

	present := make(map[string]struct{}, len(found))
	for _, agent := range found {
		present[agent.ID] = struct{}{}
		s.upsertAgent(agent)
	}

	s.mu.RLock()
	var gone []string
	for id, agent := range s.agents {
		if agent.Source != SourceMDNS {
			continue
		}
		if _, ok := present[id]; !ok {
			gone = append(gone, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range gone {
		s.dropAgent(id)
	}
}

// upsertAgent adds an agent and publishes AGENT_ADDED. An agent whose
// endpoint moved is replaced: removed, then re-added.
func (s *Service) upsertAgent(agent Agent) {
	s.mu.Lock()
	existing, exists := s.agents[agent.ID]
	if exists && existing.Endpoint == agent.Endpoint {
		// Same place; keep the freshest version string quietly.
		existing.Version = agent.Version
		s.agents[agent.ID] = existing
		s.mu.Unlock()
		return
	}
	s.agents[agent.ID] = agent
	s.mu.Unlock()

	if exists {
		log.WithFields(log.Fields{
			"agent":    agent.ID,
			"endpoint": agent.Endpoint,
		}).Info("Agent endpoint changed")
		s.broadcast(AgentEvent{Type: AgentRemoved, Agent: existing})
	} else {
		log.WithFields(log.Fields{
			"agent":    agent.ID,
			"endpoint": agent.Endpoint,
			"source":   agent.Source,
		}).Info("Discovered agent")
	}
	s.broadcast(AgentEvent{Type: AgentAdded, Agent: agent})
}

// dropAgent removes an agent and publishes AGENT_REMOVED.
func (s *Service) dropAgent(id string) {
	s.mu.Lock()
	agent, found := s.agents[id]
	delete(s.agents, id)
	s.mu.Unlock()

	if found {
		log.WithFields(log.Fields{
			"agent":    id,
			"endpoint": agent.Endpoint,
		}).Info("Agent disappeared")
		s.broadcast(AgentEvent{Type: AgentRemoved, Agent: agent})
	}
}

func (s *Service) broadcast(ev AgentEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, sub := range s.subs {
		sub.Enqueue(ev)
	}
}
