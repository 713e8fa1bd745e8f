// Package fleet runs one neighbor watcher per known agent. Agents come
// and go through discovery events; link transitions from netmon are
// forwarded to every member as poll kicks.
package fleet

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver"
	log "github.com/sirupsen/logrus"

	"github.com/lldpwatch/lldpwatchd/internal/agentdisc"
	"github.com/lldpwatch/lldpwatchd/internal/lldp"
	"github.com/lldpwatch/lldpwatchd/internal/netmon"
	"github.com/lldpwatch/lldpwatchd/internal/provider"
	"github.com/lldpwatch/lldpwatchd/internal/watcher"
)

const DefaultJoinTimeout = 5 * time.Second

// Config tunes the fleet and the watchers it builds.
type Config struct {
	// Watcher is the per-member watcher configuration.
	Watcher watcher.Config

	// MinAgentVersion refuses agents older than this version. Empty
	// disables the gate.
	MinAgentVersion string

	// LLDPCtlPath overrides the lldpctl binary for the local agent.
	LLDPCtlPath string

	// JoinTimeout bounds the wait for a stopping watcher.
	JoinTimeout time.Duration
}

// Manager owns the collection of fleet members.
type Manager struct {
	cfg        Config
	minVersion *semver.Version

	agentCh    <-chan agentdisc.AgentEvent
	agentUnsub func()
	linkCh     <-chan netmon.LinkEvent
	linkUnsub  func()

	observers []watcher.Observer
	sink      watcher.EventSink
	notif     *watcher.Notifications

	membersMu sync.RWMutex
	members   map[string]*member
	closed    bool

	// newProvider is swappable for tests.
	newProvider func(agent agentdisc.Agent) provider.Provider
}

// NewManager creates a fleet manager. A malformed MinAgentVersion is
// rejected by config validation before this point; here it just
// disables the gate with a warning.
func NewManager(cfg Config) *Manager {
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}

	m := &Manager{
		cfg:     cfg,
		members: make(map[string]*member),
	}
	m.newProvider = m.buildProvider

	if cfg.MinAgentVersion != "" {
		min, err := semver.NewVersion(cfg.MinAgentVersion)
		if err != nil {
			log.WithField("min_agent_version", cfg.MinAgentVersion).
				WithError(err).
				Warn("Unparseable minimum agent version, gate disabled")
		} else {
			m.minVersion = min
		}
	}
	return m
}

// AttachAgents subscribes to discovery events (call before Start).
func (m *Manager) AttachAgents(ch <-chan agentdisc.AgentEvent, unsub func()) {
	m.agentCh = ch
	m.agentUnsub = unsub
}

// AttachNetmon subscribes to link transitions (call before Start).
func (m *Manager) AttachNetmon(ch <-chan netmon.LinkEvent, unsub func()) {
	m.linkCh = ch
	m.linkUnsub = unsub
}

// AddObserver registers an observer passed to every member watcher.
// Wire before Start.
func (m *Manager) AddObserver(o watcher.Observer) {
	m.observers = append(m.observers, o)
}

// SetEventSink routes every member's change events to sink. Wire
// before Start.
func (m *Manager) SetEventSink(s watcher.EventSink) {
	m.sink = s
}

// SetNotifications routes every member's health transitions to n. Wire
// before Start.
func (m *Manager) SetNotifications(n *watcher.Notifications) {
	m.notif = n
}

// Start runs the event loop until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	log.Info("Starting fleet manager")
	defer log.Info("Stopping fleet manager")

	if m.agentCh == nil {
		log.Error("AttachAgents was not called before Start")
		<-ctx.Done()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-m.agentCh:
			if !ok {
				return nil
			}
			switch ev.Type {
			case agentdisc.AgentAdded:
				m.handleAgentAdded(ctx, ev.Agent)
			case agentdisc.AgentRemoved:
				m.handleAgentRemoved(ev.Agent.ID)
			}
		case ev, ok := <-m.linkCh:
			if !ok {
				m.linkCh = nil
				continue
			}
			m.handleLinkEvent(ev)
		}
	}
}

// Close stops every member watcher and unsubscribes.
func (m *Manager) Close() error {
	if m.agentUnsub != nil {
		m.agentUnsub()
	}
	if m.linkUnsub != nil {
		m.linkUnsub()
	}

	m.membersMu.Lock()
	if m.closed {
		m.membersMu.Unlock()
		return nil
	}
	m.closed = true
	stopping := make([]*member, 0, len(m.members))
	for id, mem := range m.members {
		stopping = append(stopping, mem)
		delete(m.members, id)
	}
	m.membersMu.Unlock()

	var firstErr error
	for _, mem := range stopping {
		mem.w.Stop()
		if err := mem.w.Join(m.cfg.JoinTimeout); err != nil && !errors.Is(err, watcher.ErrNotStarted) {
			log.WithField("agent", mem.agent.ID).WithError(err).Warn("Watcher did not stop in time")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *Manager) handleAgentAdded(ctx context.Context, agent agentdisc.Agent) {
	m.membersMu.RLock()
	_, exists := m.members[agent.ID]
	closed := m.closed
	m.membersMu.RUnlock()
	if exists {
		log.WithField("agent", agent.ID).Debug("Member already exists, skipping")
		return
	}
	if closed {
		return
	}

	p := m.newProvider(agent)

	if !m.versionAllowed(ctx, p, &agent) {
		return
	}

	w := watcher.New(p, m.cfg.Watcher)
	for _, o := range m.observers {
		w.AddObserver(o)
	}
	if m.sink != nil {
		w.SetEventSink(m.sink)
	}
	if m.notif != nil {
		w.SetNotifications(m.notif)
	}

	m.membersMu.Lock()
	if m.closed {
		m.membersMu.Unlock()
		return
	}
	m.members[agent.ID] = &member{agent: agent, w: w}
	m.membersMu.Unlock()

	if err := w.Start(); err != nil {
		log.WithField("agent", agent.ID).WithError(err).Error("Failed to start watcher")
		m.handleAgentRemoved(agent.ID)
		return
	}

	log.WithFields(log.Fields{
		"agent":    agent.ID,
		"source":   agent.Source,
		"endpoint": agent.Endpoint,
	}).Info("Watching agent")
}

func (m *Manager) handleAgentRemoved(id string) {
	m.membersMu.Lock()
	mem, exists := m.members[id]
	if exists {
		delete(m.members, id)
	}
	m.membersMu.Unlock()

	if !exists {
		return
	}

	mem.w.Stop()
	if err := mem.w.Join(m.cfg.JoinTimeout); err != nil && !errors.Is(err, watcher.ErrNotStarted) {
		log.WithField("agent", id).WithError(err).Warn("Watcher did not stop in time")
	}
	log.WithField("agent", id).Info("Stopped watching agent")
}

// handleLinkEvent kicks every member so topology changes show up
// without waiting out the poll interval.
func (m *Manager) handleLinkEvent(ev netmon.LinkEvent) {
	log.WithFields(log.Fields{
		"interface": ev.Interface,
		"type":      ev.Type,
	}).Debug("Link transition, kicking watchers")

	m.membersMu.RLock()
	defer m.membersMu.RUnlock()
	for _, mem := range m.members {
		mem.w.Kick()
	}
}

// versionAllowed applies the minimum-version gate. An agent whose
// version cannot be fetched is allowed through: the watcher handles an
// unreachable agent better than the gate does, and the agent may just
// be restarting. A fetched but unparseable version is refused.
func (m *Manager) versionAllowed(ctx context.Context, p provider.Provider, agent *agentdisc.Agent) bool {
	if m.minVersion == nil {
		return true
	}

	timeout := m.cfg.Watcher.ProviderTimeout
	if timeout <= 0 {
		timeout = watcher.DefaultProviderTimeout
	}
	verCtx, cancel := context.WithTimeout(ctx, timeout)
	raw, err := p.AgentVersion(verCtx)
	cancel()
	if err != nil {
		log.WithField("agent", agent.ID).WithError(err).
			Warn("Could not determine agent version, skipping gate")
		return true
	}
	if agent.Version == "" {
		agent.Version = raw
	}

	v, err := semver.NewVersion(raw)
	if err != nil {
		log.WithFields(log.Fields{
			"agent":   agent.ID,
			"version": raw,
		}).WithError(err).Warn("Refusing agent: unparseable version")
		return false
	}

	if v.LessThan(m.minVersion) {
		log.WithFields(log.Fields{
			"agent":       agent.ID,
			"version":     raw,
			"min_version": m.minVersion.String(),
		}).Warn("Refusing agent: version below minimum")
		return false
	}
	return true
}

func (m *Manager) buildProvider(agent agentdisc.Agent) provider.Provider {
	if agent.Endpoint == "" {
		return provider.NewLLDPCtl(m.cfg.LLDPCtlPath)
	}
	return provider.NewHTTPAgent(agent.ID, agent.Endpoint, agent.Version)
}

// Members returns the fleet membership in agent ID order.
func (m *Manager) Members() []MemberInfo {
	m.membersMu.RLock()
	defer m.membersMu.RUnlock()

	infos := make([]MemberInfo, 0, len(m.members))
	for _, mem := range m.members {
		infos = append(infos, mem.info())
	}
	slices.SortFunc(infos, func(a, b MemberInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	return infos
}

// Records returns one member's current neighbor table.
func (m *Manager) Records(agentID string) ([]lldp.Record, bool) {
	m.membersMu.RLock()
	mem, ok := m.members[agentID]
	m.membersMu.RUnlock()
	if !ok {
		return nil, false
	}
	return mem.w.Current(), true
}

// AllRecords returns every member's current neighbor table keyed by
// agent ID.
func (m *Manager) AllRecords() map[string][]lldp.Record {
	m.membersMu.RLock()
	defer m.membersMu.RUnlock()

	tables := make(map[string][]lldp.Record, len(m.members))
	for id, mem := range m.members {
		tables[id] = mem.w.Current()
	}
	return tables
}

// SnapshotEvents renders every member's current table as an added
// burst, in agent then key order. Used to prime event subscribers.
func (m *Manager) SnapshotEvents() []watcher.Event {
	m.membersMu.RLock()
	ids := make([]string, 0, len(m.members))
	for id := range m.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var events []watcher.Event
	for _, id := range ids {
		for _, rec := range m.members[id].w.Current() {
			events = append(events, watcher.Event{
				Type:   watcher.NeighborAdded,
				Agent:  id,
				Record: rec,
			})
		}
	}
	m.membersMu.RUnlock()
	return events
}
