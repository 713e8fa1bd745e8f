// Package netmon tracks which local network interfaces are
// operationally up and publishes link transitions. The fleet uses the
// transitions to poll agents immediately instead of waiting out the
// interval when topology changes under it.
package netmon

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lldpwatch/lldpwatchd/internal/runtime"
)

const DefaultReconcileInterval = 30 * time.Second

type Service struct {
	watcher           Watcher
	reconcileInterval time.Duration
	prefixes          []string

	mu    sync.RWMutex
	links map[string]struct{}

	subsMu sync.Mutex
	subs   map[int]*runtime.SubQueue[LinkEvent]
	nextID int
	closed bool
}

// NewService builds a link monitor. prefixes restricts the candidate
// interfaces by name prefix; empty means every non-loopback interface.
func NewService(reconcileInterval time.Duration, prefixes []string) *Service {
	if reconcileInterval <= 0 {
		reconcileInterval = DefaultReconcileInterval
	}
	return &Service{
		watcher:           NewWatcher(),
		reconcileInterval: reconcileInterval,
		prefixes:          prefixes,
		links:             make(map[string]struct{}),
		subs:              make(map[int]*runtime.SubQueue[LinkEvent]),
	}
}

// Subscribe registers a subscriber. Interfaces currently up arrive
// first as LINK_UP events, then live transitions.
func (s *Service) Subscribe() (<-chan LinkEvent, func()) {
	// Take a snapshot.
	s.mu.RLock()
	snapshot := make([]string, 0, len(s.links))
	for name := range s.links {
		snapshot = append(snapshot, name)
	}
	s.mu.RUnlock()

	// Create sub with buffer big enough for the snapshot.
	outBuf := len(snapshot) + 8
	sub := runtime.NewSubQueue[LinkEvent](outBuf)

	// Register subscriber in paused mode (live events will enqueue).
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.subsMu.Unlock()

	// Emit snapshot as LINK_UP directly to the subscriber channel.
	for _, name := range snapshot {
		sub.OutOfBandSnapshotSend(LinkEvent{
			Type:      LinkUp,
			Interface: name,
		})
	}

	// Transition to live: flush queued live events, then unpause.
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
	log.Info("Starting link monitoring service")
	defer log.Info("Stopping link monitoring service")

	// Initial reconcile so the table is populated before the first
	// subscriber shows up in practice.
	s.reconcile()

	// Kernel events kick an immediate reconcile; kicks coalesce.
	kickCh := make(chan struct{}, 1)
	if s.watcher != nil {
		go func() {
			err := s.watcher.Start(ctx, func() {
				select {
				case kickCh <- struct{}{}:
				default:
				}
			})
			if err != nil {
				log.WithError(err).Warn("Platform link watcher failed, falling back to reconcile ticker")
			}
		}()
	}

	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.reconcile()
		case <-kickCh:
			s.reconcile()
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

// reconcile diffs the kernel's interface list against the tracked set.
func (s *Service) reconcile() {
	interfaces, err := net.Interfaces()
	if err != nil {
		log.WithError(err).Error("Error getting network interfaces")
		return
	}

	detected := make(map[string]struct{})
	for _, iface := range interfaces {
		if !s.candidate(iface) {
			log.WithField("interface", iface.Name).Trace("Skipping non-candidate interface")
			continue
		}
		detected[iface.Name] = struct{}{}
	}

	for name := range detected {
		s.mu.RLock()
		_, exists := s.links[name]
		s.mu.RUnlock()
		if !exists {
			s.upsertLink(name)
		}
	}

	s.mu.RLock()
	var gone []string
	for name := range s.links {
		if _, exists := detected[name]; !exists {
			gone = append(gone, name)
		}
	}
	s.mu.RUnlock()

	for _, name := range gone {
		s.removeLink(name)
	}
}

// candidate reports whether an interface is watched: up, not loopback,
// and matching the configured name prefixes.
func (s *Service) candidate(iface net.Interface) bool {
	if iface.Flags&net.FlagLoopback != 0 {
		return false
	}
	if iface.Flags&net.FlagUp == 0 {
		return false
	}
	if len(s.prefixes) == 0 {
		return true
	}
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(iface.Name, prefix) {
			return true
		}
	}
	return false
}

// upsertLink adds an interface and publishes a LINK_UP event.
func (s *Service) upsertLink(name string) {
	log.WithField("interface", name).Info("Link up")

	s.mu.Lock()
	s.links[name] = struct{}{}
	s.mu.Unlock()

	s.broadcast(LinkEvent{Type: LinkUp, Interface: name})
}

// removeLink removes an interface and publishes a LINK_DOWN event.
func (s *Service) removeLink(name string) {
	s.mu.Lock()
	_, found := s.links[name]
	delete(s.links, name)
	s.mu.Unlock()

	if found {
		log.WithField("interface", name).Info("Link down")
		s.broadcast(LinkEvent{Type: LinkDown, Interface: name})
	}
}

func (s *Service) broadcast(ev LinkEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, sub := range s.subs {
		sub.Enqueue(ev)
	}
}
