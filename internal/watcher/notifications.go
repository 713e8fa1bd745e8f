package watcher

import (
	"sync"

	"github.com/lldpwatch/lldpwatchd/internal/runtime"
)

type HealthEventType string

const (
	ProviderDegraded  HealthEventType = "PROVIDER_DEGRADED"
	ProviderRecovered HealthEventType = "PROVIDER_RECOVERED"
)

// HealthEvent reports a watcher crossing into or out of the degraded
// state.
type HealthEvent struct {
	Type                HealthEventType `json:"type"`
	Agent               string          `json:"agent"`
	ConsecutiveFailures int             `json:"consecutive_failures,omitempty"`
	Error               string          `json:"error,omitempty"`
}

// Notifications fans health transitions out to subscribers. Unlike the
// event broadcaster there is no snapshot to replay; subscribers only
// see transitions from the moment they subscribe.
type Notifications struct {
	subsMu sync.Mutex
	subs   map[int]*runtime.SubQueue[HealthEvent]
	nextID int
	closed bool
}

func NewNotifications() *Notifications {
	return &Notifications{
		subs: make(map[int]*runtime.SubQueue[HealthEvent]),
	}
}

func (n *Notifications) Subscribe() (<-chan HealthEvent, func()) {
	sub := runtime.NewSubQueue[HealthEvent](8)

	n.subsMu.Lock()
	if n.closed {
		n.subsMu.Unlock()
		sub.Close()
		return sub.Chan(), func() {}
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = sub
	n.subsMu.Unlock()

	sub.SetPaused(false)

	unsub := func() {
		n.subsMu.Lock()
		if q, ok := n.subs[id]; ok {
			delete(n.subs, id)
			q.Close()
		}
		n.subsMu.Unlock()
	}
	return sub.Chan(), unsub
}

func (n *Notifications) Close() error {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	for id, q := range n.subs {
		q.Close()
		delete(n.subs, id)
	}
	return nil
}

func (n *Notifications) broadcast(ev HealthEvent) {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	for _, sub := range n.subs {
		sub.Enqueue(ev)
	}
}

func (n *Notifications) NotifyProviderDegraded(agent string, failures int, err error) {
	ev := HealthEvent{
		Type:                ProviderDegraded,
		Agent:               agent,
		ConsecutiveFailures: failures,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	n.broadcast(ev)
}

func (n *Notifications) NotifyProviderRecovered(agent string) {
	n.broadcast(HealthEvent{
		Type:  ProviderRecovered,
		Agent: agent,
	})
}
