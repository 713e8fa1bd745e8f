package watcher

import (
	"sync"

	"github.com/lldpwatch/lldpwatchd/internal/runtime"
)

// EventSink receives every dispatched event after the observers have
// run. The watcher never blocks on a sink.
type EventSink interface {
	Publish(ev Event)
}

// Broadcaster fans change events from any number of watchers out to
// channel subscribers. Events carry the agent name, so one broadcaster
// serves a whole fleet.
type Broadcaster struct {
	subsMu sync.Mutex
	subs   map[int]*runtime.SubQueue[Event]
	nextID int
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[int]*runtime.SubQueue[Event]),
	}
}

// Publish implements EventSink.
func (b *Broadcaster) Publish(ev Event) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	for _, sub := range b.subs {
		sub.Enqueue(ev)
	}
}

// Subscribe registers a subscriber using the snapshot-then-live
// pattern: the events from snapshot (if non-nil) arrive first, then
// every event published after registration. A change landing while the
// subscription is being set up can show up both in the snapshot and as
// a live event, so consumers must treat additions as upserts.
//
// snapshot runs under the broadcaster lock and must not call back in.
func (b *Broadcaster) Subscribe(snapshot func() []Event) (<-chan Event, func()) {
	b.subsMu.Lock()
	var snapEvents []Event
	if snapshot != nil {
		snapEvents = snapshot()
	}
	sub := runtime.NewSubQueue[Event](len(snapEvents) + 16)
	if b.closed {
		b.subsMu.Unlock()
		sub.Close()
		return sub.Chan(), func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.subsMu.Unlock()

	for _, ev := range snapEvents {
		sub.OutOfBandSnapshotSend(ev)
	}
	sub.SetPaused(false)

	unsub := func() {
		b.subsMu.Lock()
		if q, ok := b.subs[id]; ok {
			delete(b.subs, id)
			q.Close()
		}
		b.subsMu.Unlock()
	}
	return sub.Chan(), unsub
}

// Close drops all subscribers and closes their channels.
func (b *Broadcaster) Close() error {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, q := range b.subs {
		q.Close()
		delete(b.subs, id)
	}
	return nil
}
