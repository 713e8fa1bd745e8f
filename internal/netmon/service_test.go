package netmon

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lldpwatch/lldpwatchd/internal/runtime"
)

// mockWatcher is a test double for the platform Watcher.
type mockWatcher struct {
	mu     sync.Mutex
	notify func()
}

func (m *mockWatcher) Start(ctx context.Context, notify func()) error {
	m.mu.Lock()
	m.notify = notify
	m.mu.Unlock()

	<-ctx.Done()
	return nil
}

func (m *mockWatcher) Kick() {
	m.mu.Lock()
	n := m.notify
	m.mu.Unlock()
	if n != nil {
		n()
	}
}

// newTestService builds a Service that never reconciles on its own.
func newTestService() *Service {
	return &Service{
		watcher:           &mockWatcher{},
		reconcileInterval: time.Hour,
		links:             make(map[string]struct{}),
		subs:              make(map[int]*runtime.SubQueue[LinkEvent]),
	}
}

func recvEvent(t *testing.T, ch <-chan LinkEvent) LinkEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for link event")
		return LinkEvent{}
	}
}

func TestService_UpsertLinkBroadcasts(t *testing.T) {
	s := newTestService()
	defer s.Close()

	ch, unsub := s.Subscribe()
	defer unsub()

	s.upsertLink("eth0")

	ev := recvEvent(t, ch)
	assert.Equal(t, LinkUp, ev.Type)
	assert.Equal(t, "eth0", ev.Interface)
}

func TestService_RemoveLinkBroadcasts(t *testing.T) {
	s := newTestService()
	defer s.Close()

	s.upsertLink("eth0")

	ch, unsub := s.Subscribe()
	defer unsub()

	// Snapshot replay first.
	ev := recvEvent(t, ch)
	assert.Equal(t, LinkUp, ev.Type)

	s.removeLink("eth0")

	ev = recvEvent(t, ch)
	assert.Equal(t, LinkDown, ev.Type)
	assert.Equal(t, "eth0", ev.Interface)
}

func TestService_RemoveUnknownLinkIsSilent(t *testing.T) {
	s := newTestService()
	defer s.Close()

	ch, unsub := s.Subscribe()
	defer unsub()

	s.removeLink("eth9")

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestService_SubscribeReplaysSnapshot(t *testing.T) {
	s := newTestService()
	defer s.Close()

	s.upsertLink("eth0")
	s.upsertLink("eth1")

	ch, unsub := s.Subscribe()
	defer unsub()

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		ev := recvEvent(t, ch)
		assert.Equal(t, LinkUp, ev.Type)
		got[ev.Interface] = true
	}
	assert.True(t, got["eth0"])
	assert.True(t, got["eth1"])
}

func TestService_Candidate(t *testing.T) {
	s := newTestService()
	defer s.Close()

	up := net.FlagUp | net.FlagRunning

	assert.True(t, s.candidate(net.Interface{Name: "eth0", Flags: up}))
	assert.False(t, s.candidate(net.Interface{Name: "eth0"}), "down interface")
	assert.False(t, s.candidate(net.Interface{Name: "lo", Flags: up | net.FlagLoopback}))

	s.prefixes = []string{"eth", "en"}
	assert.True(t, s.candidate(net.Interface{Name: "eth0", Flags: up}))
	assert.True(t, s.candidate(net.Interface{Name: "en0", Flags: up}))
	assert.False(t, s.candidate(net.Interface{Name: "wlan0", Flags: up}))
}

func TestService_CloseIsIdempotent(t *testing.T) {
	s := newTestService()

	ch, _ := s.Subscribe()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	// Subscriber channel is closed by Close.
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed")
	}
}

func TestService_StartStopsOnContextCancel(t *testing.T) {
	s := newTestService()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
