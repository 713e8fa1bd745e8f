package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lldpwatch/lldpwatchd/internal/lldp"
	"github.com/lldpwatch/lldpwatchd/internal/provider"
)

// State is the lifecycle of a Watcher. A watcher is single use: once
// Stopped it cannot be started again.
type State int

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

var (
	// ErrNotStarted is returned by Join on a watcher that was never
	// started.
	ErrNotStarted = errors.New("watcher not started")

	// ErrAlreadyStopped is returned by Start once the watcher has been
	// stopped.
	ErrAlreadyStopped = errors.New("watcher already stopped")

	// ErrJoinTimeout is returned when the watcher did not reach
	// Stopped within the join deadline.
	ErrJoinTimeout = errors.New("timed out waiting for watcher to stop")
)

const (
	DefaultPollInterval     = 30 * time.Second
	DefaultProviderTimeout  = 5 * time.Second
	DefaultFailureThreshold = 3
)

// Config tunes one watcher.
type Config struct {
	// PollInterval is the time between snapshot fetches.
	PollInterval time.Duration

	// ProviderTimeout bounds a single fetch.
	ProviderTimeout time.Duration

	// FailureThreshold is the number of consecutive fetch failures
	// before the watcher reports itself degraded. Negative disables
	// the degraded signal; zero means the default.
	FailureThreshold int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = DefaultProviderTimeout
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	return c
}

// Health is a point-in-time view of a watcher's relationship with its
// provider.
type Health struct {
	State               string    `json:"state"`
	Degraded            bool      `json:"degraded"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastSuccess         time.Time `json:"last_success"`
}

// Watcher polls one provider in the background and dispatches table
// deltas to its observers and event sink. Failed polls keep the
// previous table; neighbors are never dropped just because the agent
// was unreachable for a cycle.
type Watcher struct {
	provider  provider.Provider
	cfg       Config
	observers []Observer
	sink      EventSink
	notif     *Notifications

	mu       sync.Mutex
	state    State
	current  lldp.Snapshot
	failures int
	degraded bool
	lastErr  error
	lastOK   time.Time

	kickCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

func New(p provider.Provider, cfg Config) *Watcher {
	return &Watcher{
		provider: p,
		cfg:      cfg.withDefaults(),
		current:  lldp.Snapshot{},
		kickCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Agent is the name of the agent this watcher polls.
func (w *Watcher) Agent() string { return w.provider.Name() }

// AddObserver registers an observer. Wire observers before Start;
// there is no synchronization with a running dispatch.
func (w *Watcher) AddObserver(o Observer) {
	w.observers = append(w.observers, o)
}

// SetEventSink routes dispatched events to sink. Wire before Start.
func (w *Watcher) SetEventSink(s EventSink) {
	w.sink = s
}

// SetNotifications routes degraded/recovered transitions to n. Wire
// before Start.
func (w *Watcher) SetNotifications(n *Notifications) {
	w.notif = n
}

// Start moves the watcher from Idle to Running and launches the poll
// loop. Starting a Running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case Running:
		return nil
	case Stopping, Stopped:
		return ErrAlreadyStopped
	}
	w.state = Running
	go w.run()
	return nil
}

// Stop asks the poll loop to exit at its next checkpoint. It does not
// wait; use Join. Stopping an Idle watcher finalizes it immediately.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case Idle:
		w.state = Stopped
		close(w.doneCh)
	case Running:
		w.state = Stopping
		close(w.stopCh)
	}
}

// Join blocks until the watcher reaches Stopped. A zero or negative
// timeout waits without bound. Joining a watcher that was never
// started returns ErrNotStarted.
func (w *Watcher) Join(timeout time.Duration) error {
	w.mu.Lock()
	idle := w.state == Idle
	w.mu.Unlock()
	if idle {
		return ErrNotStarted
	}

	if timeout <= 0 {
		<-w.doneCh
		return nil
	}
	select {
	case <-w.doneCh:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w after %s", ErrJoinTimeout, timeout)
	}
}

// Run starts the watcher, blocks until ctx is cancelled, then stops
// and waits for the loop to finish. Convenience for supervisor-style
// callers that hold one goroutine per service.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return w.Join(0)
}

// Kick schedules an immediate poll. Kicks coalesce: at most one extra
// poll is pending at a time.
func (w *Watcher) Kick() {
	select {
	case w.kickCh <- struct{}{}:
	default:
	}
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Health snapshots the watcher's provider health.
func (w *Watcher) Health() Health {
	w.mu.Lock()
	defer w.mu.Unlock()
	h := Health{
		State:               w.state.String(),
		Degraded:            w.degraded,
		ConsecutiveFailures: w.failures,
		LastSuccess:         w.lastOK,
	}
	if w.lastErr != nil {
		h.LastError = w.lastErr.Error()
	}
	return h
}

// Current returns the last good neighbor table in key order.
func (w *Watcher) Current() []lldp.Record {
	w.mu.Lock()
	snap := w.current
	w.mu.Unlock()
	return snap.Records()
}

func (w *Watcher) run() {
	defer func() {
		w.mu.Lock()
		w.state = Stopped
		w.mu.Unlock()
		close(w.doneCh)
	}()

	logger := log.WithField("agent", w.provider.Name())
	logger.WithFields(log.Fields{
		"poll_interval":    w.cfg.PollInterval,
		"provider_timeout": w.cfg.ProviderTimeout,
	}).Info("Neighbor watcher started")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	// First poll runs immediately so the initial table is dispatched
	// as an added burst, unless a stop already came in.
	select {
	case <-w.stopCh:
		logger.Info("Neighbor watcher stopped")
		return
	default:
		w.cycle()
	}

	for {
		// A pending stop wins over a pending tick or kick.
		select {
		case <-w.stopCh:
			logger.Info("Neighbor watcher stopped")
			return
		default:
		}

		select {
		case <-w.stopCh:
			logger.Info("Neighbor watcher stopped")
			return
		case <-ticker.C:
			w.cycle()
		case <-w.kickCh:
			w.cycle()
		}
	}
}

// cycle runs one fetch-diff-dispatch pass.
func (w *Watcher) cycle() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ProviderTimeout)
	records, err := w.provider.FetchNeighbors(ctx)
	cancel()
	if err != nil {
		w.cycleFailed(err)
		return
	}

	snap, collided := lldp.NewSnapshot(records)
	for _, key := range collided {
		log.WithFields(log.Fields{
			"agent": w.provider.Name(),
			"key":   key.String(),
		}).Warn("Duplicate neighbor key in snapshot, keeping last record")
	}

	// Commit the table before dispatching so snapshot readers never
	// lag the events they are about to receive.
	w.mu.Lock()
	prev := w.current
	w.current = snap
	w.failures = 0
	w.lastErr = nil
	w.lastOK = time.Now()
	wasDegraded := w.degraded
	w.degraded = false
	w.mu.Unlock()

	if wasDegraded {
		log.WithField("agent", w.provider.Name()).Info("Provider recovered")
		if w.notif != nil {
			w.notif.NotifyProviderRecovered(w.provider.Name())
		}
	}

	w.dispatch(Diff(w.provider.Name(), prev, snap))
}

func (w *Watcher) cycleFailed(err error) {
	if errors.Is(err, context.Canceled) {
		// Shutdown racing a fetch, not an agent fault.
		return
	}

	w.mu.Lock()
	w.failures++
	w.lastErr = err
	failures := w.failures
	crossed := w.cfg.FailureThreshold > 0 && !w.degraded && failures >= w.cfg.FailureThreshold
	if crossed {
		w.degraded = true
	}
	w.mu.Unlock()

	logger := log.WithFields(log.Fields{
		"agent":                w.provider.Name(),
		"consecutive_failures": failures,
	}).WithError(err)

	if crossed {
		logger.Error("Provider degraded, keeping last known neighbor table")
		if w.notif != nil {
			w.notif.NotifyProviderDegraded(w.provider.Name(), failures, err)
		}
		return
	}
	logger.Warn("Neighbor poll failed, keeping previous snapshot")
}

func (w *Watcher) dispatch(events []Event) {
	for _, ev := range events {
		log.WithFields(log.Fields{
			"agent": ev.Agent,
			"type":  ev.Type,
			"key":   ev.Record.Key().String(),
		}).Debug("Neighbor change")

		for _, o := range w.observers {
			if err := w.invoke(o, ev); err != nil {
				log.WithFields(log.Fields{
					"agent": ev.Agent,
					"type":  ev.Type,
					"key":   ev.Record.Key().String(),
				}).WithError(err).Warn("Observer callback failed")
			}
		}
		if w.sink != nil {
			w.sink.Publish(ev)
		}
	}
}

// invoke runs one observer callback, converting a panic into an error
// so a broken observer cannot take the watcher down.
func (w *Watcher) invoke(o Observer, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()

	switch ev.Type {
	case NeighborAdded:
		return o.OnNeighborAdded(ev.Record.Local, ev.Record.Neighbor)
	case NeighborUpdated:
		return o.OnNeighborUpdated(ev.Record.Local, *ev.Previous, ev.Record.Neighbor)
	case NeighborRemoved:
		return o.OnNeighborRemoved(ev.Record.Local, ev.Record.Neighbor)
	}
	return nil
}
