// Package runtime carries the process plumbing shared by the services:
// a supervisor that runs them as workers, and the subscription queue
// used to fan events out to consumers.
package runtime

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

type worker struct {
	name   string
	run    func(context.Context) error
	closeF func() error
}

// Supervisor runs a set of named workers and shuts them down in
// reverse registration order. The first worker error wins.
type Supervisor struct {
	mu      sync.Mutex
	workers []worker
	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

func NewSupervisor() *Supervisor {
	return &Supervisor{}
}

// Add registers a worker. Workers added after Start are not run.
func (s *Supervisor) Add(name string, run func(context.Context) error, closeF func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker{name: name, run: run, closeF: closeF})
}

// Start launches every registered worker. A worker's error is recorded
// once and surfaced from Wait, tagged with the worker's name.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workers {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			log.WithField("worker", w.name).Debug("Starting worker")
			if err := w.run(ctx); err != nil {
				s.errOnce.Do(func() {
					s.err = fmt.Errorf("worker %s: %w", w.name, err)
				})
			}
		}()
	}
	return nil
}

// Wait blocks until ctx is cancelled, then closes the workers in
// reverse order and waits for them to return. Close errors are logged,
// not returned; the first run error (if any) is.
func (s *Supervisor) Wait(ctx context.Context) error {
	<-ctx.Done()
	for i := len(s.workers) - 1; i >= 0; i-- {
		w := s.workers[i]
		if w.closeF == nil {
			continue
		}
		log.WithField("worker", w.name).Debug("Closing worker")
		if err := w.closeF(); err != nil {
			log.WithField("worker", w.name).WithError(err).Warn("Worker close failed")
		}
	}
	s.wg.Wait()
	return s.err
}
