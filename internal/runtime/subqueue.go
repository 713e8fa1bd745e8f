package runtime

import (
	"sync"
)

// SubQueue decouples event producers from one subscriber. Producers
// Enqueue without blocking on the consumer; a dispatcher goroutine
// feeds the subscriber channel in FIFO order.
//
// A new queue starts paused so the owner can replay a snapshot to the
// subscriber before any live events flow: register the queue (live
// events start accumulating), push the snapshot with
// OutOfBandSnapshotSend, then SetPaused(false).
type SubQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []T
	paused bool
	closed bool

	outCh   chan T
	closeCh chan struct{}
}

func NewSubQueue[T any](outBuf int) *SubQueue[T] {
	sq := &SubQueue[T]{
		outCh:   make(chan T, outBuf),
		closeCh: make(chan struct{}),
		paused:  true,
	}
	sq.cond = sync.NewCond(&sq.mu)
	go sq.dispatch()
	return sq
}

// Chan is the subscriber's receive side. It is closed by Close.
func (sq *SubQueue[T]) Chan() <-chan T { return sq.outCh }

// Enqueue appends a live event and wakes the dispatcher. Events
// enqueued after Close are dropped.
func (sq *SubQueue[T]) Enqueue(ev T) {
	sq.mu.Lock()
	if !sq.closed {
		sq.queue = append(sq.queue, ev)
		sq.cond.Signal()
	}
	sq.mu.Unlock()
}

// SetPaused gates dispatching of queued events.
func (sq *SubQueue[T]) SetPaused(v bool) {
	sq.mu.Lock()
	sq.paused = v
	sq.cond.Broadcast()
	sq.mu.Unlock()
}

// OutOfBandSnapshotSend pushes an event directly to the subscriber
// channel, bypassing the queue. Use ONLY while the queue is paused and
// only when the channel buffer can absorb the whole snapshot burst.
func (sq *SubQueue[T]) OutOfBandSnapshotSend(ev T) {
	sq.outCh <- ev
}

// Close stops the dispatcher and closes the subscriber channel. Safe
// to call more than once, and safe even when the subscriber stopped
// reading: a dispatcher blocked on a full channel is released.
func (sq *SubQueue[T]) Close() {
	sq.mu.Lock()
	if !sq.closed {
		sq.closed = true
		close(sq.closeCh)
		sq.cond.Broadcast()
	}
	sq.mu.Unlock()
}

func (sq *SubQueue[T]) dispatch() {
	for {
		sq.mu.Lock()
		for !sq.closed && (sq.paused || len(sq.queue) == 0) {
			sq.cond.Wait()
		}
		if sq.closed {
			sq.mu.Unlock()
			close(sq.outCh)
			return
		}
		ev := sq.queue[0]
		var zero T
		sq.queue[0] = zero
		sq.queue = sq.queue[1:]
		if len(sq.queue) == 0 {
			sq.queue = nil
		}
		sq.mu.Unlock()

		select {
		case sq.outCh <- ev:
		case <-sq.closeCh:
			// Subscriber is gone; drop the event and shut down.
			close(sq.outCh)
			return
		}
	}
}
