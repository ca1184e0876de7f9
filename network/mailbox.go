package network

import (
	"context"
	"sync/atomic"
)

// Policy selects how a link queues frames when the consumer falls behind.
type Policy int

const (
	// PolicyOrdered delivers every frame in order; producers block on a full queue.
	PolicyOrdered Policy = iota
	// PolicyLatest keeps a single slot; a newer frame evicts an undelivered one.
	PolicyLatest
)

func (p Policy) String() string {
	if p == PolicyLatest {
		return "latest"
	}
	return "ordered"
}

// DefaultQueueSize is the depth of ordered queues.
const DefaultQueueSize = 256

type mailbox interface {
	// put returns how many undelivered frames it evicted to make room.
	put(frame []byte) (int, error)
	// offer is put without blocking; it fails with ErrQueueFull instead.
	offer(frame []byte) (int, error)
	take(ctx context.Context) ([]byte, error)
	tryTake() ([]byte, bool)
	dropped() uint64
	close()
}

func newMailbox(p Policy, size int) mailbox {
	if p == PolicyLatest {
		return &latestSlot{ch: make(chan []byte, 1), done: make(chan struct{})}
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &orderedQueue{ch: make(chan []byte, size), done: make(chan struct{})}
}

// latestSlot is a one-element mailbox that never blocks the producer.
type latestSlot struct {
	ch    chan []byte
	done  chan struct{}
	drops atomic.Uint64
}

func (s *latestSlot) put(frame []byte) (int, error) {
	select {
	case <-s.done:
		return 0, ErrClosed
	default:
	}
	evicted := 0
	for {
		select {
		case s.ch <- frame:
			return evicted, nil
		default:
		}
		// drop the stale frame to make room for the newest one
		select {
		case <-s.ch:
			s.drops.Add(1)
			evicted++
		default:
		}
	}
}

func (s *latestSlot) offer(frame []byte) (int, error) { return s.put(frame) }

func (s *latestSlot) take(ctx context.Context) ([]byte, error) {
	select {
	case f := <-s.ch:
		return f, nil
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *latestSlot) tryTake() ([]byte, bool) {
	select {
	case f := <-s.ch:
		return f, true
	default:
		return nil, false
	}
}

func (s *latestSlot) dropped() uint64 { return s.drops.Load() }

func (s *latestSlot) close() { close(s.done) }

// orderedQueue is a bounded FIFO that applies back-pressure instead of dropping.
type orderedQueue struct {
	ch   chan []byte
	done chan struct{}
}

func (q *orderedQueue) put(frame []byte) (int, error) {
	select {
	case <-q.done:
		return 0, ErrClosed
	default:
	}
	select {
	case q.ch <- frame:
		return 0, nil
	case <-q.done:
		return 0, ErrClosed
	}
}

func (q *orderedQueue) offer(frame []byte) (int, error) {
	select {
	case <-q.done:
		return 0, ErrClosed
	default:
	}
	select {
	case q.ch <- frame:
		return 0, nil
	default:
		return 0, ErrQueueFull
	}
}

func (q *orderedQueue) take(ctx context.Context) ([]byte, error) {
	select {
	case f := <-q.ch:
		return f, nil
	default:
	}
	select {
	case f := <-q.ch:
		return f, nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *orderedQueue) tryTake() ([]byte, bool) {
	select {
	case f := <-q.ch:
		return f, true
	default:
		return nil, false
	}
}

func (q *orderedQueue) dropped() uint64 { return 0 }

func (q *orderedQueue) close() { close(q.done) }
