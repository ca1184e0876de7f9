package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/svanichkin/pixelsim/codec"
	"github.com/svanichkin/pixelsim/logs"
)

// framedConn wraps a net.Conn and serializes writes so that whole frames are
// never interleaved on the wire.
type framedConn struct {
	net.Conn
	mu sync.Mutex
}

// WriteFrame writes one encoded frame under the connection's write lock.
func (fc *framedConn) WriteFrame(frame []byte) error {
	if fc == nil {
		return fmt.Errorf("framedConn is nil")
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return codec.WriteFrame(fc.Conn, frame)
}

// Endpoint is the usable handle of an established Channel. Outbound frames are
// queued and written by a single writer goroutine once a peer is attached;
// inbound frames are read by one reader goroutine per peer connection.
type Endpoint struct {
	name   string
	role   Role
	policy Policy

	out     mailbox
	in      mailbox
	pending atomic.Int64

	connMu    sync.Mutex
	conn      *framedConn
	connReady chan struct{}

	listener  net.Listener
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newEndpoint(name string, role Role, policy Policy, queueSize int) *Endpoint {
	e := &Endpoint{
		name:      name,
		role:      role,
		policy:    policy,
		out:       newMailbox(policy, queueSize),
		in:        newMailbox(policy, queueSize),
		connReady: make(chan struct{}),
		closed:    make(chan struct{}),
	}
	e.wg.Add(1)
	go e.writeLoop()
	return e
}

// Name returns the link name the endpoint was created for.
func (e *Endpoint) Name() string { return e.name }

// Send queues an encoded frame for the peer. It never reports a missing peer:
// frames wait until one attaches. Ordered endpoints block while the queue is full.
func (e *Endpoint) Send(frame []byte) error {
	e.pending.Add(1)
	evicted, err := e.out.put(frame)
	if err != nil {
		e.pending.Add(-1)
		return err
	}
	if evicted > 0 {
		e.pending.Add(-int64(evicted))
	}
	return nil
}

// TrySend is Send for callers that must not block: a full ordered queue
// rejects the frame with ErrQueueFull.
func (e *Endpoint) TrySend(frame []byte) error {
	e.pending.Add(1)
	evicted, err := e.out.offer(frame)
	if err != nil {
		e.pending.Add(-1)
		return err
	}
	if evicted > 0 {
		e.pending.Add(-int64(evicted))
	}
	return nil
}

// Recv blocks until a frame arrives, ctx ends, or the endpoint closes.
func (e *Endpoint) Recv(ctx context.Context) ([]byte, error) {
	return e.in.take(ctx)
}

// TryRecv returns the next inbound frame without blocking.
func (e *Endpoint) TryRecv() ([]byte, bool) {
	return e.in.tryTake()
}

// Dropped counts frames evicted by the latest-value policy, both directions.
func (e *Endpoint) Dropped() uint64 {
	return e.out.dropped() + e.in.dropped()
}

// Connected reports whether a peer is currently attached.
func (e *Endpoint) Connected() bool {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	return e.conn != nil
}

// Done is closed once the endpoint has shut down.
func (e *Endpoint) Done() <-chan struct{} { return e.closed }

// Flush waits until every queued outbound frame has been written or discarded.
func (e *Endpoint) Flush(ctx context.Context) error {
	tick := time.NewTicker(2 * time.Millisecond)
	defer tick.Stop()
	for e.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.closed:
			return ErrClosed
		case <-tick.C:
		}
	}
	return nil
}

// Close stops the endpoint and releases its connection and listener.
// Queued but unwritten frames are discarded; call Flush first to deliver them.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.out.close()
		e.in.close()
		if e.listener != nil {
			_ = e.listener.Close()
		}
		e.connMu.Lock()
		if e.conn != nil {
			_ = e.conn.Close()
			e.conn = nil
		}
		e.connMu.Unlock()
		logs.LogV("[net] %s endpoint closed", e.name)
	})
	e.wg.Wait()
	return nil
}

func (e *Endpoint) isClosed() bool {
	select {
	case <-e.closed:
		return true
	default:
		return false
	}
}

// attach makes conn the active peer, replacing any previous one, and starts
// reading from it.
func (e *Endpoint) attach(conn net.Conn) {
	fc := &framedConn{Conn: conn}
	e.connMu.Lock()
	if e.isClosed() {
		e.connMu.Unlock()
		conn.Close()
		return
	}
	old := e.conn
	e.conn = fc
	select {
	case <-e.connReady:
	default:
		close(e.connReady)
	}
	e.wg.Add(1)
	e.connMu.Unlock()
	if old != nil {
		logs.LogV("[net] %s peer replaced", e.name)
		_ = old.Close()
	}
	go e.readLoop(fc)
}

// detach drops conn after a read or write failure. A connecting endpoint never
// redials, so losing its peer closes it.
func (e *Endpoint) detach(fc *framedConn, cause error) {
	e.connMu.Lock()
	current := e.conn == fc
	if current {
		e.conn = nil
		e.connReady = make(chan struct{})
	}
	e.connMu.Unlock()
	_ = fc.Close()
	if !current || e.isClosed() {
		return
	}
	if cause != nil && !errors.Is(cause, io.EOF) && !errors.Is(cause, net.ErrClosed) {
		log.Printf("[net] %s peer lost: %v", e.name, cause)
	} else {
		logs.LogV("[net] %s peer disconnected", e.name)
	}
	if e.role == RoleConnect {
		go e.Close()
	}
}

// waitConn blocks until a peer is attached or the endpoint closes.
func (e *Endpoint) waitConn() *framedConn {
	for {
		e.connMu.Lock()
		fc, ready := e.conn, e.connReady
		e.connMu.Unlock()
		if fc != nil {
			return fc
		}
		select {
		case <-ready:
		case <-e.closed:
			return nil
		}
	}
}

func (e *Endpoint) writeLoop() {
	defer e.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-e.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		frame, err := e.out.take(ctx)
		if err != nil {
			return
		}
		for {
			fc := e.waitConn()
			if fc == nil {
				return
			}
			if e.policy == PolicyLatest {
				// a newer frame may have arrived while waiting for the peer
				if newer, ok := e.out.tryTake(); ok {
					e.pending.Add(-1)
					frame = newer
				}
			}
			if err := fc.WriteFrame(frame); err != nil {
				e.detach(fc, err)
				if e.policy == PolicyOrdered && e.role == RoleBind {
					continue
				}
			}
			break
		}
		e.pending.Add(-1)
	}
}

func (e *Endpoint) readLoop(fc *framedConn) {
	defer e.wg.Done()
	br := bufio.NewReader(fc)
	for {
		frame, err := codec.ReadFrame(br)
		if errors.Is(err, codec.ErrTooLarge) {
			log.Printf("[net] %s dropped frame: %v", e.name, err)
			continue
		}
		if err != nil {
			e.detach(fc, err)
			return
		}
		if _, err := e.in.put(frame); err != nil {
			return
		}
	}
}
