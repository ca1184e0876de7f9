package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/svanichkin/pixelsim/logs"
)

// Role says whether a Channel owns its address or reaches out to it.
type Role int

const (
	RoleBind Role = iota
	RoleConnect
)

func (r Role) String() string {
	if r == RoleConnect {
		return "connect"
	}
	return "bind"
}

const (
	dialBackoffMin = 10 * time.Millisecond
	dialBackoffMax = 250 * time.Millisecond
)

// Channel describes one end of a link and establishes it lazily. The first
// Establish does the work; later calls return the cached endpoint or error.
type Channel struct {
	Name      string
	Role      Role
	Addr      Address
	Policy    Policy
	QueueSize int

	transport Transport

	once   sync.Once
	mu     sync.Mutex
	ep     *Endpoint
	err    error
	closed bool
}

// NewChannel describes a link end. Nothing is opened until Establish.
func NewChannel(name string, role Role, addr Address, policy Policy, t Transport) *Channel {
	return &Channel{
		Name:      name,
		Role:      role,
		Addr:      addr,
		Policy:    policy,
		QueueSize: DefaultQueueSize,
		transport: t,
	}
}

// Establish binds or connects the channel. Binding fails fast when the address
// is taken. Connecting never fails on a missing peer: a background dialer keeps
// retrying and sends queue until it succeeds.
func (c *Channel) Establish() (*Endpoint, error) {
	c.once.Do(func() {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			c.setResult(nil, ErrClosed)
			return
		}
		ep, err := c.establish()
		if err != nil {
			log.Printf("[net] %s %s %s failed: %v", c.Name, c.Role, c.Addr, err)
		}
		c.setResult(ep, err)
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ep, c.err
}

// Established reports whether Establish already succeeded.
func (c *Channel) Established() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ep != nil
}

// Close shuts the endpoint down if one was established. A later Establish
// returns ErrClosed.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closed = true
	ep := c.ep
	c.mu.Unlock()
	// an Establish that has not run yet reports ErrClosed
	c.once.Do(func() { c.setResult(nil, ErrClosed) })
	if ep != nil {
		return ep.Close()
	}
	return nil
}

func (c *Channel) setResult(ep *Endpoint, err error) {
	c.mu.Lock()
	c.ep, c.err = ep, err
	if c.closed && ep != nil {
		c.mu.Unlock()
		ep.Close()
		c.mu.Lock()
		c.ep, c.err = nil, ErrClosed
	}
	c.mu.Unlock()
}

func (c *Channel) establish() (*Endpoint, error) {
	if c.transport == nil {
		return nil, fmt.Errorf("channel %s: no transport", c.Name)
	}
	switch c.Role {
	case RoleBind:
		ln, err := c.transport.Listen(c.Addr)
		if err != nil {
			return nil, err
		}
		ep := newEndpoint(c.Name, c.Role, c.Policy, c.QueueSize)
		ep.listener = ln
		ep.wg.Add(1)
		go acceptLoop(ep, ln)
		logs.LogV("[net] %s bound on %s", c.Name, c.Addr)
		return ep, nil
	case RoleConnect:
		ep := newEndpoint(c.Name, c.Role, c.Policy, c.QueueSize)
		ep.wg.Add(1)
		go dialLoop(ep, c.transport, c.Addr)
		logs.LogV("[net] %s connecting to %s", c.Name, c.Addr)
		return ep, nil
	default:
		return nil, fmt.Errorf("channel %s: unknown role %d", c.Name, c.Role)
	}
}

// acceptLoop attaches every accepted connection; the newest peer wins.
func acceptLoop(ep *Endpoint, ln net.Listener) {
	defer ep.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ep.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("[net] %s accept: %v", ep.name, err)
			select {
			case <-ep.closed:
				return
			case <-time.After(dialBackoffMin):
			}
			continue
		}
		logs.LogV("[net] %s peer attached", ep.name)
		ep.attach(conn)
	}
}

// dialLoop retries until the peer is reachable, then attaches once.
func dialLoop(ep *Endpoint, t Transport, addr Address) {
	defer ep.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-ep.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	backoff := dialBackoffMin
	for {
		conn, err := t.Dial(ctx, addr)
		if err == nil {
			logs.LogV("[net] %s connected to %s", ep.name, addr)
			ep.attach(conn)
			return
		}
		if ctx.Err() != nil {
			return
		}
		logs.LogV("[net] %s dial %s: %v", ep.name, addr, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > dialBackoffMax {
			backoff = dialBackoffMax
		}
	}
}
