package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"

	"github.com/svanichkin/pixelsim/logs"
)

// Transport opens the raw byte streams a Channel runs on.
type Transport interface {
	Listen(addr Address) (net.Listener, error)
	Dial(ctx context.Context, addr Address) (net.Conn, error)
}

// SocketTransport serves unix and tcp addresses through the net package and
// inproc addresses through an in-memory registry private to the instance.
// Both processes of a pair must use sockets; inproc only links channels that
// share one SocketTransport.
type SocketTransport struct {
	mu     sync.Mutex
	inproc map[string]*pipeListener
}

// NewTransport returns a transport with an empty inproc registry.
func NewTransport() *SocketTransport {
	return &SocketTransport{inproc: make(map[string]*pipeListener)}
}

func (t *SocketTransport) Listen(addr Address) (net.Listener, error) {
	switch addr.Scheme {
	case SchemeInproc:
		return t.listenInproc(addr)
	case SchemeUnix:
		return listenUnix(addr.Target)
	case SchemeTCP:
		ln, err := net.Listen("tcp", addr.Target)
		if err != nil {
			if errors.Is(err, syscall.EADDRINUSE) {
				return nil, fmt.Errorf("%w: %s", ErrAddrInUse, addr)
			}
			return nil, fmt.Errorf("listen %s: %w", addr, err)
		}
		return ln, nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrAddress, addr.Scheme)
	}
}

func (t *SocketTransport) Dial(ctx context.Context, addr Address) (net.Conn, error) {
	switch addr.Scheme {
	case SchemeInproc:
		t.mu.Lock()
		ln := t.inproc[addr.Target]
		t.mu.Unlock()
		if ln == nil {
			return nil, fmt.Errorf("dial %s: %w", addr, syscall.ECONNREFUSED)
		}
		return ln.dial(ctx)
	case SchemeUnix, SchemeTCP:
		var d net.Dialer
		conn, err := d.DialContext(ctx, addr.Scheme, addr.Target)
		if err != nil {
			return nil, err
		}
		// --- Socket tuning for local links ---
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetNoDelay(true)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrAddress, addr.Scheme)
	}
}

// listenUnix binds path while holding an exclusive lock on path+".lock". The
// lock, not the socket file, says whether the address is taken: a socket file
// nobody holds the lock for was left by a dead process and is replaced.
func listenUnix(path string) (net.Listener, error) {
	unlock, err := lockSocketPath(path)
	if err != nil {
		return nil, err
	}
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&os.ModeSocket != 0 {
		if err := os.Remove(path); err != nil {
			unlock()
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
		logs.LogV("[net] removed stale socket %s", path)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		unlock()
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: unix://%s", ErrAddrInUse, path)
		}
		return nil, fmt.Errorf("listen unix://%s: %w", path, err)
	}
	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(true)
	}
	return &lockedListener{Listener: ln, unlock: unlock}, nil
}

// lockedListener releases the address lock once the socket is closed.
type lockedListener struct {
	net.Listener
	once   sync.Once
	unlock func()
}

func (l *lockedListener) Close() error {
	err := l.Listener.Close()
	l.once.Do(l.unlock)
	return err
}

func (t *SocketTransport) listenInproc(addr Address) (net.Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, taken := t.inproc[addr.Target]; taken {
		return nil, fmt.Errorf("%w: %s", ErrAddrInUse, addr)
	}
	ln := &pipeListener{
		addr:    pipeAddr(addr.String()),
		accepts: make(chan net.Conn),
		done:    make(chan struct{}),
	}
	ln.onClose = func() {
		t.mu.Lock()
		if t.inproc[addr.Target] == ln {
			delete(t.inproc, addr.Target)
		}
		t.mu.Unlock()
	}
	t.inproc[addr.Target] = ln
	return ln, nil
}

type pipeAddr string

func (a pipeAddr) Network() string { return SchemeInproc }
func (a pipeAddr) String() string  { return string(a) }

// pipeListener hands out the server halves of net.Pipe pairs.
type pipeListener struct {
	addr      pipeAddr
	accepts   chan net.Conn
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func (l *pipeListener) dial(ctx context.Context) (net.Conn, error) {
	client, server := net.Pipe()
	select {
	case l.accepts <- server:
		return client, nil
	case <-l.done:
	case <-ctx.Done():
		client.Close()
		server.Close()
		return nil, ctx.Err()
	}
	client.Close()
	server.Close()
	return nil, fmt.Errorf("dial %s: %w", l.addr, syscall.ECONNREFUSED)
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.accepts:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		if l.onClose != nil {
			l.onClose()
		}
	})
	return nil
}

func (l *pipeListener) Addr() net.Addr { return l.addr }
