package network

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Transport schemes understood by ParseAddress.
const (
	SchemeUnix   = "unix"
	SchemeTCP    = "tcp"
	SchemeInproc = "inproc"
)

var (
	ErrAddress   = errors.New("network: invalid address")
	ErrAddrInUse = errors.New("network: address already in use")
	ErrClosed    = errors.New("network: endpoint closed")
	ErrQueueFull = errors.New("network: send queue full")
)

// Address is a parsed transport endpoint such as unix:///tmp/x.sock,
// tcp://127.0.0.1:7701 or inproc://display.
type Address struct {
	Scheme string
	Target string
}

// ParseAddress splits raw into scheme and target and validates the target for
// that scheme.
func ParseAddress(raw string) (Address, error) {
	s := strings.TrimSpace(raw)
	scheme, target, ok := strings.Cut(s, "://")
	if !ok || target == "" {
		return Address{}, fmt.Errorf("%w: %q", ErrAddress, raw)
	}
	scheme = strings.ToLower(scheme)
	switch scheme {
	case SchemeUnix, SchemeInproc:
	case SchemeTCP:
		host, port, err := net.SplitHostPort(target)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q: %v", ErrAddress, raw, err)
		}
		if port == "" {
			return Address{}, fmt.Errorf("%w: %q: missing port", ErrAddress, raw)
		}
		target = net.JoinHostPort(strings.Trim(host, "[]"), port)
	default:
		return Address{}, fmt.Errorf("%w: unsupported scheme %q", ErrAddress, scheme)
	}
	return Address{Scheme: scheme, Target: target}, nil
}

// MustParseAddress is ParseAddress for literals known to be valid.
func MustParseAddress(raw string) Address {
	a, err := ParseAddress(raw)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return a.Scheme + "://" + a.Target
}
