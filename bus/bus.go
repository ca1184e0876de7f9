// Package bus ties the four fixed simulator links together and exposes typed
// send and receive operations with per-link statistics.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/svanichkin/pixelsim/codec"
	"github.com/svanichkin/pixelsim/logs"
	"github.com/svanichkin/pixelsim/network"
)

// Side identifies which process of the pair owns a Bus.
type Side int

const (
	SideDevice Side = iota
	SideRenderer
)

func (s Side) String() string {
	if s == SideRenderer {
		return "renderer"
	}
	return "device"
}

// Link names.
const (
	LinkDisplay = "display"
	LinkControl = "control"
	LinkInput   = "input"
	LinkOutput  = "output"
)

// Links lists the link names in a stable order.
var Links = [...]string{LinkDisplay, LinkControl, LinkInput, LinkOutput}

// ErrQueueFull is returned by the TrySend operations when the link's queue
// has no room.
var ErrQueueFull = network.ErrQueueFull

// ControlStop is the only control message the simulator pair exchanges.
const ControlStop = "stop"

// CloseTimeout bounds how long Close waits for queued frames to reach the peer.
var CloseTimeout = time.Second

// Addrs holds one transport address per link.
type Addrs struct {
	Display network.Address
	Control network.Address
	Input   network.Address
	Output  network.Address
}

// Get returns the address configured for link.
func (a Addrs) Get(link string) network.Address {
	switch link {
	case LinkDisplay:
		return a.Display
	case LinkControl:
		return a.Control
	case LinkInput:
		return a.Input
	default:
		return a.Output
	}
}

type linkSpec struct {
	name       string
	policy     network.Policy
	deviceRole network.Role
}

// The device binds the links it produces into and connects to the ones the
// renderer owns.
var linkTable = [...]linkSpec{
	{LinkDisplay, network.PolicyLatest, network.RoleBind},
	{LinkControl, network.PolicyOrdered, network.RoleConnect},
	{LinkInput, network.PolicyOrdered, network.RoleConnect},
	{LinkOutput, network.PolicyOrdered, network.RoleBind},
}

type linkCounters struct {
	sent      atomic.Uint64
	received  atomic.Uint64
	malformed atomic.Uint64
}

type link struct {
	ch       *network.Channel
	counters linkCounters
}

// Bus owns the channels of one process.
type Bus struct {
	id       xid.ID
	side     Side
	links    [len(linkTable)]*link
	sent     atomic.Uint64
	received atomic.Uint64
}

// DecodeError reports a frame that arrived on a link but could not be decoded.
// The frame is consumed; the next receive reads the following frame.
type DecodeError struct {
	Link string
	Kind codec.Kind // kind byte the frame actually carried
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("bus: decode %s frame (%s): %v", e.Link, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// New describes the links for side. Nothing is bound or dialled until a link
// is first used.
func New(side Side, addrs Addrs, t network.Transport) *Bus {
	b := &Bus{id: xid.New(), side: side}
	for i, spec := range linkTable {
		role := spec.deviceRole
		if side == SideRenderer {
			role = flip(role)
		}
		b.links[i] = &link{
			ch: network.NewChannel(spec.name, role, addrs.Get(spec.name), spec.policy, t),
		}
	}
	logs.LogV("[bus] %s bus %s created", side, b.id)
	return b
}

func flip(r network.Role) network.Role {
	if r == network.RoleBind {
		return network.RoleConnect
	}
	return network.RoleBind
}

// ID is a unique identifier of this bus instance, used in logs.
func (b *Bus) ID() string { return b.id.String() }

// Side returns the process side the bus was built for.
func (b *Bus) Side() Side { return b.side }

func (b *Bus) link(name string) *link {
	for i, spec := range linkTable {
		if spec.name == name {
			return b.links[i]
		}
	}
	panic("bus: unknown link " + name)
}

// Establish brings a link up without sending anything. Binding sides use it at
// start-up to fail fast on an occupied address.
func (b *Bus) Establish(name string) error {
	_, err := b.link(name).ch.Establish()
	return err
}

func (b *Bus) send(name string, frame []byte) error {
	return b.deliver(name, frame, (*network.Endpoint).Send)
}

func (b *Bus) trySend(name string, frame []byte) error {
	return b.deliver(name, frame, (*network.Endpoint).TrySend)
}

func (b *Bus) deliver(name string, frame []byte, put func(*network.Endpoint, []byte) error) error {
	l := b.link(name)
	ep, err := l.ch.Establish()
	if err != nil {
		return fmt.Errorf("bus: %s link: %w", name, err)
	}
	if err := put(ep, frame); err != nil {
		return fmt.Errorf("bus: send %s: %w", name, err)
	}
	l.counters.sent.Add(1)
	b.sent.Add(1)
	return nil
}

func (b *Bus) recv(ctx context.Context, name string) ([]byte, error) {
	ep, err := b.link(name).ch.Establish()
	if err != nil {
		return nil, fmt.Errorf("bus: %s link: %w", name, err)
	}
	frame, err := ep.Recv(ctx)
	if err != nil {
		return nil, fmt.Errorf("bus: recv %s: %w", name, err)
	}
	return frame, nil
}

func (b *Bus) tryRecv(name string) ([]byte, bool, error) {
	ep, err := b.link(name).ch.Establish()
	if err != nil {
		return nil, false, fmt.Errorf("bus: %s link: %w", name, err)
	}
	frame, ok := ep.TryRecv()
	return frame, ok, nil
}

// decoded finishes a receive: a decode failure is counted as malformed, a
// success as received.
func (b *Bus) decoded(name string, frame []byte, err error) error {
	l := b.link(name)
	if err != nil {
		l.counters.malformed.Add(1)
		kind, _ := codec.Peek(frame)
		return &DecodeError{Link: name, Kind: kind, Err: err}
	}
	l.counters.received.Add(1)
	b.received.Add(1)
	return nil
}

// SendDisplay publishes a snapshot of buf. Undelivered older snapshots may be
// dropped in favour of it.
func (b *Bus) SendDisplay(buf codec.Buffer) error {
	return b.send(LinkDisplay, codec.EncodeDisplay(buf))
}

// RecvDisplay blocks for the next display snapshot.
func (b *Bus) RecvDisplay(ctx context.Context) (codec.Buffer, error) {
	frame, err := b.recv(ctx, LinkDisplay)
	if err != nil {
		return codec.Buffer{}, err
	}
	buf, err := codec.DecodeDisplay(frame)
	return buf, b.decoded(LinkDisplay, frame, err)
}

// TryRecvDisplay returns the newest pending snapshot, if any.
func (b *Bus) TryRecvDisplay() (codec.Buffer, bool, error) {
	frame, ok, err := b.tryRecv(LinkDisplay)
	if err != nil || !ok {
		return codec.Buffer{}, false, err
	}
	buf, err := codec.DecodeDisplay(frame)
	if err := b.decoded(LinkDisplay, frame, err); err != nil {
		return codec.Buffer{}, false, err
	}
	return buf, true, nil
}

func (b *Bus) SendControl(msg string) error {
	return b.send(LinkControl, codec.EncodeControl(msg))
}

// TrySendControl queues msg without blocking. It fails with ErrQueueFull while
// the peer is absent and the queue has filled up.
func (b *Bus) TrySendControl(msg string) error {
	return b.trySend(LinkControl, codec.EncodeControl(msg))
}

func (b *Bus) RecvControl(ctx context.Context) (string, error) {
	frame, err := b.recv(ctx, LinkControl)
	if err != nil {
		return "", err
	}
	msg, err := codec.DecodeControl(frame)
	return msg, b.decoded(LinkControl, frame, err)
}

func (b *Bus) TryRecvControl() (string, bool, error) {
	frame, ok, err := b.tryRecv(LinkControl)
	if err != nil || !ok {
		return "", false, err
	}
	msg, err := codec.DecodeControl(frame)
	if err := b.decoded(LinkControl, frame, err); err != nil {
		return "", false, err
	}
	return msg, true, nil
}

func (b *Bus) SendInputEvent(ev codec.InputEvent) error {
	frame, err := codec.EncodeInputEvent(ev)
	if err != nil {
		return fmt.Errorf("bus: encode input event: %w", err)
	}
	return b.send(LinkInput, frame)
}

// TrySendInputEvent is SendInputEvent without blocking on a full queue.
func (b *Bus) TrySendInputEvent(ev codec.InputEvent) error {
	frame, err := codec.EncodeInputEvent(ev)
	if err != nil {
		return fmt.Errorf("bus: encode input event: %w", err)
	}
	return b.trySend(LinkInput, frame)
}

func (b *Bus) RecvInputEvent(ctx context.Context) (codec.InputEvent, error) {
	frame, err := b.recv(ctx, LinkInput)
	if err != nil {
		return codec.InputEvent{}, err
	}
	ev, err := codec.DecodeInputEvent(frame)
	return ev, b.decoded(LinkInput, frame, err)
}

func (b *Bus) TryRecvInputEvent() (codec.InputEvent, bool, error) {
	frame, ok, err := b.tryRecv(LinkInput)
	if err != nil || !ok {
		return codec.InputEvent{}, false, err
	}
	ev, err := codec.DecodeInputEvent(frame)
	if err := b.decoded(LinkInput, frame, err); err != nil {
		return codec.InputEvent{}, false, err
	}
	return ev, true, nil
}

func (b *Bus) SendOutput(text string) error {
	frame, err := codec.EncodeOutput(text)
	if err != nil {
		return fmt.Errorf("bus: encode output: %w", err)
	}
	return b.send(LinkOutput, frame)
}

func (b *Bus) RecvOutput(ctx context.Context) (string, error) {
	frame, err := b.recv(ctx, LinkOutput)
	if err != nil {
		return "", err
	}
	text, err := codec.DecodeOutput(frame)
	return text, b.decoded(LinkOutput, frame, err)
}

func (b *Bus) TryRecvOutput() (string, bool, error) {
	frame, ok, err := b.tryRecv(LinkOutput)
	if err != nil || !ok {
		return "", false, err
	}
	text, err := codec.DecodeOutput(frame)
	if err := b.decoded(LinkOutput, frame, err); err != nil {
		return "", false, err
	}
	return text, true, nil
}

// Flush waits until every established link has written its queued frames.
func (b *Bus) Flush(ctx context.Context) error {
	var errs []error
	for _, l := range b.links {
		if !l.ch.Established() {
			continue
		}
		ep, _ := l.ch.Establish()
		if err := ep.Flush(ctx); err != nil && !errors.Is(err, network.ErrClosed) {
			errs = append(errs, fmt.Errorf("%s: %w", l.ch.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending frames for up to CloseTimeout and shuts every link.
func (b *Bus) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), CloseTimeout)
	defer cancel()
	if err := b.Flush(ctx); err != nil {
		logs.LogV("[bus] %s flush: %v", b.id, err)
	}
	var errs []error
	for _, l := range b.links {
		if err := l.ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	logs.LogV("[bus] %s closed, %s", b.id, b.Stats())
	return errors.Join(errs...)
}
