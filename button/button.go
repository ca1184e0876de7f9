package button

import (
	"sync"
	"sync/atomic"
)

// Names of the two buttons on the simulated device.
const (
	NameA = "button_a"
	NameB = "button_b"
)

// Event is delivered to listeners after a state change.
type Event struct {
	Name    string
	Pressed bool // held after the change
	Pending int  // presses not yet read
}

// Button is a press counter plus a held flag. Every down transition counts,
// also one that arrives while the button is already held.
type Button struct {
	name    string
	presses atomic.Int64
	held    atomic.Bool

	listenerMu sync.Mutex
	listeners  map[int]func(Event)
	nextID     int
}

// New returns a released button with no recorded presses.
func New(name string) *Button {
	if name == "" {
		panic("button: empty name")
	}
	return &Button{name: name, listeners: make(map[int]func(Event))}
}

// Name returns the name the button reports in input events.
func (b *Button) Name() string { return b.name }

// Down marks the button held and counts a press.
func (b *Button) Down() {
	b.presses.Add(1)
	b.held.Store(true)
	b.notify()
}

// Up releases the button.
func (b *Button) Up() {
	if !b.held.Swap(false) {
		return
	}
	b.notify()
}

// Press is an instantaneous tap: Down immediately followed by Up.
func (b *Button) Press() {
	b.Down()
	b.Up()
}

// IsPressed reports whether the button is currently held.
func (b *Button) IsPressed() bool {
	return b.held.Load()
}

// GetPresses returns the presses since the previous read and resets the count.
func (b *Button) GetPresses() int {
	return int(b.presses.Swap(0))
}

// WasPressed reports whether any press happened since the previous read and
// resets the count.
func (b *Button) WasPressed() bool {
	return b.GetPresses() > 0
}

// Subscribe registers a callback invoked on every state change.
// It returns a function that removes the listener.
func (b *Button) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	b.listenerMu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.listenerMu.Unlock()
	return func() {
		b.listenerMu.Lock()
		delete(b.listeners, id)
		b.listenerMu.Unlock()
	}
}

func (b *Button) notify() {
	ev := Event{Name: b.name, Pressed: b.held.Load(), Pending: int(b.presses.Load())}
	b.listenerMu.Lock()
	snapshot := make([]func(Event), 0, len(b.listeners))
	for _, fn := range b.listeners {
		snapshot = append(snapshot, fn)
	}
	b.listenerMu.Unlock()
	for _, fn := range snapshot {
		func(cb func(Event)) {
			defer func() { recover() }()
			cb(ev)
		}(fn)
	}
}
