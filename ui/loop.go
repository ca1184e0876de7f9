package ui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/svanichkin/pixelsim/bus"
	"github.com/svanichkin/pixelsim/button"
	"github.com/svanichkin/pixelsim/codec"
	"github.com/svanichkin/pixelsim/logs"
)

// Source is the renderer side of the bus as the loop uses it.
type Source interface {
	TryRecvControl() (string, bool, error)
	TryRecvDisplay() (codec.Buffer, bool, error)
	TryRecvOutput() (string, bool, error)
	TrySendInputEvent(ev codec.InputEvent) error
	TrySendControl(msg string) error
	Stats() bus.Stats
}

// State of a Loop.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "not-started"
	}
}

// Loop defaults.
const (
	DefaultMaxFPS        = 60
	DefaultIdleSleep     = time.Millisecond
	DefaultStatsInterval = time.Second
	outputBurst          = 32
)

// Options tune a Loop. Zero fields take the defaults.
type Options struct {
	Clock         Clock
	MaxFPS        float64
	IdleSleep     time.Duration
	StatsInterval time.Duration
	Scrollback    int
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = RealClock()
	}
	if o.MaxFPS <= 0 {
		o.MaxFPS = DefaultMaxFPS
	}
	if o.IdleSleep <= 0 {
		o.IdleSleep = DefaultIdleSleep
	}
	if o.StatsInterval <= 0 {
		o.StatsInterval = DefaultStatsInterval
	}
	if o.Scrollback <= 0 {
		o.Scrollback = DefaultScrollback
	}
	return o
}

type task struct {
	name string
	run  func(now time.Time) (bool, error)
}

// Loop is the renderer's scheduler. Every Tick runs the fixed task list once
// on the calling goroutine, which is the only one that touches the renderer.
type Loop struct {
	r     Renderer
	src   Source
	opts  Options
	clock Clock

	state  State
	layout Layout
	tasks  []task

	limiter     *rate.Limiter
	pendingLEDs *codec.Buffer
	scroll      *Scrollback
	rates       rates
	nextStats   time.Time
	dirty       bool
	suppressed  uint64
	droppedKeys uint64

	teardownOnce sync.Once
}

// NewLoop wires a loop between renderer r and the bus side src.
func NewLoop(r Renderer, src Source, opts Options) *Loop {
	opts = opts.withDefaults()
	l := &Loop{
		r:       r,
		src:     src,
		opts:    opts,
		clock:   opts.Clock,
		limiter: rate.NewLimiter(rate.Every(time.Duration(float64(time.Second)/opts.MaxFPS)), 1),
		scroll:  NewScrollback(opts.Scrollback),
		rates:   newRates(),
	}
	l.tasks = []task{
		{"control", l.controlTask},
		{"display", l.displayTask},
		{"output", l.outputTask},
		{"input", l.inputTask},
		{"stats", l.statsTask},
	}
	return l
}

// State returns the current state.
func (l *Loop) State() State { return l.state }

// Rate returns the smoothed per-second rate of one of the Rate* counters.
func (l *Loop) Rate(name string) float64 { return l.rates.Rate(name) }

// Suppressed counts display frames consumed without a paint because of the
// refresh cap.
func (l *Loop) Suppressed() uint64 { return l.suppressed }

// DroppedKeys counts key presses discarded because the input queue was full.
func (l *Loop) DroppedKeys() uint64 { return l.droppedKeys }

// Start acquires the terminal and paints the initial frame.
func (l *Loop) Start() (err error) {
	if l.state != StateNotStarted {
		return fmt.Errorf("ui: loop already %s", l.state)
	}
	defer l.guard(&err)
	layout, err := l.r.Start()
	if err != nil {
		l.stop()
		return fmt.Errorf("ui: start renderer: %w", err)
	}
	l.layout = layout
	l.state = StateRunning
	logs.LogV("[ui] loop started, %dx%d", layout.Screen.W, layout.Screen.H)

	now := l.clock.Now()
	if err := l.r.RenderDisplay(codec.Buffer{}); err != nil {
		l.stop()
		return fmt.Errorf("ui: display: %w", err)
	}
	if err := l.r.RenderOutput(nil); err != nil {
		l.stop()
		return fmt.Errorf("ui: output: %w", err)
	}
	if _, err := l.statsTask(now); err != nil {
		l.stop()
		return fmt.Errorf("ui: stats: %w", err)
	}
	if err := l.r.Flush(); err != nil {
		l.stop()
		return fmt.Errorf("ui: flush: %w", err)
	}
	return nil
}

// Tick runs every task once. It reports whether any task found work. Once the
// loop has stopped Tick does nothing.
func (l *Loop) Tick() (did bool, err error) {
	if l.state != StateRunning {
		return false, nil
	}
	defer l.guard(&err)

	now := l.clock.Now()
	l.rates.tick(RateMainloop, now)
	for _, t := range l.tasks {
		worked, err := t.run(now)
		if err != nil {
			l.stop()
			return did, fmt.Errorf("ui: %s: %w", t.name, err)
		}
		did = did || worked
		if l.state == StateStopped {
			l.stop()
			return did, nil
		}
	}
	if l.dirty {
		l.dirty = false
		if err := l.r.Flush(); err != nil {
			l.stop()
			return did, fmt.Errorf("ui: flush: %w", err)
		}
	}
	return did, nil
}

// Run starts the loop if needed and ticks it until it stops or ctx ends,
// idling briefly whenever a tick found nothing to do.
func (l *Loop) Run(ctx context.Context) error {
	if l.state == StateNotStarted {
		if err := l.Start(); err != nil {
			return err
		}
	}
	for {
		if ctx.Err() != nil {
			logs.LogV("[ui] loop cancelled: %v", context.Cause(ctx))
			l.Stop()
			return nil
		}
		did, err := l.Tick()
		if err != nil {
			return err
		}
		if l.state == StateStopped {
			return nil
		}
		if !did {
			l.clock.Sleep(l.opts.IdleSleep)
		}
	}
}

// Stop ends the loop and tears the terminal down.
func (l *Loop) Stop() {
	l.stop()
}

func (l *Loop) stop() {
	l.state = StateStopped
	l.teardownOnce.Do(func() {
		l.r.Teardown()
		logs.LogV("[ui] terminal restored")
	})
}

// guard restores the terminal when a task panics and re-raises the panic.
func (l *Loop) guard(err *error) {
	if p := recover(); p != nil {
		l.stop()
		panic(p)
	}
}

// skipDecodeError turns a malformed frame into "nothing this tick".
func skipDecodeError(err error) (bool, error) {
	var de *bus.DecodeError
	if errors.As(err, &de) {
		log.Printf("[ui] %v", err)
		return true, nil
	}
	return false, err
}

func (l *Loop) controlTask(now time.Time) (bool, error) {
	msg, ok, err := l.src.TryRecvControl()
	if err != nil {
		return skipDecodeError(err)
	}
	if !ok {
		return false, nil
	}
	if msg == bus.ControlStop {
		log.Printf("[ui] stop received")
		l.state = StateStopped
		return true, nil
	}
	log.Printf("[ui] ignoring control message %q", msg)
	return true, nil
}

func (l *Loop) displayTask(now time.Time) (bool, error) {
	buf, ok, err := l.src.TryRecvDisplay()
	if err != nil {
		return skipDecodeError(err)
	}
	if !ok {
		if l.pendingLEDs == nil || !l.limiter.AllowN(now, 1) {
			return false, nil
		}
		// the newest frame arrived too early to paint; show it now
		buf = *l.pendingLEDs
	} else if !l.limiter.AllowN(now, 1) {
		l.suppressed++
		l.pendingLEDs = &buf
		return true, nil
	}
	l.pendingLEDs = nil
	if err := l.r.RenderDisplay(buf); err != nil {
		return false, err
	}
	l.rates.tick(RateRender, now)
	l.dirty = true
	return true, nil
}

func (l *Loop) outputTask(now time.Time) (bool, error) {
	got := false
	for i := 0; i < outputBurst; i++ {
		text, ok, err := l.src.TryRecvOutput()
		if err != nil {
			if _, err := skipDecodeError(err); err != nil {
				return got, err
			}
			continue
		}
		if !ok {
			break
		}
		l.scroll.Append(text)
		got = true
	}
	if !got {
		return false, nil
	}
	if err := l.r.RenderOutput(l.scroll.Tail(l.layout.OutputLines())); err != nil {
		return true, err
	}
	l.rates.tick(RateOutput, now)
	l.dirty = true
	return true, nil
}

func (l *Loop) inputTask(now time.Time) (bool, error) {
	key, ok := l.r.PollKey()
	if !ok {
		return false, nil
	}
	switch key {
	case KeyLeft:
		return true, l.sendPress(button.NameA)
	case KeyRight:
		return true, l.sendPress(button.NameB)
	case KeyQuit:
		log.Printf("[ui] quit key, stopping device")
		if err := l.src.TrySendControl(bus.ControlStop); err != nil {
			log.Printf("[ui] send stop: %v", err)
		}
		l.state = StateStopped
		return true, nil
	}
	return true, nil
}

// sendPress never blocks the loop: with no device draining the input link
// the press is dropped once the queue is full.
func (l *Loop) sendPress(name string) error {
	err := l.src.TrySendInputEvent(codec.NewPress(name))
	if errors.Is(err, bus.ErrQueueFull) {
		l.droppedKeys++
		if l.droppedKeys == 1 || l.droppedKeys%100 == 0 {
			log.Printf("[ui] input queue full, %d key presses dropped", l.droppedKeys)
		}
		return nil
	}
	return err
}

func (l *Loop) statsTask(now time.Time) (bool, error) {
	if now.Before(l.nextStats) {
		return false, nil
	}
	l.nextStats = now.Add(l.opts.StatsInterval)
	l.rates.tick(RateStats, now)
	s := l.src.Stats()
	line := fmt.Sprintf("%s  %s, %s", now.Format("15:04:05"), l.rates, s)
	if detail := s.Detail(); detail != "" {
		line += " (" + detail + ")"
	}
	if err := l.r.RenderStats(line); err != nil {
		return false, err
	}
	l.dirty = true
	return true, nil
}
