// Package sim is the device side of the simulator: the virtual display and
// buttons a script drives, wired to the bus.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/svanichkin/pixelsim/bus"
	"github.com/svanichkin/pixelsim/button"
	"github.com/svanichkin/pixelsim/codec"
	"github.com/svanichkin/pixelsim/logs"
)

// Bus is what the simulator needs from the device side of the bus.
type Bus interface {
	SendDisplay(buf codec.Buffer) error
	SendControl(msg string) error
	RecvControl(ctx context.Context) (string, error)
	RecvInputEvent(ctx context.Context) (codec.InputEvent, error)
}

// Simulator owns the virtual device for one run of a script.
type Simulator struct {
	Display *Display
	ButtonA *button.Button
	ButtonB *button.Button

	bus   Bus
	start time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	displayErrOnce sync.Once
	stopOnce       sync.Once
	stopErr        error
	peerStopped    atomic.Bool
}

// New builds the device around b. Display changes are published immediately;
// input is only consumed once Start runs.
func New(b Bus) *Simulator {
	s := &Simulator{
		ButtonA: button.New(button.NameA),
		ButtonB: button.New(button.NameB),
		bus:     b,
		start:   time.Now(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.Display = NewDisplay(s.publish)
	return s
}

func (s *Simulator) publish(buf codec.Buffer) {
	if err := s.bus.SendDisplay(buf); err != nil {
		s.displayErrOnce.Do(func() { log.Printf("[sim] display update: %v", err) })
	}
}

// Start launches the input watcher. It stops with ctx or Stop.
func (s *Simulator) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.cancel()
		case <-s.ctx.Done():
		}
	}()
	s.wg.Add(2)
	go s.watchInput()
	go s.watchControl()
	logs.LogV("[sim] started")
}

// Context is cancelled when the simulator stops.
func (s *Simulator) Context() context.Context { return s.ctx }

// Button returns the button with the given event name, or nil.
func (s *Simulator) Button(name string) *button.Button {
	switch name {
	case s.ButtonA.Name():
		return s.ButtonA
	case s.ButtonB.Name():
		return s.ButtonB
	}
	return nil
}

func (s *Simulator) watchInput() {
	defer s.wg.Done()
	for {
		ev, err := s.bus.RecvInputEvent(s.ctx)
		if err != nil {
			var de *bus.DecodeError
			if errors.As(err, &de) {
				log.Printf("[sim] %v", err)
				continue
			}
			if s.ctx.Err() == nil {
				log.Printf("[sim] input watcher: %v", err)
			}
			return
		}
		logs.LogV("[sim] input event %s", ev)
		b := s.Button(ev.Name)
		if b == nil {
			log.Printf("[sim] no button named %q", ev.Name)
			continue
		}
		if ev.Transition != codec.TransitionPress {
			log.Printf("[sim] unknown transition %q for %s", ev.Transition, ev.Name)
			continue
		}
		b.Press()
	}
}

// watchControl ends the run when the renderer asks the device to stop.
func (s *Simulator) watchControl() {
	defer s.wg.Done()
	for {
		msg, err := s.bus.RecvControl(s.ctx)
		if err != nil {
			var de *bus.DecodeError
			if errors.As(err, &de) {
				log.Printf("[sim] %v", err)
				continue
			}
			if s.ctx.Err() == nil {
				log.Printf("[sim] control watcher: %v", err)
			}
			return
		}
		if msg != bus.ControlStop {
			log.Printf("[sim] ignoring control message %q", msg)
			continue
		}
		logs.LogV("[sim] renderer asked to stop")
		s.peerStopped.Store(true)
		s.cancel()
		return
	}
}

// StoppedByPeer reports whether the renderer ended the run.
func (s *Simulator) StoppedByPeer() bool { return s.peerStopped.Load() }

// RunningTime returns the milliseconds elapsed since the simulator was built.
func (s *Simulator) RunningTime() int64 {
	return time.Since(s.start).Milliseconds()
}

// Sleep pauses the script for ms milliseconds. It returns early with the
// context error once the simulator stops.
func (s *Simulator) Sleep(ms int) error {
	if ms <= 0 {
		return s.ctx.Err()
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Stop tells the renderer to shut down and ends the watchers. Only the first
// call does anything. A renderer that already stopped is not told again.
func (s *Simulator) Stop() error {
	s.stopOnce.Do(func() {
		if !s.peerStopped.Load() {
			if err := s.bus.SendControl(bus.ControlStop); err != nil {
				s.stopErr = fmt.Errorf("sim: send stop: %w", err)
			}
		}
		s.cancel()
		s.wg.Wait()
		logs.LogV("[sim] stopped")
	})
	return s.stopErr
}
