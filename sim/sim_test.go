package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svanichkin/pixelsim/bus"
	"github.com/svanichkin/pixelsim/button"
	"github.com/svanichkin/pixelsim/codec"
	"github.com/svanichkin/pixelsim/network"
)

type fakeBus struct {
	mu       sync.Mutex
	frames   []codec.Buffer
	controls []string
	events   chan codec.InputEvent
	incoming chan string
}

func newFakeBus() *fakeBus {
	return &fakeBus{events: make(chan codec.InputEvent, 8), incoming: make(chan string, 4)}
}

func (f *fakeBus) RecvControl(ctx context.Context) (string, error) {
	select {
	case msg := <-f.incoming:
		return msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeBus) SendDisplay(buf codec.Buffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, buf)
	return nil
}

func (f *fakeBus) SendControl(msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, msg)
	return nil
}

func (f *fakeBus) RecvInputEvent(ctx context.Context) (codec.InputEvent, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	case <-ctx.Done():
		return codec.InputEvent{}, ctx.Err()
	}
}

func (f *fakeBus) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestDisplayPublishesSnapshots(t *testing.T) {
	var got []codec.Buffer
	d := NewDisplay(func(b codec.Buffer) { got = append(got, b) })

	require.NoError(t, d.SetPixel(1, 2, 7))
	require.NoError(t, d.SetPixel(4, 0, 9))
	require.Len(t, got, 2)
	assert.EqualValues(t, 7, got[0][2][1])
	assert.EqualValues(t, 0, got[0][0][4], "earlier snapshot must not see later writes")
	assert.EqualValues(t, 9, got[1][0][4])

	v, err := d.GetPixel(1, 2)
	require.NoError(t, err)
	require.Equal(t, 7, v)

	d.Off()
	require.False(t, d.IsOn())
	require.Equal(t, codec.Buffer{}, got[len(got)-1])
	d.On()
	require.Equal(t, d.Snapshot(), got[len(got)-1])

	require.NoError(t, d.Fill(3))
	d.Clear()
	require.Equal(t, codec.Buffer{}, d.Snapshot())
}

func TestDisplayRejectsBadInput(t *testing.T) {
	calls := 0
	d := NewDisplay(func(codec.Buffer) { calls++ })

	require.ErrorIs(t, d.SetPixel(0, 0, 10), ErrBrightness)
	require.ErrorIs(t, d.SetPixel(0, 0, -1), ErrBrightness)
	require.ErrorIs(t, d.SetPixel(5, 0, 1), ErrPosition)
	require.ErrorIs(t, d.Fill(12), ErrBrightness)
	var bad codec.Buffer
	bad[2][2] = 200
	require.ErrorIs(t, d.Show(bad), ErrBrightness)
	_, err := d.GetPixel(0, -1)
	require.ErrorIs(t, err, ErrPosition)
	require.Zero(t, calls)
}

func TestInputWatcherPressesButtons(t *testing.T) {
	fb := newFakeBus()
	s := New(fb)
	s.Start(context.Background())
	t.Cleanup(func() { s.Stop() })

	released := make(chan struct{}, 4)
	s.ButtonB.Subscribe(func(ev button.Event) {
		if !ev.Pressed {
			released <- struct{}{}
		}
	})

	fb.events <- codec.InputEvent{Name: "button_c", Transition: codec.TransitionPress}
	fb.events <- codec.InputEvent{Name: button.NameB, Transition: "hold"}
	fb.events <- codec.NewPress(button.NameB)

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("press never reached button B")
	}
	require.Equal(t, 1, s.ButtonB.GetPresses())
	require.Zero(t, s.ButtonA.GetPresses())
}

func TestStopSendsStopOnce(t *testing.T) {
	fb := newFakeBus()
	s := New(fb)
	s.Start(context.Background())

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	require.Equal(t, []string{bus.ControlStop}, fb.controls)
	require.ErrorIs(t, s.Sleep(1000), context.Canceled)
}

func TestRendererStopEndsRun(t *testing.T) {
	fb := newFakeBus()
	s := New(fb)
	s.Start(context.Background())

	fb.incoming <- "reboot"
	fb.incoming <- bus.ControlStop
	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stop from the renderer was ignored")
	}
	require.True(t, s.StoppedByPeer())
	require.NoError(t, s.Stop())
	require.Empty(t, fb.controls, "renderer already stopped, nothing to send")
}

func TestButtonRoundTripOverBus(t *testing.T) {
	tr := network.NewTransport()
	at := func(link string) network.Address {
		return network.MustParseAddress("inproc://roundtrip-" + link)
	}
	addrs := bus.Addrs{
		Display: at(bus.LinkDisplay),
		Control: at(bus.LinkControl),
		Input:   at(bus.LinkInput),
		Output:  at(bus.LinkOutput),
	}
	deviceBus := bus.New(bus.SideDevice, addrs, tr)
	rendererBus := bus.New(bus.SideRenderer, addrs, tr)
	t.Cleanup(func() {
		rendererBus.Close()
		deviceBus.Close()
	})

	s := New(deviceBus)
	s.Start(context.Background())

	released := make(chan struct{}, 1)
	s.ButtonA.Subscribe(func(ev button.Event) {
		if !ev.Pressed {
			released <- struct{}{}
		}
	})

	require.NoError(t, rendererBus.SendInputEvent(codec.NewPress(button.NameA)))
	select {
	case <-released:
	case <-time.After(3 * time.Second):
		t.Fatal("input event never arrived")
	}
	require.True(t, s.ButtonA.WasPressed())
	require.False(t, s.ButtonA.WasPressed())

	require.NoError(t, s.Stop())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	msg, err := rendererBus.RecvControl(ctx)
	require.NoError(t, err)
	require.Equal(t, bus.ControlStop, msg)
}

func TestScriptLevelsStayInRange(t *testing.T) {
	for _, offset := range []float64{0, 0.25, 0.5, 1.7, 13.2, -3} {
		for x := 0; x < codec.Cols; x++ {
			for y := 0; y < codec.Rows; y++ {
				s := SineLevel(x, y, offset)
				g := GradientLevel(x, y, offset)
				assert.True(t, s >= 0 && s <= codec.MaxBrightness, "sine %d at %v", s, offset)
				assert.True(t, g >= 0 && g <= codec.MaxBrightness, "gradient %d at %v", g, offset)
			}
		}
	}
	require.Equal(t, 0, GradientLevel(0, 0, 0))
	require.Equal(t, 2, GradientLevel(1, 0, 0))
}

func TestRunStopsCleanly(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			fb := newFakeBus()
			s := New(fb)
			s.Start(context.Background())
			script, err := Lookup(name)
			require.NoError(t, err)

			done := make(chan error, 1)
			go func() { done <- Run(s, script) }()
			require.Eventually(t, func() bool { return fb.frameCount() > 0 }, 2*time.Second, 5*time.Millisecond)
			require.NoError(t, s.Stop())
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("script ignored stop")
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("tetris")
	require.ErrorContains(t, err, "unknown script")
	require.Equal(t, []string{"buttons", "gradient", "sine"}, Names())
}
