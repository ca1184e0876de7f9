package button

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPressAccounting(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 100} {
		b := New(NameA)
		for i := 0; i < n; i++ {
			b.Press()
		}
		require.Equal(t, n, b.GetPresses(), "presses=%d", n)
		require.Zero(t, b.GetPresses())
		require.False(t, b.IsPressed())
	}
}

func TestWasPressedResets(t *testing.T) {
	b := New(NameB)
	require.False(t, b.WasPressed())
	b.Press()
	b.Press()
	require.True(t, b.WasPressed())
	require.False(t, b.WasPressed())
	require.Zero(t, b.GetPresses())
}

func TestPressWhileHeldStillCounts(t *testing.T) {
	b := New(NameA)
	b.Down()
	require.True(t, b.IsPressed())
	b.Press()
	require.False(t, b.IsPressed())
	b.Down()
	b.Down()
	require.Equal(t, 4, b.GetPresses())
	require.True(t, b.IsPressed())
	b.Up()
	require.False(t, b.IsPressed())
}

func TestConcurrentPresses(t *testing.T) {
	b := New(NameA)
	var wg sync.WaitGroup
	total := 0
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			n := b.GetPresses()
			mu.Lock()
			total += n
			mu.Unlock()
		}
	}()
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				b.Press()
			}
		}()
	}
	wg.Wait()
	<-done
	total += b.GetPresses()
	require.Equal(t, 8*250, total)
}

func TestSubscribeContainsPanics(t *testing.T) {
	b := New(NameA)
	var events []Event
	b.Subscribe(func(Event) { panic("listener bug") })
	cancel := b.Subscribe(func(ev Event) { events = append(events, ev) })

	b.Press()
	require.Len(t, events, 2)
	assert.Equal(t, Event{Name: NameA, Pressed: true, Pending: 1}, events[0])
	assert.Equal(t, Event{Name: NameA, Pressed: false, Pending: 1}, events[1])

	cancel()
	b.Press()
	require.Len(t, events, 2)
	require.Equal(t, 2, b.GetPresses())
}

func TestNewRejectsEmptyName(t *testing.T) {
	require.Panics(t, func() { New("") })
}
