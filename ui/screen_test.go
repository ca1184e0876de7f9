package ui

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/require"

	"github.com/svanichkin/pixelsim/codec"
)

func TestScreenRendererPaintsCells(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	r := newScreenRenderer(sim)
	layout, err := r.Start()
	require.NoError(t, err)
	defer r.Teardown()

	var buf codec.Buffer
	buf[2][3] = 9
	buf[4][4] = 4
	require.NoError(t, r.RenderDisplay(buf))
	require.NoError(t, r.RenderOutput([]string{"hi"}))
	require.NoError(t, r.RenderStats("stats"))
	require.NoError(t, r.Flush())

	cells, w, _ := sim.GetContents()
	at := func(col, row int) rune {
		c := cells[row*w+col]
		if len(c.Runes) == 0 {
			return ' '
		}
		return c.Runes[0]
	}
	col, row := layout.LEDCell(3, 2)
	require.Equal(t, '█', at(col, row))
	col, row = layout.LEDCell(4, 4)
	require.Equal(t, '▄', at(col, row))
	require.Equal(t, 'h', at(layout.Output.X+1, layout.Output.Y+1))
	require.Equal(t, 's', at(0, layout.Stats.Y))
	require.Equal(t, boxTopLeft, at(layout.LEDs.X, layout.LEDs.Y))
}

func TestScreenRendererKeys(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	r := newScreenRenderer(sim)
	_, err := r.Start()
	require.NoError(t, err)
	defer r.Teardown()

	sim.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	sim.InjectKey(tcell.KeyLeft, 0, tcell.ModNone)
	sim.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	var got []Key
	require.Eventually(t, func() bool {
		if k, ok := r.PollKey(); ok {
			got = append(got, k)
		}
		return len(got) == 2
	}, time.Second, time.Millisecond)
	require.Equal(t, []Key{KeyLeft, KeyQuit}, got)
}

func TestNewRendererRejectsUnknownKind(t *testing.T) {
	_, err := NewRenderer("vt100")
	require.ErrorContains(t, err, "unknown renderer")
}
