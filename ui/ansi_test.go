package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/svanichkin/pixelsim/codec"
)

func TestANSIRendererPaintsAndRestores(t *testing.T) {
	var out bytes.Buffer
	size := func() (int, int, error) { return 80, 24, nil }
	r := newANSIRenderer(strings.NewReader(""), -1, &out, size, termenv.TrueColor)

	layout, err := r.Start()
	require.NoError(t, err)
	require.Equal(t, 80, layout.Screen.W)

	var buf codec.Buffer
	buf[0][0] = 9
	require.NoError(t, r.RenderDisplay(buf))
	require.NoError(t, r.RenderOutput([]string{"hello"}))
	require.NoError(t, r.RenderStats("render: 60.00/s"))
	require.NoError(t, r.Flush())

	s := out.String()
	require.True(t, strings.HasPrefix(s, "\x1b[?1049h"))
	require.Contains(t, s, "\x1b[38;2;255;0;0m█")
	require.Contains(t, s, "\x1b[4;7H", "LED (0,0) sits at row 4, col 7")
	require.Contains(t, s, "hello")
	require.Contains(t, s, "render: 60.00/s")
	require.Contains(t, s, "╭")

	out.Reset()
	require.NoError(t, r.Flush())
	require.Zero(t, out.Len(), "nothing painted, nothing written")

	r.Teardown()
	r.Teardown()
	require.Equal(t, 1, strings.Count(out.String(), "\x1b[?1049l"))
}

func TestANSIRendererTooSmall(t *testing.T) {
	var out bytes.Buffer
	r := newANSIRenderer(nil, -1, &out, func() (int, int, error) { return 10, 5, nil }, termenv.Ascii)
	_, err := r.Start()
	require.ErrorIs(t, err, ErrTooSmall)
	r.Teardown()
	require.Zero(t, out.Len(), "terminal never switched, nothing to restore")
}

func TestReadKeys(t *testing.T) {
	keys := make(chan Key, 16)
	readKeys(strings.NewReader("x\x1b[D\x1b[A\x1bOCq\x03"), keys)
	var got []Key
	for k := range keys {
		got = append(got, k)
	}
	require.Equal(t, []Key{KeyLeft, KeyRight, KeyQuit, KeyQuit}, got)
}

func TestANSIRendererPollKey(t *testing.T) {
	var out bytes.Buffer
	r := newANSIRenderer(strings.NewReader("\x1b[C"), -1, &out, func() (int, int, error) { return 80, 24, nil }, termenv.Ascii)
	_, err := r.Start()
	require.NoError(t, err)
	defer r.Teardown()

	var got Key
	require.Eventually(t, func() bool {
		k, ok := r.PollKey()
		if ok {
			got = k
		}
		return ok
	}, time.Second, time.Millisecond)
	require.Equal(t, KeyRight, got)
}
