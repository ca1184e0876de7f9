package ui

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/svanichkin/pixelsim/codec"
)

func TestComputeLayout(t *testing.T) {
	l, err := ComputeLayout(80, 24)
	require.NoError(t, err)
	require.Equal(t, Rect{X: 0, Y: 0, W: 21, H: 11}, l.Device)
	require.Equal(t, Rect{X: 4, Y: 2, W: 13, H: 7}, l.LEDs)
	require.Equal(t, Rect{X: 0, Y: 11, W: 80, H: 12}, l.Output)
	require.Equal(t, Rect{X: 0, Y: 23, W: 80, H: 1}, l.Stats)
	require.Equal(t, 10, l.OutputLines())
	require.Equal(t, 78, l.OutputWidth())

	col, row := l.LEDCell(0, 0)
	require.Equal(t, [2]int{6, 3}, [2]int{col, row})
	col, row = l.LEDCell(codec.Cols-1, codec.Rows-1)
	require.Equal(t, [2]int{14, 7}, [2]int{col, row})
	require.Less(t, col, l.LEDs.X2()-1)
	require.Less(t, row, l.LEDs.Y2()-1)
}

func TestComputeLayoutTooSmall(t *testing.T) {
	for _, size := range [][2]int{{20, 24}, {80, 14}, {0, 0}} {
		_, err := ComputeLayout(size[0], size[1])
		require.ErrorIs(t, err, ErrTooSmall, "%v", size)
	}
	_, err := ComputeLayout(21, 15)
	require.NoError(t, err)
}

func TestBorderCells(t *testing.T) {
	cells := map[[2]int]rune{}
	borderCells(Rect{X: 1, Y: 1, W: 4, H: 3}, func(c, r int, ch rune) { cells[[2]int{c, r}] = ch })
	require.Len(t, cells, 10)
	require.Equal(t, boxTopLeft, cells[[2]int{1, 1}])
	require.Equal(t, boxBottomRight, cells[[2]int{4, 3}])
	require.Equal(t, boxVertical, cells[[2]int{4, 2}])
	require.Equal(t, boxHorizontal, cells[[2]int{2, 1}])
}

func TestGlyphsAreStrictlyMonotonic(t *testing.T) {
	seen := map[rune]bool{}
	for v := uint8(0); v <= codec.MaxBrightness; v++ {
		g := Glyph(v)
		require.False(t, seen[g], "glyph %q repeats at level %d", g, v)
		seen[g] = true
		if v > 0 {
			require.Greater(t, Red(v), Red(v-1))
		}
	}
	require.Equal(t, ' ', Glyph(0))
	require.Equal(t, '█', Glyph(9))
	require.Equal(t, '█', Glyph(200))
	require.EqualValues(t, 0, Red(0))
	require.EqualValues(t, 142, Red(5))
	require.EqualValues(t, 255, Red(9))
	require.Equal(t, "#ff0000", RedHex(9))
}

func TestFitWidth(t *testing.T) {
	require.Equal(t, "ab   ", fitWidth("ab", 5))
	require.Equal(t, "abcd…", fitWidth("abcdefgh", 5))
	require.Equal(t, "日本 ", fitWidth("日本", 5))
	require.Equal(t, "", fitWidth("x", 0))
}

func TestScrollbackContinuesAndEvicts(t *testing.T) {
	s := NewScrollback(0)
	s.Append("par")
	s.Append("tial\nnext\tline\r\n")
	require.Equal(t, []string{"partial", "next    line"}, s.Tail(5))

	s = NewScrollback(DefaultScrollback)
	for i := 0; i < 1500; i++ {
		s.Append(fmt.Sprintf("%d\n", i))
	}
	require.Equal(t, DefaultScrollback, s.Len())
	require.Equal(t, []string{"1497", "1498", "1499"}, s.Tail(3))
	require.Len(t, s.Tail(5000), DefaultScrollback-1)
	require.Nil(t, s.Tail(0))
}

func TestScrollbackDropsEscapes(t *testing.T) {
	s := NewScrollback(0)
	s.Append("a\x1b[31mred\x1b[0m\a\rb\n")
	s.Append("\x1b[2J\x1b[Hclear\x7fme\x1b]0;title\x07\n")
	require.Equal(t, []string{"aredb", "clearme"}, s.Tail(5))
}
