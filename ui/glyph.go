package ui

import (
	"fmt"
	"math"

	"github.com/mattn/go-runewidth"

	"github.com/svanichkin/pixelsim/codec"
)

// ledGlyphs maps brightness 0..9 to block glyphs of strictly increasing fill.
var ledGlyphs = [codec.MaxBrightness + 1]rune{
	' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '▉', '█',
}

func clampLevel(v uint8) uint8 {
	if v > codec.MaxBrightness {
		return codec.MaxBrightness
	}
	return v
}

// Glyph returns the block glyph for brightness v.
func Glyph(v uint8) rune {
	return ledGlyphs[clampLevel(v)]
}

// Red returns the red channel for brightness v on a linear 0..255 ramp.
func Red(v uint8) uint8 {
	return uint8(math.Round(float64(clampLevel(v)) * 255 / codec.MaxBrightness))
}

// RedHex is Red as a #rrggbb colour.
func RedHex(v uint8) string {
	return fmt.Sprintf("#%02x0000", Red(v))
}

// fitWidth truncates s to width display cells and pads it with spaces.
func fitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}
