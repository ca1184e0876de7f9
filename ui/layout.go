package ui

import (
	"errors"
	"fmt"
)

// Rect is a region of the terminal in zero-based cells.
type Rect struct {
	X, Y int
	W, H int
}

func (r Rect) X2() int { return r.X + r.W }
func (r Rect) Y2() int { return r.Y + r.H }

// Layout splits the terminal into the device box, the scrolling output pane
// and the stats line at the bottom.
type Layout struct {
	Screen Rect
	Device Rect
	LEDs   Rect
	Output Rect
	Stats  Rect
}

var ErrTooSmall = errors.New("ui: terminal too small")

// Fixed LED box geometry: five LEDs two cells apart inside a border.
const (
	ledBoxX = 4
	ledBoxY = 2
	ledBoxW = 13
	ledBoxH = 7
)

const minOutputHeight = 3

// ComputeLayout derives the regions for a cols x rows terminal.
func ComputeLayout(cols, rows int) (Layout, error) {
	leds := Rect{X: ledBoxX, Y: ledBoxY, W: ledBoxW, H: ledBoxH}
	dev := Rect{X: 0, Y: 0, W: leds.W + 2*leds.X, H: leds.H + 2*leds.Y}
	if cols < dev.W || rows < dev.H+minOutputHeight+1 {
		return Layout{}, fmt.Errorf("%w: %dx%d, need at least %dx%d",
			ErrTooSmall, cols, rows, dev.W, dev.H+minOutputHeight+1)
	}
	return Layout{
		Screen: Rect{W: cols, H: rows},
		Device: dev,
		LEDs:   leds,
		Output: Rect{X: 0, Y: dev.Y2(), W: cols, H: rows - dev.H - 1},
		Stats:  Rect{X: 0, Y: rows - 1, W: cols, H: 1},
	}, nil
}

// LEDCell returns the screen cell of LED (x, y).
func (l Layout) LEDCell(x, y int) (col, row int) {
	return l.LEDs.X + x*2 + 2, l.LEDs.Y + y + 1
}

// OutputLines is how many scroll-back lines fit inside the output border.
func (l Layout) OutputLines() int {
	return max(l.Output.H-2, 0)
}

// OutputWidth is the usable width inside the output border.
func (l Layout) OutputWidth() int {
	return max(l.Output.W-2, 0)
}

// Rounded box-drawing runes for region borders.
const (
	boxTopLeft     = '╭'
	boxTopRight    = '╮'
	boxBottomRight = '╯'
	boxBottomLeft  = '╰'
	boxVertical    = '│'
	boxHorizontal  = '─'
)

// borderCells calls set for every cell of the border of r.
func borderCells(r Rect, set func(col, row int, ch rune)) {
	if r.W < 2 || r.H < 2 {
		return
	}
	right, bottom := r.X2()-1, r.Y2()-1
	for c := r.X + 1; c < right; c++ {
		set(c, r.Y, boxHorizontal)
		set(c, bottom, boxHorizontal)
	}
	for row := r.Y + 1; row < bottom; row++ {
		set(r.X, row, boxVertical)
		set(right, row, boxVertical)
	}
	set(r.X, r.Y, boxTopLeft)
	set(right, r.Y, boxTopRight)
	set(right, bottom, boxBottomRight)
	set(r.X, bottom, boxBottomLeft)
}
