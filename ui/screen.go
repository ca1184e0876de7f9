package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/svanichkin/pixelsim/codec"
)

// ScreenRenderer paints on a full-screen tcell surface.
type ScreenRenderer struct {
	screen   tcell.Screen
	events   chan tcell.Event
	layout   Layout
	stats    string
	output   []string
	leds     codec.Buffer
	started  bool
	finished bool
}

// NewScreenRenderer opens the process terminal as a tcell screen.
func NewScreenRenderer() (*ScreenRenderer, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to create screen: %w", err)
	}
	return newScreenRenderer(s), nil
}

func newScreenRenderer(s tcell.Screen) *ScreenRenderer {
	return &ScreenRenderer{screen: s, events: make(chan tcell.Event, 100)}
}

var (
	frameStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	statsStyle = tcell.StyleDefault.Dim(true)
)

func (r *ScreenRenderer) Start() (Layout, error) {
	if err := r.screen.Init(); err != nil {
		return Layout{}, fmt.Errorf("failed to initialize screen: %w", err)
	}
	r.started = true
	r.screen.HideCursor()
	cols, rows := r.screen.Size()
	layout, err := ComputeLayout(cols, rows)
	if err != nil {
		return Layout{}, err
	}
	r.layout = layout
	r.drawFrame()
	go r.handleEvents()
	return layout, nil
}

func (r *ScreenRenderer) drawFrame() {
	r.screen.Clear()
	set := func(col, row int, ch rune) {
		r.screen.SetContent(col, row, ch, nil, frameStyle)
	}
	borderCells(r.layout.Device, set)
	borderCells(r.layout.LEDs, set)
	borderCells(r.layout.Output, set)
}

func (r *ScreenRenderer) handleEvents() {
	for {
		ev := r.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case r.events <- ev:
		default:
			// event channel is full, drop event
		}
	}
}

func (r *ScreenRenderer) RenderDisplay(buf codec.Buffer) error {
	r.leds = buf
	for y := 0; y < codec.Rows; y++ {
		for x := 0; x < codec.Cols; x++ {
			v := buf[y][x]
			col, row := r.layout.LEDCell(x, y)
			style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(Red(v)), 0, 0))
			r.screen.SetContent(col, row, Glyph(v), nil, style)
		}
	}
	return nil
}

func (r *ScreenRenderer) RenderOutput(lines []string) error {
	r.output = lines
	width := r.layout.OutputWidth()
	for i := 0; i < r.layout.OutputLines(); i++ {
		line := ""
		if i < len(lines) {
			line = lines[i]
		}
		r.drawText(r.layout.Output.X+1, r.layout.Output.Y+1+i, fitWidth(line, width), tcell.StyleDefault)
	}
	return nil
}

func (r *ScreenRenderer) RenderStats(line string) error {
	r.stats = line
	r.drawText(r.layout.Stats.X, r.layout.Stats.Y, fitWidth(line, r.layout.Stats.W), statsStyle)
	return nil
}

func (r *ScreenRenderer) drawText(col, row int, s string, style tcell.Style) {
	for _, ch := range s {
		r.screen.SetContent(col, row, ch, nil, style)
		col += max(runewidth.RuneWidth(ch), 1)
	}
}

func (r *ScreenRenderer) PollKey() (Key, bool) {
	for {
		var ev tcell.Event
		select {
		case ev = <-r.events:
		default:
			return KeyNone, false
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyLeft:
				return KeyLeft, true
			case tcell.KeyRight:
				return KeyRight, true
			case tcell.KeyCtrlC, tcell.KeyEscape:
				return KeyQuit, true
			case tcell.KeyRune:
				if ev.Rune() == 'q' || ev.Rune() == 'Q' {
					return KeyQuit, true
				}
			}
		case *tcell.EventResize:
			r.relayout()
		}
	}
}

// relayout redraws everything after a resize. A terminal shrunk below the
// minimum keeps the previous layout.
func (r *ScreenRenderer) relayout() {
	cols, rows := r.screen.Size()
	layout, err := ComputeLayout(cols, rows)
	if err != nil {
		r.screen.Sync()
		return
	}
	r.layout = layout
	r.drawFrame()
	_ = r.RenderDisplay(r.leds)
	_ = r.RenderOutput(r.output)
	_ = r.RenderStats(r.stats)
	r.screen.Sync()
}

func (r *ScreenRenderer) Flush() error {
	r.screen.Show()
	return nil
}

func (r *ScreenRenderer) Teardown() {
	if r.finished {
		return
	}
	r.finished = true
	if r.started {
		r.screen.Fini()
	}
}
