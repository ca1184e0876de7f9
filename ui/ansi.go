package ui

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"

	"github.com/svanichkin/pixelsim/codec"
	"github.com/svanichkin/pixelsim/device"
	"github.com/svanichkin/pixelsim/logs"
)

// ANSIRenderer paints with raw escape sequences on the alternate screen.
// Paint calls build up a frame that Flush writes in one synchronized update.
type ANSIRenderer struct {
	in      io.Reader
	inFd    int // -1 when input is not a terminal
	out     io.Writer
	size    func() (cols, rows int, err error)
	profile termenv.Profile

	frame bytes.Buffer
	tout  *termenv.Output

	layout   Layout
	keys     chan Key
	restores []func()
	started  bool
	finished bool
}

// NewANSIRenderer draws on out and reads keys from in.
func NewANSIRenderer(in, out *os.File) *ANSIRenderer {
	fd := -1
	if device.IsTerminal(in) {
		fd = int(in.Fd())
	}
	size := func() (int, int, error) { return device.TermSize(out) }
	return newANSIRenderer(in, fd, out, size, termenv.NewOutput(out).EnvColorProfile())
}

func newANSIRenderer(in io.Reader, inFd int, out io.Writer, size func() (int, int, error), profile termenv.Profile) *ANSIRenderer {
	r := &ANSIRenderer{
		in:      in,
		inFd:    inFd,
		out:     out,
		size:    size,
		profile: profile,
		keys:    make(chan Key, 16),
	}
	r.tout = termenv.NewOutput(&r.frame, termenv.WithProfile(profile))
	return r
}

func (r *ANSIRenderer) Start() (Layout, error) {
	cols, rows, err := r.size()
	if err != nil {
		return Layout{}, fmt.Errorf("terminal size: %w", err)
	}
	layout, err := ComputeLayout(cols, rows)
	if err != nil {
		return Layout{}, err
	}
	r.layout = layout

	r.restores = append(r.restores, device.PrepareConsole())
	if r.inFd >= 0 {
		restore, err := prepareTTY(r.inFd)
		if err != nil {
			logs.LogV("[ui] raw input unavailable: %v", err)
		} else {
			r.restores = append(r.restores, restore)
		}
	}
	if err := device.EnterAltScreen(r.out); err != nil {
		return Layout{}, err
	}
	r.started = true
	if r.in != nil {
		go readKeys(r.in, r.keys)
	}

	r.tout.ClearScreen()
	set := func(col, row int, ch rune) {
		r.tout.MoveCursor(row+1, col+1)
		r.frame.WriteRune(ch)
	}
	borderCells(layout.Device, set)
	borderCells(layout.LEDs, set)
	borderCells(layout.Output, set)
	return layout, nil
}

func (r *ANSIRenderer) RenderDisplay(buf codec.Buffer) error {
	for y := 0; y < codec.Rows; y++ {
		for x := 0; x < codec.Cols; x++ {
			v := buf[y][x]
			col, row := r.layout.LEDCell(x, y)
			r.tout.MoveCursor(row+1, col+1)
			r.frame.WriteString(r.tout.String(string(Glyph(v))).Foreground(r.tout.Color(RedHex(v))).String())
		}
	}
	return nil
}

func (r *ANSIRenderer) RenderOutput(lines []string) error {
	width := r.layout.OutputWidth()
	for i := 0; i < r.layout.OutputLines(); i++ {
		line := ""
		if i < len(lines) {
			line = lines[i]
		}
		r.tout.MoveCursor(r.layout.Output.Y+2+i, r.layout.Output.X+2)
		r.frame.WriteString(fitWidth(line, width))
	}
	return nil
}

func (r *ANSIRenderer) RenderStats(line string) error {
	r.tout.MoveCursor(r.layout.Stats.Y+1, r.layout.Stats.X+1)
	r.frame.WriteString(r.tout.String(fitWidth(line, r.layout.Stats.W)).Faint().String())
	return nil
}

func (r *ANSIRenderer) PollKey() (Key, bool) {
	select {
	case k, ok := <-r.keys:
		return k, ok
	default:
		return KeyNone, false
	}
}

func (r *ANSIRenderer) Flush() error {
	if r.frame.Len() == 0 {
		return nil
	}
	_, err := r.out.Write(device.Synced(r.frame.Bytes()))
	r.frame.Reset()
	return err
}

func (r *ANSIRenderer) Teardown() {
	if r.finished {
		return
	}
	r.finished = true
	r.frame.Reset()
	if r.started {
		_ = device.ExitAltScreen(r.out)
	}
	for i := len(r.restores) - 1; i >= 0; i-- {
		r.restores[i]()
	}
	r.restores = nil
}

// readKeys decodes arrow keys and the quit keys from in until it fails.
func readKeys(in io.Reader, keys chan<- Key) {
	defer close(keys)
	br := bufio.NewReader(in)
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		var k Key
		switch b {
		case 0x1b: // ESC [ C / ESC O C and friends
			next, err := br.ReadByte()
			if err != nil {
				return
			}
			if next != '[' && next != 'O' {
				continue
			}
			final, err := br.ReadByte()
			if err != nil {
				return
			}
			switch final {
			case 'D':
				k = KeyLeft
			case 'C':
				k = KeyRight
			}
		case 'q', 'Q', 0x03:
			k = KeyQuit
		}
		if k == KeyNone {
			continue
		}
		select {
		case keys <- k:
		default:
			// nobody is polling fast enough, drop the key
		}
	}
}
