package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/svanichkin/pixelsim/codec"
)

// Key is a recognised key press.
type Key int

const (
	KeyNone Key = iota
	KeyLeft
	KeyRight
	KeyQuit
)

func (k Key) String() string {
	switch k {
	case KeyLeft:
		return "left"
	case KeyRight:
		return "right"
	case KeyQuit:
		return "quit"
	default:
		return "none"
	}
}

// Renderer is a terminal surface the loop paints on. All methods are called
// from the loop goroutine only. Teardown must restore the terminal and be
// safe to call before Start or more than once.
type Renderer interface {
	Start() (Layout, error)
	RenderDisplay(buf codec.Buffer) error
	RenderOutput(lines []string) error
	RenderStats(line string) error
	PollKey() (Key, bool)
	Flush() error
	Teardown()
}

// Renderer variants.
const (
	RendererANSI   = "ansi"
	RendererScreen = "screen"
)

// RendererKinds lists the accepted renderer names.
var RendererKinds = []string{RendererANSI, RendererScreen}

// NewRenderer builds the renderer named kind on the process terminal.
func NewRenderer(kind string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", RendererANSI:
		return NewANSIRenderer(os.Stdin, os.Stdout), nil
	case RendererScreen:
		return NewScreenRenderer()
	default:
		return nil, fmt.Errorf("ui: unknown renderer %q (want %s)", kind, strings.Join(RendererKinds, " or "))
	}
}
