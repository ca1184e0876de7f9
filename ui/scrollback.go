package ui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// DefaultScrollback is the number of output lines kept for the pane.
const DefaultScrollback = 1000

// Scrollback keeps the most recent lines of relayed output. Text without a
// trailing newline leaves its last line open; the next chunk continues it.
type Scrollback struct {
	lines []string
	max   int
}

// NewScrollback keeps at most max lines.
func NewScrollback(max int) *Scrollback {
	if max <= 0 {
		max = DefaultScrollback
	}
	return &Scrollback{lines: []string{""}, max: max}
}

// Append adds a chunk of output. Escape sequences and control characters are
// dropped so relayed text cannot move the cursor or restyle the screen.
func (s *Scrollback) Append(text string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	s.lines[len(s.lines)-1] += clean(parts[0])
	for _, p := range parts[1:] {
		s.lines = append(s.lines, clean(p))
	}
	if over := len(s.lines) - s.max; over > 0 {
		// copy to let the evicted prefix be collected
		s.lines = append([]string(nil), s.lines[over:]...)
	}
}

// Len returns the number of stored lines, including an open last line.
func (s *Scrollback) Len() int { return len(s.lines) }

// Tail returns the last n lines, oldest first.
func (s *Scrollback) Tail(n int) []string {
	if n <= 0 {
		return nil
	}
	lines := s.lines
	// an empty open line after a newline is not shown
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	return strings.ReplaceAll(s, "\t", "    ")
}

// clean makes one line safe to draw: tabs become spaces, escape sequences are
// stripped, and any C0/C1 control left over is removed.
func clean(s string) string {
	s = ansi.Strip(expandTabs(s))
	return strings.Map(func(r rune) rune {
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			return -1
		}
		return r
	}, s)
}
