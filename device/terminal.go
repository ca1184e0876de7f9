// Package device holds the raw terminal controls shared by the renderers.
package device

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const (
	syncBegin = "\x1b[?2026h"
	syncEnd   = "\x1b[?2026l"
)

// Synced wraps an ANSI payload in synchronized output markers (mode 2026) on
// terminals that support them, so the terminal shows it as one update.
func Synced(data []byte) []byte {
	if !supportsSyncOutput {
		return data
	}
	out := make([]byte, 0, len(syncBegin)+len(data)+len(syncEnd))
	out = append(out, syncBegin...)
	out = append(out, data...)
	return append(out, syncEnd...)
}

// EnterAltScreen switches to the alternate screen, hides the cursor and turns
// off auto-wrap so writing the bottom-right cell never scrolls.
func EnterAltScreen(w io.Writer) error {
	_, err := fmt.Fprint(w, "\x1b[?1049h\x1b[?25l\x1b[?7l\x1b[3J\x1b[H")
	return err
}

// ExitAltScreen undoes EnterAltScreen and resets text attributes.
func ExitAltScreen(w io.Writer) error {
	seq := ""
	if supportsSyncOutput {
		seq += syncEnd
	}
	seq += "\x1b[0m\x1b[?7h\x1b[?25h\x1b[?1049l"
	_, err := fmt.Fprint(w, seq)
	return err
}

// TermSize queries the size in character cells of the terminal behind f.
func TermSize(f *os.File) (cols, rows int, err error) {
	cols, rows, err = term.GetSize(int(f.Fd()))
	return
}

// IsTerminal reports whether f is connected to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
