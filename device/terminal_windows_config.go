//go:build windows

package device

import (
	"os"

	"golang.org/x/sys/windows"
)

const utf8CodePage = 65001

// Windows consoles ignore mode 2026, so the markers are left out.
const supportsSyncOutput = false

// PrepareConsole turns on VT escape processing for stdout and switches the
// console to UTF-8 so block glyphs render. It returns a function that puts the
// previous modes back.
func PrepareConsole() func() {
	h := windows.Handle(os.Stdout.Fd())
	var mode uint32
	if h == windows.InvalidHandle || windows.GetConsoleMode(h, &mode) != nil {
		return func() {}
	}
	vt := mode | windows.ENABLE_PROCESSED_OUTPUT | windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING
	vt &^= windows.DISABLE_NEWLINE_AUTO_RETURN
	_ = windows.SetConsoleMode(h, vt)

	outCP, _ := windows.GetConsoleOutputCP()
	_ = windows.SetConsoleOutputCP(utf8CodePage)
	return func() {
		_ = windows.SetConsoleMode(h, mode)
		if outCP != 0 {
			_ = windows.SetConsoleOutputCP(outCP)
		}
	}
}
