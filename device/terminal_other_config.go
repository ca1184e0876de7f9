//go:build !windows

package device

// supportsSyncOutput reports whether the terminal understands synchronized
// output (mode 2026). Terminals that do not simply ignore it.
const supportsSyncOutput = true

// PrepareConsole is only needed on Windows.
func PrepareConsole() func() { return func() {} }
