//go:build linux || darwin || freebsd || netbsd || openbsd

package ui

import "golang.org/x/sys/unix"

// prepareTTY switches fd to unbuffered, unechoed input so arrow keys reach the
// key reader one sequence at a time. Signals stay enabled, so Ctrl-C still
// interrupts the process. The returned function restores the previous mode.
func prepareTTY(fd int) (func(), error) {
	orig, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, err
	}
	newState := *orig
	newState.Lflag &^= unix.ICANON | unix.ECHO
	newState.Iflag &^= unix.ICRNL | unix.INLCR | unix.IXON
	newState.Cc[unix.VMIN] = 1
	newState.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &newState); err != nil {
		return nil, err
	}
	return func() {
		_ = unix.IoctlSetTermios(fd, ioctlSetTermios, orig)
	}, nil
}
