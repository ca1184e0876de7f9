//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package network

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// lockSocketPath takes a non-blocking flock on path+".lock" and returns the
// function that drops it. The lock file itself is left in place.
func lockSocketPath(path string) (func(), error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("lock unix://%s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: unix://%s", ErrAddrInUse, path)
		}
		return nil, fmt.Errorf("lock unix://%s: %w", path, err)
	}
	return func() { _ = f.Close() }, nil
}
