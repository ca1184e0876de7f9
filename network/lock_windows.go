//go:build windows

package network

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

func lockSocketPath(path string) (func(), error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("lock unix://%s: %w", path, err)
	}
	ol := new(windows.Overlapped)
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	if err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, ol); err != nil {
		f.Close()
		if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return nil, fmt.Errorf("%w: unix://%s", ErrAddrInUse, path)
		}
		return nil, fmt.Errorf("lock unix://%s: %w", path, err)
	}
	return func() { _ = f.Close() }, nil
}
