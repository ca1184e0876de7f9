//go:build !(linux || darwin || freebsd || netbsd || openbsd || windows)

package ui

import "errors"

func prepareTTY(fd int) (func(), error) {
	return nil, errors.New("raw terminal input is not supported on this platform")
}
