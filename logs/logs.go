package logs

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
)

var verbose atomic.Bool

// SetVerbose toggles LogV output.
func SetVerbose(v bool) {
	verbose.Store(v)
}

// Verbose reports whether verbose logging is enabled.
func Verbose() bool {
	return verbose.Load()
}

// LogV prints a formatted log message only when verbose logging is enabled.
func LogV(format string, args ...interface{}) {
	if verbose.Load() {
		log.Printf(format, args...)
	}
}

// InitSink opens (or creates) the log file at path in append mode and points the
// standard logger at it. The returned close function restores stderr output.
func InitSink(path string) (io.Writer, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	closeFn := func() error {
		log.SetOutput(os.Stderr)
		return f.Close()
	}
	return f, closeFn, nil
}
