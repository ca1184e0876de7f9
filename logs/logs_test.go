package logs

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogVGate(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		SetVerbose(false)
	})

	SetVerbose(false)
	LogV("[test] hidden %d", 1)
	require.Zero(t, buf.Len())

	SetVerbose(true)
	require.True(t, Verbose())
	LogV("[test] shown %d", 2)
	require.Contains(t, buf.String(), "[test] shown 2")
}

func TestInitSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pixelsim.log")
	_, closeFn, err := InitSink(path)
	require.NoError(t, err)
	log.Printf("[test] first")
	require.NoError(t, closeFn())

	_, closeFn, err = InitSink(path)
	require.NoError(t, err)
	log.Printf("[test] second")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[test] first")
	require.Contains(t, string(data), "[test] second")
}
