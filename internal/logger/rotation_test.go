package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	w, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)
	defer w.Close()

	_, err = os.Stat(logFile)
	assert.NoError(t, err)
}

func TestRotatingWriterWrite(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	w, err := NewRotatingWriter(logFile, 1, 0, false)
	require.NoError(t, err)
	defer w.Close()

	line := []byte("log line\n")
	n, err := w.Write(line)
	require.NoError(t, err)
	assert.Equal(t, len(line), n)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, string(line), string(data))
}

func TestRotatingWriterRotates(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	w, err := NewRotatingWriter(logFile, 1, 0, false)
	require.NoError(t, err)
	defer w.Close()

	// Force rotation by shrinking the threshold below the pending write.
	w.maxSize = 10
	_, err = w.Write([]byte(strings.Repeat("x", 8)))
	require.NoError(t, err)
	_, err = w.Write([]byte(strings.Repeat("y", 8)))
	require.NoError(t, err)

	entries, err := filepath.Glob(filepath.Join(tmpDir, "test.log.*"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "a rotated file should exist")

	// The active file starts fresh after rotation
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("y", 8), string(data))
}

func TestRotatingWriterClose(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	w, err := NewRotatingWriter(logFile, 1, 0, false)
	require.NoError(t, err)

	assert.NoError(t, w.Close())
}
