package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"citymonitor/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_WritesAllLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Info("loaded %s", "model")
	l.Warning("frame %d skipped", 7)
	l.Error("boom: %v", "net")

	out := buf.String()
	assert.Contains(t, out, "loaded model")
	assert.Contains(t, out, "frame 7 skipped")
	assert.Contains(t, out, "boom: net")
	assert.Contains(t, out, "level=warning")
}

func TestNewLogger_CreatesFilesAndCleans(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l := NewLogger(&config.Config{LogDirectory: dir})

	l.Error("something failed")

	data, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "something failed")

	l.CleanLogs("error.log")

	data, err = os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Empty(t, data)
}
