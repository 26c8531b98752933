package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/docindex/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LogConfig{Level: "info", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("document indexed", zap.String("path", "/guide/intro"), zap.Int("sections", 2))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "document indexed", entry["msg"])
	assert.Equal(t, "/guide/intro", entry["path"])
	assert.EqualValues(t, 2, entry["sections"])
	assert.Contains(t, entry, "ts")
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LogConfig{Level: "debug", Format: "console"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("starting pass")
	require.NoError(t, logger.Sync())

	assert.Contains(t, buf.String(), "starting pass")
	assert.Contains(t, buf.String(), "debug")
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger(config.LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)

	_, err = NewLogger(config.LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestIsStdoutSyncError(t *testing.T) {
	assert.True(t, isStdoutSyncError(syscall.EINVAL))
	assert.True(t, isStdoutSyncError(fmt.Errorf("sync /dev/stderr: %w", syscall.ENOTTY)))
	assert.False(t, isStdoutSyncError(syscall.EIO))
	assert.False(t, isStdoutSyncError(fmt.Errorf("other")))
}
