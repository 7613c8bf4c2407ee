package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jina-lang/jinart/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogLevelDebug, slog.LevelDebug},
		{config.LogLevelInfo, slog.LevelInfo},
		{"", slog.LevelInfo},
		{config.LogLevelWarn, slog.LevelWarn},
		{config.LogLevelError, slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "level %q", tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.ErrorIs(t, err, config.ErrInvalidLogLevel)
}

func TestJSONOutputAndFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "json", slog.LevelInfo, map[string]string{"app": "jinart"}, nil)
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("shown", "n", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "jinart", rec["app"])
	assert.Equal(t, float64(1), rec["n"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "text", slog.LevelWarn, nil, nil)
	require.NoError(t, err)

	child := l.With("component", "test")
	child.Info("dropped")
	assert.Empty(t, buf.String())

	require.NoError(t, l.SetLevel(config.LogLevelDebug))
	assert.Equal(t, slog.LevelDebug, l.Level())
	child.Debug("kept")
	assert.Contains(t, buf.String(), "msg=kept")
	assert.Contains(t, buf.String(), "component=test")

	assert.Error(t, l.SetLevel("chatty"))
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.log")
	l, err := New(config.LogConfig{Level: config.LogLevelInfo, Format: "text", Output: path})
	require.NoError(t, err)

	l.Info("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestInvalidFormat(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, "xml", slog.LevelInfo, nil, nil)
	assert.ErrorIs(t, err, config.ErrInvalidLogFormat)
}
