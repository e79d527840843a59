package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleScopingAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug).Module("offload").Module("bridge")

	log.With(String("transport", "local")).Info("bridge ready",
		Uint64("request_id", 42),
		Duration("handshake", 1500*time.Microsecond),
		Float64("ratio", 0.123456))

	out := buf.String()
	assert.Contains(t, out, "module=offload.bridge")
	assert.Contains(t, out, "transport=local")
	assert.Contains(t, out, "request_id=42")
	assert.Contains(t, out, "handshake=1.5ms")
	assert.Contains(t, out, "ratio=0.123")
	assert.NotContains(t, out, "time=", "console output carries no timestamps")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelWarn)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown")
	log.Log(LogLevelError, "explicit")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "explicit")
}

func TestTraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	NewSlogLogger(&buf, LogLevelTrace).Trace("very verbose")
	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestWithContextTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo)

	log.WithContext(WithTraceID(context.Background(), "abc-123")).Info("traced")
	log.WithContext(context.Background()).Info("untraced")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=abc-123")
	assert.NotContains(t, lines[1], "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audiokit.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug", MaxSize: 1},
		ModuleLevels: map[string]string{"capture": "error"},
	})
	require.NoError(t, err)

	cl.Module("offload").Debug("cache miss", Int("len", 1024))
	cl.Module("capture").Info("filtered by module level")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "cache miss", rec["msg"])
	assert.Equal(t, "offload", rec["module"])
	assert.InDelta(t, 1024, rec["len"], 0)
	assert.True(t, strings.HasSuffix(rec["time"].(string), "Z"), "timestamps are rendered in the configured zone")
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestNilConfig(t *testing.T) {
	_, err := NewCentralLogger(nil)
	require.Error(t, err)
}
