package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiokit/internal/app"
	"github.com/tphakala/audiokit/internal/buildinfo"
	"github.com/tphakala/audiokit/internal/logger"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { logger.SetGlobal(nil) })

	root := RootCommand(&app.Context{Build: buildinfo.NewContext("0.1.0", "2026-10-01")})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func writeConfig(t *testing.T, yamlData string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))
	return path
}

func TestVersionSkipsInitialization(t *testing.T) {
	out, err := execute(t, "version", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "audiokit 0.1.0 (built 2026-10-01)\n", out)
}

func TestBenchLocal(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  console:\n    level: error\noffload:\n  worker:\n    enabled: false\n")

	out, err := execute(t, "bench", "--config", cfg, "-n", "3", "--size", "64")
	require.NoError(t, err)
	assert.Contains(t, out, "Strategy: local")
	assert.Contains(t, out, "process_audio")
	assert.Contains(t, out, "calculate_rms")
}

func TestBenchInProcessWorker(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  console:\n    level: error\noffload:\n  worker:\n    mode: inprocess\n")

	out, err := execute(t, "bench", "--config", cfg, "-n", "2", "--size", "128")
	require.NoError(t, err)
	assert.Contains(t, out, "Strategy: worker (inprocess)")
	assert.Contains(t, out, "process_batch")
	assert.Contains(t, out, "Strategy: local")
}

func TestBenchRejectsBadFlags(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  console:\n    level: error\n")

	_, err := execute(t, "bench", "--config", cfg, "-n", "0")
	require.Error(t, err)
	_, err = execute(t, "bench", "--config", cfg, "--size", "4")
	require.Error(t, err)
}

func TestMissingConfigFileFails(t *testing.T) {
	_, err := execute(t, "bench", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}
