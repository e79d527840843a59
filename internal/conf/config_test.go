package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestViper() *viper.Viper {
	v := viper.New()
	setDefaultConfig(v)
	return v
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("main:\n  name: studio\n"), 0o644))

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "studio", settings.Main.Name)
	assert.Equal(t, 44100, settings.Offload.SampleRate)
	assert.Equal(t, 4096, settings.Offload.BufferSize)
	assert.Equal(t, 8*time.Millisecond, settings.Offload.DebounceDelay)
	assert.InDelta(t, 60.0, settings.Offload.ThrottleLimit, 0)
	assert.True(t, settings.Offload.Worker.Enabled)
	assert.Equal(t, WorkerModeInProcess, settings.Offload.Worker.Mode)
	assert.True(t, settings.Offload.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, settings.Offload.Cache.TTL)
	assert.Equal(t, 30, settings.Offload.Cache.Size)

	assert.Equal(t, 44100, settings.Capture.SampleRate)
	assert.Equal(t, 1, settings.Capture.Channels)
	assert.Equal(t, 16, settings.Capture.BitsPerSample)
	assert.Equal(t, 1024, settings.Capture.BufferSizeFrames)
	assert.Equal(t, 3, settings.Capture.NumBuffers)
	assert.True(t, settings.Capture.RequestPermission)
	assert.Equal(t, 100*time.Millisecond, settings.Capture.AnalysisInterval)
	assert.InDelta(t, 0.001, settings.Capture.SilenceThreshold, 0)

	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)

	assert.Same(t, settings, GetSettings())
}

func TestLoadReadsDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := "offload:\n  debouncedelay: 20ms\n  cache:\n    ttl: 1m\ncapture:\n  analysisinterval: 250ms\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, settings.Offload.DebounceDelay)
	assert.Equal(t, time.Minute, settings.Offload.Cache.TTL)
	assert.Equal(t, 250*time.Millisecond, settings.Capture.AnalysisInterval)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capture:\n  bitspersample: 24\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 1)
	assert.Contains(t, ve.Errors[0], "bit depth")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	settings, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, AppName, settings.Main.Name)

	created := filepath.Join(home, ".config", AppName, ConfigFileName)
	require.FileExists(t, created)

	found, err := FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, created, found)

	// the written file loads back to the same settings
	again, err := Load(created)
	require.NoError(t, err)
	assert.Equal(t, settings.Capture, again.Capture)
	assert.Equal(t, settings.Offload, again.Offload)
}

func TestSaveYAMLConfigReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("main:\n  name: old\n"), 0o644))

	settings, err := Load(path)
	require.NoError(t, err)
	settings.Main.Name = "new"
	settings.Capture.Recording.MaxDuration = 90 * time.Second
	require.NoError(t, SaveYAMLConfig(path, settings))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "new", reloaded.Main.Name)
	assert.Equal(t, 90*time.Second, reloaded.Capture.Recording.MaxDuration)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "config-*.yaml"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary file cleaned up")
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	require.NoError(t, moveFile(src, dst))
	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}
