// config.go: settings struct and functions to load and save the settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/audiokit/internal/logger"
)

// Settings is the root of the configuration tree
type Settings struct {
	Debug bool // true to enable debug logging everywhere

	Main struct {
		Name string // instance name shown in the API and telemetry
	}

	Logging logger.LoggingConfig // central logger configuration

	Offload   OffloadSettings
	Capture   CaptureSettings
	WebServer WebServerSettings
	Telemetry TelemetrySettings
	Sentry    SentrySettings
}

// OffloadSettings configures the audio processing orchestrator
type OffloadSettings struct {
	SampleRate      int           // sample rate used in cache keys and filter defaults
	BufferSize      int           // scratch buffer length for the local transform
	PoolSize        int           // free-list ceiling for scratch buffers
	DebounceDelay   time.Duration // quiet period for debounced processing
	ThrottleLimit   float64       // calls per second for throttled processing
	BatchDelay      time.Duration // batch flush delay
	MonitorCapacity int           // samples kept per performance label
	Worker          WorkerSettings
	Cache           CacheSettings
}

// WorkerSettings configures the execution context behind the bridge
type WorkerSettings struct {
	Enabled     bool   // false forces local computation
	Mode        string // "inprocess" or "process"
	Path        string // worker executable for process mode, empty uses this binary
	Concurrency int    // concurrent requests per worker, 0 uses GOMAXPROCS
}

// CacheSettings configures the computation cache
type CacheSettings struct {
	Enabled bool
	TTL     time.Duration
	Size    int
}

// CaptureSettings configures the capture facade
type CaptureSettings struct {
	SampleRate        int
	Channels          int
	BitsPerSample     int
	BufferSizeFrames  int
	NumBuffers        int
	Device            string // device ID, empty for the system default
	EchoCancellation  bool
	NoiseSuppression  bool
	AutoGainControl   bool
	RequestPermission bool          // ask for microphone permission on initialize
	AnalysisInterval  time.Duration // period of analysis callbacks
	SilenceThreshold  float64       // RMS level below which audio counts as silent
	Recording         RecordingSettings
}

// RecordingSettings holds recording defaults
type RecordingSettings struct {
	Path        string        // directory for recordings
	MaxDuration time.Duration // 0 for unlimited
	MaxFileSize int64         // bytes, 0 for unlimited
}

// WebServerSettings configures the HTTP API
type WebServerSettings struct {
	Enabled bool
	Port    string
	Debug   bool // log every request
}

// TelemetrySettings configures the Prometheus endpoint
type TelemetrySettings struct {
	Enabled bool
	Listen  string // separate listener, empty serves /metrics on the web server
}

// SentrySettings configures error reporting
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configFile, or the first config.yaml found in the default
// paths when configFile is empty, applies environment overrides and
// validates the result. A missing default config file is created.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	v, err := initViper(configFile)
	if err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper creates a viper instance with defaults, environment bindings and
// the configuration file
func initViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		// invalid values are reported but do not prevent startup
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName(ConfigName)
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return v, createDefaultConfig(v, filepath.Join(configPaths[0], ConfigFileName))
		}
		return nil, fmt.Errorf("fatal error reading config file: %w", err)
	}
	return v, nil
}

// createDefaultConfig writes the default settings to configPath and reads it back
func createDefaultConfig(v *viper.Viper, configPath string) error {
	defaults := &Settings{}
	if err := v.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error building default settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := SaveYAMLConfig(configPath, defaults); err != nil {
		return err
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath. It overwrites the existing
// file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// write to a temporary file first so the replacement is atomic
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// rename fails across devices, fall back to copy & delete
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}
	return nil
}
