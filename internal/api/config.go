// Package api provides the HTTP status and control surface for the audio
// offload pipeline and the capture façade.
package api

import (
	"fmt"
	"time"

	"github.com/tphakala/audiokit/internal/conf"
	"github.com/tphakala/audiokit/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultBodyLimit caps request bodies; control requests are tiny JSON documents.
	DefaultBodyLimit = "64K"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string // empty binds all interfaces
	Port string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BodyLimit string

	// Debug enables per-request logging
	Debug bool

	// ServeMetrics mounts /metrics on this server
	ServeMetrics bool

	// RecordingDir is where recordings started without an explicit path are written
	RecordingDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            "8080",
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
		ServeMetrics:    true,
		RecordingDir:    "recordings",
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	cfg.Port = settings.WebServer.Port
	cfg.Debug = settings.WebServer.Debug || settings.Debug
	// a dedicated telemetry listener takes /metrics off the API server
	cfg.ServeMetrics = settings.Telemetry.Enabled && settings.Telemetry.Listen == ""
	if settings.Capture.Recording.Path != "" {
		cfg.RecordingDir = settings.Capture.Recording.Path
	}
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	return nil
}

// Address returns the full address string for the server to listen on.
func (c *Config) Address() string {
	if c.Host == "" {
		return ":" + c.Port
	}
	return c.Host + ":" + c.Port
}
