// Package app wires loaded settings into the process-wide logger, error
// reporting and metrics, and builds the offload processor and capture
// façade the commands run.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/audiokit/internal/buildinfo"
	"github.com/tphakala/audiokit/internal/capture"
	"github.com/tphakala/audiokit/internal/conf"
	"github.com/tphakala/audiokit/internal/errors"
	"github.com/tphakala/audiokit/internal/logger"
	"github.com/tphakala/audiokit/internal/observability"
	"github.com/tphakala/audiokit/internal/offload"
	"github.com/tphakala/audiokit/internal/offload/worker"
)

const sentryFlushTimeout = 2 * time.Second

// GetLogger returns the app logger
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}

// App holds the process-wide services built from Settings
type App struct {
	Settings *conf.Settings
	Build    *buildinfo.Context
	Metrics  *observability.Metrics

	central *logger.CentralLogger
	sentry  bool
}

// Option configures New
type Option func(*options)

type options struct {
	stderr bool
}

// WithStderrLogging sends console logs to stderr. Used by the worker
// process, whose stdout carries the bridge protocol.
func WithStderrLogging() Option {
	return func(o *options) { o.stderr = true }
}

// New installs the global logger and, when configured, the Sentry reporter,
// and creates the metrics registry.
func New(settings *conf.Settings, build *buildinfo.Context, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Settings: settings, Build: build}

	central, err := setupLogging(settings, o.stderr)
	if err != nil {
		return nil, err
	}
	a.central = central

	if settings.Sentry.Enabled {
		if err := a.setupSentry(); err != nil {
			// reporting is optional, keep running without it
			GetLogger().Warn("error reporting disabled", logger.Error(err))
		}
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	a.Metrics = m

	return a, nil
}

func setupLogging(settings *conf.Settings, stderr bool) (*logger.CentralLogger, error) {
	cfg := settings.Logging
	if cfg.Console != nil {
		console := *cfg.Console
		cfg.Console = &console
	} else {
		cfg.Console = &logger.ConsoleOutput{Enabled: logger.DefaultConsoleEnabled, Level: cfg.DefaultLevel}
	}
	if stderr {
		cfg.Console.Stderr = true
	}
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		cfg.Console.Level = "debug"
	}

	central, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return central, nil
}

func (a *App) setupSentry() error {
	s := a.Settings.Sentry
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              s.DSN,
		Environment:      s.Environment,
		Release:          fmt.Sprintf("%s@%s", conf.AppName, a.Build.GetVersion()),
		SampleRate:       s.SampleRate,
		AttachStacktrace: true,
		ServerName:       a.Settings.Main.Name,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	a.sentry = true
	GetLogger().Info("error reporting enabled", logger.String("environment", s.Environment))
	return nil
}

// Close flushes error reporting and the log file
func (a *App) Close() {
	if a.sentry {
		errors.SetTelemetryReporter(nil)
		sentry.Flush(sentryFlushTimeout)
	}
	if a.central != nil {
		_ = a.central.Close()
	}
}

// OffloadOptions maps the offload settings to processor options
func (a *App) OffloadOptions() offload.Options {
	s := a.Settings.Offload
	return offload.Options{
		SampleRate:      s.SampleRate,
		WorkerEnabled:   s.Worker.Enabled,
		CacheEnabled:    s.Cache.Enabled,
		CacheTTL:        s.Cache.TTL,
		CacheSize:       s.Cache.Size,
		PoolSize:        s.PoolSize,
		BufferSize:      s.BufferSize,
		DebounceDelay:   s.DebounceDelay,
		ThrottleLimit:   s.ThrottleLimit,
		BatchDelay:      s.BatchDelay,
		MonitorCapacity: s.MonitorCapacity,
	}
}

// CaptureConfig maps the capture settings to a façade configuration
func (a *App) CaptureConfig() capture.Config {
	s := a.Settings.Capture
	return capture.Config{
		SampleRate:              s.SampleRate,
		Channels:                s.Channels,
		BitsPerSample:           s.BitsPerSample,
		BufferSizeFrames:        s.BufferSizeFrames,
		NumBuffers:              s.NumBuffers,
		DeviceID:                s.Device,
		EnableEchoCancellation:  capture.Bool(s.EchoCancellation),
		EnableNoiseSuppression:  capture.Bool(s.NoiseSuppression),
		EnableAutoGainControl:   capture.Bool(s.AutoGainControl),
		RequestPermissionOnInit: capture.Bool(s.RequestPermission),
		AnalysisInterval:        s.AnalysisInterval,
		SilenceThreshold:        s.SilenceThreshold,
	}
}

// RecordingOptions returns the configured recording limits
func (a *App) RecordingOptions() capture.RecordingOptions {
	r := a.Settings.Capture.Recording
	return capture.RecordingOptions{
		Format:      capture.FormatWAV,
		MaxDuration: r.MaxDuration,
		MaxFileSize: r.MaxFileSize,
	}
}

// NewProcessor builds the orchestrator. With the worker enabled it starts
// the execution context in the configured mode and waits up to readyTimeout
// for it; a worker that is not ready by then leaves calls on the local path
// until it reports ready. The worker stops when the processor is cleaned up.
func (a *App) NewProcessor(ctx context.Context, readyTimeout time.Duration) (*offload.Processor, error) {
	opts := a.OffloadOptions()
	popts := []offload.ProcessorOption{offload.WithMetrics(a.Metrics.Offload)}

	if opts.WorkerEnabled {
		conn, err := a.startWorker(ctx)
		if err != nil {
			return nil, err
		}
		b := offload.ConnectWorker(conn, a.Metrics.Offload)

		waitCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		err = b.WaitReady(waitCtx)
		cancel()
		if err != nil {
			GetLogger().Warn("offload worker not ready, starting with local processing",
				logger.Error(err),
				logger.Duration("timeout", readyTimeout))
		}
		popts = append(popts, offload.WithBridge(b))
	}

	return offload.NewProcessor(opts, popts...)
}

func (a *App) startWorker(ctx context.Context) (*worker.Conn, error) {
	w := a.Settings.Offload.Worker
	switch w.Mode {
	case conf.WorkerModeProcess:
		path := w.Path
		if path == "" {
			exe, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("locate worker executable: %w", err)
			}
			path = exe
		}
		args := []string{"worker"}
		if w.Concurrency > 0 {
			args = append(args, "--concurrency", fmt.Sprint(w.Concurrency))
		}
		return worker.StartProcess(ctx, path, args...)
	default:
		return worker.StartLocal(ctx,
			worker.WithName(conf.WorkerModeInProcess),
			worker.WithConcurrency(w.Concurrency)), nil
	}
}

// NewCapture builds a façade over engine reporting to the app metrics
func (a *App) NewCapture(engine capture.Engine) *capture.Capture {
	return capture.New(engine, capture.WithMetrics(a.Metrics.Capture))
}

// Context is shared by the CLI commands. App is set by the root command
// once settings are loaded.
type Context struct {
	ConfigFile string
	Debug      bool
	Build      *buildinfo.Context
	App        *App
}
