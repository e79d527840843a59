package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/tphakala/audiokit/internal/api"
	"github.com/tphakala/audiokit/internal/app"
	"github.com/tphakala/audiokit/internal/capture"
	"github.com/tphakala/audiokit/internal/capture/native"
	"github.com/tphakala/audiokit/internal/logger"
	"github.com/tphakala/audiokit/internal/offload"
)

const (
	workerReadyTimeout = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// Command runs capture, the offload processor and the HTTP API until interrupted
func Command(ctx *app.Context) *cobra.Command {
	var (
		port      string
		autostart bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the capture and processing service with its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				ctx.App.Settings.WebServer.Port = port
			}
			return run(cmd.Context(), ctx.App, autostart)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "HTTP port, overrides webserver.port")
	cmd.Flags().BoolVar(&autostart, "autostart", false, "Start capturing immediately")

	return cmd
}

func run(ctx context.Context, a *app.App, autostart bool) error {
	log := logger.Global().Module("serve")

	// the worker outlives ctx until Cleanup so shutdown is not reported as a fault
	processor, err := a.NewProcessor(context.WithoutCancel(ctx), workerReadyTimeout)
	if err != nil {
		return fmt.Errorf("failed to start audio processor: %w", err)
	}
	defer processor.Cleanup()

	c := a.NewCapture(native.New())
	defer c.Release()
	feedProcessor(c, processor, log)

	cfg := a.CaptureConfig()
	if err := c.Initialize(ctx, &cfg); err != nil {
		// the API still reports status and start retries with this config
		log.Error("capture initialization failed", logger.Error(err))
		c.UpdateConfig(&cfg)
	} else if autostart && !c.Start() {
		log.Warn("capture did not start")
	}

	var server *api.Server
	if a.Settings.WebServer.Enabled {
		server, err = api.New(api.ConfigFromSettings(a.Settings),
			api.WithProcessor(processor),
			api.WithCapture(c),
			api.WithMetrics(a.Metrics),
			api.WithBuildInfo(a.Build),
		)
		if err != nil {
			return err
		}
		server.Start()
	}

	var telemetry *http.Server
	if a.Settings.Telemetry.Enabled && a.Settings.Telemetry.Listen != "" {
		telemetry = startTelemetry(a, log)
	}

	log.Info("service running",
		logger.Bool("webserver", server != nil),
		logger.Bool("telemetry", telemetry != nil),
		logger.Bool("worker_ready", processor.WorkerReady()))

	var serverErr <-chan error
	if server != nil {
		serverErr = server.Errors()
	}
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-serverErr:
	}

	if server != nil {
		if shutdownErr := server.Shutdown(); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
	}
	if telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		if shutdownErr := telemetry.Shutdown(shutdownCtx); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
		cancel()
	}
	return err
}

// feedProcessor sends captured buffers through the throttled spectrum path
func feedProcessor(c *capture.Capture, p *offload.Processor, log logger.Logger) {
	c.OnAudioData(func(samples []float32, frames int) {
		// samples are reused by the capture pool once this returns
		p.ProcessAudioThrottled(slices.Clone(samples), func(r offload.Result) {
			if r.Err != nil {
				log.Debug("spectrum of captured buffer failed", logger.Error(r.Err))
			}
		})
	})
	c.OnError(func(err error) {
		log.Error("capture error", logger.Error(err))
	})
	c.OnStateChange(func(from, to capture.State) {
		log.Info("capture state changed",
			logger.String("from", from.String()),
			logger.String("to", to.String()))
	})
}

// startTelemetry serves /metrics on its own listener
func startTelemetry(a *app.App, log logger.Logger) *http.Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))

	srv := &http.Server{
		Addr:              a.Settings.Telemetry.Listen,
		Handler:           e,
		ReadHeaderTimeout: api.DefaultReadTimeout,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("telemetry endpoint failed", logger.Error(err))
		}
	}()
	log.Info("telemetry endpoint started", logger.String("listen", srv.Addr))
	return srv
}
