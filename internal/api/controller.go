package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/audiokit/internal/capture"
	"github.com/tphakala/audiokit/internal/errors"
	"github.com/tphakala/audiokit/internal/logger"
	"github.com/tphakala/audiokit/internal/offload"
	"github.com/tphakala/audiokit/internal/offload/perfmon"
)

// Controller serves the /api/v1 routes.
type Controller struct {
	processor    *offload.Processor
	capture      *capture.Capture
	recorder     *capture.Recorder
	recordingDir string
	log          logger.Logger
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// OffloadStats is returned by GET /offload/stats.
type OffloadStats struct {
	WorkerReady        bool                     `json:"workerReady"`
	IsProcessing       bool                     `json:"isProcessing"`
	LastProcessingTime time.Duration            `json:"lastProcessingTime"`
	Performance        map[string]perfmon.Stats `json:"performance"`
}

// CaptureStatus is returned by GET /capture/status.
type CaptureStatus struct {
	State        string                 `json:"state"`
	Initialized  bool                   `json:"initialized"`
	Capturing    bool                   `json:"capturing"`
	CurrentLevel float64                `json:"currentLevel"`
	PeakLevel    float64                `json:"peakLevel"`
	LevelDB      float64                `json:"levelDb"`
	Silent       bool                   `json:"silent"`
	Clipping     bool                   `json:"clipping"`
	Statistics   capture.Statistics     `json:"statistics"`
	Recording    *capture.RecordingInfo `json:"recording,omitempty"`
	Config       capture.Config         `json:"config"`
}

// ControlResult is returned by the capture control routes.
type ControlResult struct {
	Success   bool      `json:"success"`
	Action    string    `json:"action"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordingRequest is the body of POST /capture/recording/start. Name is a
// file name inside the recording directory; empty generates one.
type RecordingRequest struct {
	Name        string `json:"name"`
	Format      string `json:"format"`
	MaxDuration string `json:"maxDuration"`
	MaxFileSize int64  `json:"maxFileSize"`
}

// RecordingResult is returned by the recording routes.
type RecordingResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
}

// NewController registers the v1 routes on g.
func NewController(g *echo.Group, p *offload.Processor, c *capture.Capture, recordingDir string, log logger.Logger) *Controller {
	ctrl := &Controller{
		processor:    p,
		capture:      c,
		recordingDir: recordingDir,
		log:          log,
	}
	if c != nil {
		ctrl.recorder = capture.NewRecorder(c)
	}

	g.GET("/offload/stats", ctrl.GetOffloadStats)

	cg := g.Group("/capture")
	cg.GET("/status", ctrl.GetCaptureStatus)
	cg.GET("/devices", ctrl.GetDevices)
	cg.POST("/start", ctrl.control("start", (*capture.Capture).Start))
	cg.POST("/stop", ctrl.control("stop", (*capture.Capture).Stop))
	cg.POST("/pause", ctrl.control("pause", (*capture.Capture).Pause))
	cg.POST("/resume", ctrl.control("resume", (*capture.Capture).Resume))
	cg.POST("/recording/start", ctrl.StartRecording)
	cg.POST("/recording/stop", ctrl.StopRecording)

	return ctrl
}

// HandleError logs err and writes an ErrorResponse.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{
		Error:         message,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
	if err != nil {
		resp.Error = err.Error()
	}

	c.log.Error("API error",
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Error(err),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()))

	return ctx.JSON(code, resp)
}

func (c *Controller) unavailable(ctx echo.Context, what string) error {
	return c.HandleError(ctx, nil, what+" not available", http.StatusServiceUnavailable)
}

// GetOffloadStats handles GET /api/v1/offload/stats
func (c *Controller) GetOffloadStats(ctx echo.Context) error {
	if c.processor == nil {
		return c.unavailable(ctx, "audio processor")
	}
	return ctx.JSON(http.StatusOK, OffloadStats{
		WorkerReady:        c.processor.WorkerReady(),
		IsProcessing:       c.processor.IsProcessing(),
		LastProcessingTime: c.processor.LastProcessingTime(),
		Performance:        c.processor.PerformanceStats(),
	})
}

// GetCaptureStatus handles GET /api/v1/capture/status
func (c *Controller) GetCaptureStatus(ctx echo.Context) error {
	if c.capture == nil {
		return c.unavailable(ctx, "audio capture")
	}
	cp := c.capture
	return ctx.JSON(http.StatusOK, CaptureStatus{
		State:        cp.State().String(),
		Initialized:  cp.IsInitialized(),
		Capturing:    cp.IsCapturing(),
		CurrentLevel: cp.CurrentLevel(),
		PeakLevel:    cp.PeakLevel(),
		LevelDB:      cp.RMSdB(),
		Silent:       cp.IsSilent(0),
		Clipping:     cp.HasClipping(),
		Statistics:   cp.Statistics(),
		Recording:    cp.RecordingInfo(),
		Config:       cp.Config(),
	})
}

// GetDevices handles GET /api/v1/capture/devices
func (c *Controller) GetDevices(ctx echo.Context) error {
	if c.capture == nil {
		return c.unavailable(ctx, "audio capture")
	}
	devices, err := c.capture.AvailableDevices()
	if err != nil {
		return c.HandleError(ctx, err, "failed to list capture devices", http.StatusInternalServerError)
	}
	if devices == nil {
		devices = []capture.Device{}
	}
	return ctx.JSON(http.StatusOK, devices)
}

// control adapts a bool-returning façade transition to a POST handler.
// A refused transition answers 409 with the current state.
func (c *Controller) control(action string, fn func(*capture.Capture) bool) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if c.capture == nil {
			return c.unavailable(ctx, "audio capture")
		}
		ok := fn(c.capture)
		result := ControlResult{
			Success:   ok,
			Action:    action,
			State:     c.capture.State().String(),
			Timestamp: time.Now(),
		}
		if !ok {
			c.log.Warn("capture control refused",
				logger.String("action", action),
				logger.String("state", result.State))
			return ctx.JSON(http.StatusConflict, result)
		}
		c.log.Info("capture control applied",
			logger.String("action", action),
			logger.String("state", result.State))
		return ctx.JSON(http.StatusOK, result)
	}
}

// StartRecording handles POST /api/v1/capture/recording/start
func (c *Controller) StartRecording(ctx echo.Context) error {
	if c.recorder == nil {
		return c.unavailable(ctx, "audio capture")
	}

	var req RecordingRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	opts := capture.RecordingOptions{Format: req.Format, MaxFileSize: req.MaxFileSize}
	if req.MaxDuration != "" {
		d, err := time.ParseDuration(req.MaxDuration)
		if err != nil || d < 0 {
			return c.HandleError(ctx, fmt.Errorf("invalid maxDuration %q", req.MaxDuration),
				"invalid request body", http.StatusBadRequest)
		}
		opts.MaxDuration = d
	}

	path, err := c.recordingPath(req.Name, opts.Format)
	if err != nil {
		return c.HandleError(ctx, err, "invalid recording name", http.StatusBadRequest)
	}

	if err := c.recorder.Start(ctx.Request().Context(), path, opts); err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, capture.ErrPermissionDenied):
			code = http.StatusForbidden
		case errors.Is(err, capture.ErrNotCapturing), errors.Is(err, capture.ErrRecording):
			code = http.StatusConflict
		}
		return c.HandleError(ctx, err, "failed to start recording", code)
	}
	return ctx.JSON(http.StatusOK, RecordingResult{Success: true, Path: path})
}

// StopRecording handles POST /api/v1/capture/recording/stop
func (c *Controller) StopRecording(ctx echo.Context) error {
	if c.recorder == nil {
		return c.unavailable(ctx, "audio capture")
	}
	path, ok := c.recorder.Stop()
	if !ok {
		return ctx.JSON(http.StatusConflict, RecordingResult{Success: false})
	}
	return ctx.JSON(http.StatusOK, RecordingResult{Success: true, Path: path})
}

// recordingPath resolves a client supplied name inside the recording directory.
func (c *Controller) recordingPath(name, format string) (string, error) {
	if format == "" {
		format = capture.FormatWAV
	}
	if name == "" {
		name = fmt.Sprintf("recording-%s.%s", uuid.NewString(), strings.ToLower(format))
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("recording name %q must not contain a path", name)
	}
	return filepath.Join(c.recordingDir, name), nil
}
