package capture

import (
	"context"
	"time"
)

// Analyzer delivers periodic level analysis and instant snapshots
type Analyzer struct {
	capture *Capture
}

// NewAnalyzer returns an Analyzer over c
func NewAnalyzer(c *Capture) *Analyzer {
	return &Analyzer{capture: c}
}

// StartAnalysis registers cb at interval and starts capture if needed
func (a *Analyzer) StartAnalysis(ctx context.Context, cb AnalysisFunc, interval time.Duration) error {
	c := a.capture
	if !c.IsInitialized() {
		cfg := c.Config()
		if err := c.Initialize(ctx, &cfg); err != nil {
			return err
		}
	}
	c.OnAnalysis(cb, interval)
	if !c.IsCapturing() && !c.Start() {
		c.OnAnalysis(nil, 0)
		return ErrNotCapturing
	}
	return nil
}

// StopAnalysis removes the analysis callback. Capture keeps running.
func (a *Analyzer) StopAnalysis() {
	a.capture.OnAnalysis(nil, 0)
}

// InstantAnalysis returns a snapshot without waiting for the next tick
func (a *Analyzer) InstantAnalysis() AudioAnalysis {
	return a.capture.analyze(time.Now())
}

// IsSilent reports whether the current level is below threshold
func (a *Analyzer) IsSilent(threshold float64) bool {
	return a.capture.IsSilent(threshold)
}

// HasClipping reports whether the peak level reached the clipping threshold
func (a *Analyzer) HasClipping() bool {
	return a.capture.HasClipping()
}

// LevelDB is the current level in decibels
func (a *Analyzer) LevelDB() float64 {
	return a.capture.RMSdB()
}
