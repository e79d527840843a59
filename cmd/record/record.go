package record

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tphakala/audiokit/internal/app"
	"github.com/tphakala/audiokit/internal/capture"
	"github.com/tphakala/audiokit/internal/capture/native"
	"github.com/tphakala/audiokit/internal/dsp"
)

// how often the command checks whether a limit ended the recording
const pollInterval = 100 * time.Millisecond

// Command records the selected input device to a WAV file
func Command(ctx *app.Context) *cobra.Command {
	var (
		output   string
		duration time.Duration
		device   string
		meter    bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record audio from a capture device",
		Long:  "Record audio to a WAV file until interrupted, the duration elapses or a configured limit is reached.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := ctx.App
			cfg := a.CaptureConfig()
			if device != "" {
				cfg.DeviceID = device
			}
			opts := a.RecordingOptions()
			if duration > 0 {
				opts.MaxDuration = duration
			}
			if output == "" {
				output = filepath.Join(a.Settings.Capture.Recording.Path,
					fmt.Sprintf("recording-%s.%s", uuid.NewString(), capture.FormatWAV))
			}

			c := a.NewCapture(native.New())
			defer c.Release()

			out := cmd.OutOrStdout()
			c.OnError(func(err error) {
				fmt.Fprintf(cmd.ErrOrStderr(), "capture error: %v\n", err)
			})
			if meter {
				c.OnAnalysis(func(an capture.AudioAnalysis) {
					printMeter(out, an)
				}, cfg.AnalysisInterval)
			}

			if err := c.Initialize(cmd.Context(), &cfg); err != nil {
				return fmt.Errorf("failed to initialize capture: %w", err)
			}
			rec := capture.NewRecorder(c)
			if err := rec.Start(cmd.Context(), output, opts); err != nil {
				return err
			}
			fmt.Fprintf(out, "Recording to %s, press Ctrl+C to stop\n", output)

			ticker := time.NewTicker(pollInterval)
			defer ticker.Stop()
		wait:
			for {
				select {
				case <-cmd.Context().Done():
					break wait
				case <-ticker.C:
					if !rec.IsRecording() {
						break wait
					}
				}
			}

			if meter {
				fmt.Fprintln(out)
			}
			path, ok := rec.Stop()
			if !ok {
				return fmt.Errorf("recording to %s failed", output)
			}
			stats := c.Statistics()
			fmt.Fprintf(out, "Saved %s (%s, peak %.1f dBFS, %d overruns)\n",
				path, stats.Duration.Round(time.Millisecond), dsp.ToDB(stats.PeakLevel), stats.Overruns)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, defaults to a generated name in the recording directory")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long, 0 uses the configured limit")
	cmd.Flags().StringVar(&device, "device", "", "Capture device ID, see the devices command")
	cmd.Flags().BoolVar(&meter, "meter", true, "Show a live level meter")

	return cmd
}

// printMeter redraws a one-line level meter
func printMeter(w io.Writer, an capture.AudioAnalysis) {
	const width = 40
	// map -60..0 dBFS onto the bar
	n := int((an.LevelDB + 60) / 60 * width)
	n = max(0, min(width, n))

	bar := make([]byte, width)
	for i := range bar {
		if i < n {
			bar[i] = '#'
		} else {
			bar[i] = '-'
		}
	}
	clip := ""
	if an.Clipping {
		clip = " CLIP"
	}
	fmt.Fprintf(w, "\r[%s] %6.1f dB%s ", bar, an.LevelDB, clip)
}
