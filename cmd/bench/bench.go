package bench

import (
	"context"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiokit/internal/app"
	"github.com/tphakala/audiokit/internal/offload"
	"github.com/tphakala/audiokit/internal/offload/bridge"
)

const (
	workerReadyTimeout = 5 * time.Second
	batchSize          = 8
	testToneHz         = 440.0
)

// Command measures the offload operations on synthetic audio
func Command(ctx *app.Context) *cobra.Command {
	var (
		iterations int
		size       int
		cache      bool
		compare    bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark audio processing through the worker and locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations < 1 {
				return fmt.Errorf("iterations must be positive, got %d", iterations)
			}
			if size < 16 {
				return fmt.Errorf("buffer size must be at least 16 samples, got %d", size)
			}

			a := ctx.App
			a.Settings.Offload.Cache.Enabled = cache
			a.Settings.Offload.MonitorCapacity = max(a.Settings.Offload.MonitorCapacity, iterations)

			out := cmd.OutOrStdout()
			modes := []bool{a.Settings.Offload.Worker.Enabled}
			if compare && modes[0] {
				modes = append(modes, false)
			}
			for _, worker := range modes {
				a.Settings.Offload.Worker.Enabled = worker
				if err := runBench(cmd.Context(), a, out, iterations, size); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&iterations, "iterations", "n", 200, "Calls per operation")
	cmd.Flags().IntVar(&size, "size", 4096, "Samples per buffer")
	cmd.Flags().BoolVar(&cache, "cache", false, "Keep the computation cache enabled")
	cmd.Flags().BoolVar(&compare, "compare", true, "Also run with the worker disabled")

	return cmd
}

func runBench(ctx context.Context, a *app.App, out io.Writer, iterations, size int) error {
	p, err := a.NewProcessor(ctx, workerReadyTimeout)
	if err != nil {
		return err
	}
	defer p.Cleanup()

	strategy := "local"
	if p.WorkerReady() {
		strategy = "worker (" + a.Settings.Offload.Worker.Mode + ")"
	}
	fmt.Fprintf(out, "\nStrategy: %s, %d iterations of %d samples\n", strategy, iterations, size)

	sampleRate := a.Settings.Offload.SampleRate
	buf := tone(size, sampleRate)
	batch := make([][]float32, batchSize)
	for i := range batch {
		batch[i] = buf
	}
	lowpass := bridge.FilterParams{Kind: bridge.FilterLowPass, Frequency: 1000, SampleRate: sampleRate, Q: math.Sqrt2 / 2}

	start := time.Now()
	for range iterations {
		if _, err := p.ProcessAudio(ctx, buf); err != nil {
			return fmt.Errorf("process audio: %w", err)
		}
		if _, err := p.CalculateRMS(ctx, buf, 0); err != nil {
			return fmt.Errorf("calculate rms: %w", err)
		}
		if _, err := p.ApplyFilter(ctx, buf, lowpass); err != nil {
			return fmt.Errorf("apply filter: %w", err)
		}
		if _, err := p.ProcessBatch(ctx, batch); err != nil {
			return fmt.Errorf("process batch: %w", err)
		}
	}
	total := time.Since(start)

	printStats(out, p)
	fmt.Fprintf(out, "Total: %s\n", total.Round(time.Millisecond))
	return nil
}

func printStats(out io.Writer, p *offload.Processor) {
	stats := p.PerformanceStats()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "OPERATION\tCALLS\tAVG\tMIN\tP95\tMAX\t")
	for _, label := range slices.Sorted(maps.Keys(stats)) {
		s := stats[label]
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t\n", label, s.Count,
			round(s.Avg), round(s.Min), round(s.P95), round(s.Max))
	}
	_ = tw.Flush()
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Microsecond)
}

// tone is a full-scale sine at testToneHz
func tone(n, sampleRate int) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = float32(math.Sin(2 * math.Pi * testToneHz * float64(i) / float64(sampleRate)))
	}
	return buf
}
