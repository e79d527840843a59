package worker

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiokit/internal/app"
	"github.com/tphakala/audiokit/internal/conf"
	"github.com/tphakala/audiokit/internal/offload/bridge"
	"github.com/tphakala/audiokit/internal/offload/worker"
)

// Command runs the offload execution context on stdin and stdout. It is
// started by the processor in process worker mode.
func Command(ctx *app.Context) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Serve offloaded audio computations over stdin/stdout",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency == 0 {
				concurrency = ctx.App.Settings.Offload.Worker.Concurrency
			}
			w := worker.New(
				worker.WithName(conf.WorkerModeProcess),
				worker.WithConcurrency(concurrency),
			)
			return w.Serve(cmd.Context(), bridge.NewStream(os.Stdin, os.Stdout))
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent requests, 0 uses the configured value")

	return cmd
}
