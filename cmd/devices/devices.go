package devices

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiokit/internal/app"
	"github.com/tphakala/audiokit/internal/capture/native"
)

// Command lists the audio input devices
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctx.App.NewCapture(native.New())
			defer c.Release()

			devices, err := c.AvailableDevices()
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}
			if len(devices) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No capture devices found")
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDEFAULT")
			for _, d := range devices {
				def := ""
				if d.IsDefault {
					def = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Name, def)
			}
			return tw.Flush()
		},
	}
}
