package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiokit/internal/app"
	"github.com/tphakala/audiokit/internal/conf"
)

// Command prints build information
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", conf.AppName, ctx.Build)
			return err
		},
	}
}
