package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiokit/cmd/bench"
	"github.com/tphakala/audiokit/cmd/devices"
	"github.com/tphakala/audiokit/cmd/record"
	"github.com/tphakala/audiokit/cmd/serve"
	"github.com/tphakala/audiokit/cmd/version"
	"github.com/tphakala/audiokit/cmd/worker"
	"github.com/tphakala/audiokit/internal/app"
	"github.com/tphakala/audiokit/internal/conf"
	"github.com/tphakala/audiokit/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *app.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           conf.AppName,
		Short:         "Audio capture and computation offload toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.ConfigFile, "config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&ctx.Debug, "debug", "d", false, "Enable debug output")

	workerCmd := worker.Command(ctx)
	versionCmd := version.Command(ctx)

	rootCmd.AddCommand(
		devices.Command(ctx),
		record.Command(ctx),
		serve.Command(ctx),
		bench.Command(ctx),
		workerCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		var opts []app.Option
		if cmd.Name() == workerCmd.Name() {
			// stdout carries the bridge protocol from here on
			if err := useStderrLogging(); err != nil {
				return err
			}
			opts = append(opts, app.WithStderrLogging())
		}
		return initialize(ctx, opts...)
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if ctx.App != nil {
			ctx.App.Close()
		}
	}

	return rootCmd
}

// initialize loads the settings and sets up the process-wide services
func initialize(ctx *app.Context, opts ...app.Option) error {
	settings, err := conf.Load(ctx.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if ctx.Debug {
		settings.Debug = true
	}

	a, err := app.New(settings, ctx.Build, opts...)
	if err != nil {
		return err
	}
	ctx.App = a
	return nil
}

func useStderrLogging() error {
	central, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "warn",
		Console:      &logger.ConsoleOutput{Enabled: true, Level: "warn", Stderr: true},
	})
	if err != nil {
		return err
	}
	logger.SetGlobal(central)
	return nil
}
