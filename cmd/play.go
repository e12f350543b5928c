// Package cmd holds the radiod subcommands.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/radiod/internal/logging"
	"github.com/smazurov/radiod/internal/runner"
	"github.com/spf13/cobra"
)

// CreatePlayCmd creates the play command: a one-shot foreground play
// session without the daemon surfaces (no metrics endpoint).
func CreatePlayCmd() *cobra.Command {
	var configFile string
	var requireSink bool
	var sinkInterval int
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the radio stream in the foreground",
		Long: `Plays the stream with the first available audio player and blocks ` +
			`until the player exits or a shutdown signal arrives. A second ` +
			`invocation while one is playing exits immediately without error.`,
		Run: func(_ *cobra.Command, _ []string) {
			loggingConfig := logging.Config{Level: "info"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logger := logging.Setup(loggingConfig)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := runner.New(runner.Options{
				Config:       configFile,
				RequireSink:  requireSink,
				SinkInterval: time.Duration(sinkInterval) * time.Second,
			}, logger)

			os.Exit(r.Run(ctx))
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "config.toml", "Path to configuration file")
	cmd.Flags().BoolVar(&requireSink, "require-sink", false, "Wait for a connected Bluetooth audio sink before playing")
	cmd.Flags().IntVar(&sinkInterval, "sink-interval", 30, "Seconds between Bluetooth sink checks")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
