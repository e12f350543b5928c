package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/radiod/cmd"
	"github.com/smazurov/radiod/internal/config"
	"github.com/smazurov/radiod/internal/logging"
	"github.com/smazurov/radiod/internal/runner"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Audio settings
	AudioRequireSink  bool `help:"Wait for a connected Bluetooth audio sink before playing" default:"false" toml:"audio.require_bluetooth_sink" env:"AUDIO_REQUIRE_SINK"`
	AudioSinkInterval int  `help:"Seconds between Bluetooth sink checks" default:"30" toml:"audio.sink_check_interval" env:"AUDIO_SINK_INTERVAL"`

	// Metrics settings
	MetricsListen string `help:"Prometheus listen address, empty to disable" default:"" toml:"metrics.listen" env:"METRICS_LISTEN"`

	// Logging settings
	LoggingLevel  string `help:"Logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Console log format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingFile   string `help:"Log file path, falls back through writable directories" default:"" toml:"logging.file" env:"LOGGING_FILE"`
	LoggingLayout string `help:"Log file line layout" default:"" toml:"logging.layout" env:"LOGGING_LAYOUT"`
}

func main() {
	// The CLI handle is captured so the handler can see which flags were
	// explicitly set; those must win over env vars and the config file.
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logger := logging.Setup(logging.Config{
			Level:   opts.LoggingLevel,
			Format:  opts.LoggingFormat,
			LogFile: opts.LoggingFile,
			Layout:  opts.LoggingLayout,
		})

		ctx, cancel := context.WithCancel(context.Background())

		r := runner.New(runner.Options{
			Config:        opts.Config,
			RequireSink:   opts.AudioRequireSink,
			SinkInterval:  time.Duration(opts.AudioSinkInterval) * time.Second,
			MetricsListen: opts.MetricsListen,
		}, logger)

		hooks.OnStart(func() {
			code := r.Run(ctx)
			cancel()
			os.Exit(code)
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
		})
	})

	cli.Root().Use = "radiod"
	cli.Root().AddCommand(cmd.CreatePlayCmd())
	cli.Root().AddCommand(cmd.CreateDoctorCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}
