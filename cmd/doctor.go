package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/smazurov/radiod/internal/bluetooth"
	"github.com/smazurov/radiod/internal/config"
	"github.com/smazurov/radiod/internal/logging"
	"github.com/smazurov/radiod/internal/player"
	"github.com/smazurov/radiod/internal/singleton"
	"github.com/spf13/cobra"
)

// CreateDoctorCmd creates the doctor command, a read-only environment
// check that reports player availability, Bluetooth sink status, and
// whether another instance is running.
func CreateDoctorCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the playback environment",
		Run: func(c *cobra.Command, _ []string) {
			logger := logging.Setup(logging.Config{Level: "error", DisableFile: true})
			ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
			defer cancel()

			out := c.OutOrStdout()

			candidates, err := config.LoadPlayers(configFile)
			if err != nil {
				fmt.Fprintf(out, "config:    INVALID (%v)\n", err)
				candidates = player.DefaultCandidates()
			} else {
				fmt.Fprintf(out, "config:    ok (%d player candidates)\n", len(candidates))
			}

			selector := player.NewSelector(logger)
			anyPlayer := false
			for _, a := range selector.Probe(candidates) {
				if a.Err != nil {
					fmt.Fprintf(out, "player:    %-10s missing\n", a.Candidate.Name)
					continue
				}
				anyPlayer = true
				fmt.Fprintf(out, "player:    %-10s %s\n", a.Candidate.Name, a.Path)
			}
			if !anyPlayer {
				fmt.Fprintln(out, "player:    NONE AVAILABLE. "+player.InstallHint)
			}

			devices, err := bluetooth.CtlProber{}.ConnectedDevices(ctx)
			switch {
			case err != nil:
				fmt.Fprintf(out, "bluetooth: probe failed (%v)\n", err)
			case len(devices) == 0:
				fmt.Fprintln(out, "bluetooth: no connected devices")
			default:
				fmt.Fprintf(out, "bluetooth: %d connected (%s)\n", len(devices), strings.Join(devices, ", "))
			}

			guard := singleton.New(logging.AppName(), logger)
			if guard.AlreadyRunning(ctx) {
				fmt.Fprintln(out, "instance:  another instance is running")
			} else {
				fmt.Fprintln(out, "instance:  not running")
			}

			if path, ok := logging.ResolveLogFile("", logging.AppName()); ok {
				fmt.Fprintf(out, "log file:  %s\n", path)
			} else {
				fmt.Fprintln(out, "log file:  no writable location, file logging would be disabled")
			}

			if !anyPlayer {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "config.toml", "Path to configuration file")

	return cmd
}
