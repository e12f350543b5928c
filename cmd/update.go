package cmd

import (
	"fmt"
	"os"

	"github.com/smazurov/radiod/internal/updater"
	"github.com/spf13/cobra"
)

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var repository string
	var prerelease bool
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the binary to the latest release",
		Run: func(c *cobra.Command, _ []string) {
			svc, err := updater.New(updater.Options{
				Repository: repository,
				Prerelease: prerelease,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "update: %v\n", err)
				os.Exit(1)
			}
			if !svc.IsEnabled() {
				fmt.Fprintf(os.Stderr, "update: disabled: %s\n", svc.DisabledReason())
				os.Exit(1)
			}

			info, err := svc.Check(c.Context())
			if err != nil {
				fmt.Fprintf(os.Stderr, "update: %v\n", err)
				os.Exit(1)
			}

			if !info.UpdateAvailable {
				fmt.Printf("Already up to date (%s)\n", info.CurrentVersion)
				return
			}
			fmt.Printf("Update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)

			if checkOnly {
				return
			}

			if err := svc.Apply(c.Context()); err != nil {
				fmt.Fprintf(os.Stderr, "update: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Updated to %s\n", info.LatestVersion)
		},
	}

	cmd.Flags().StringVar(&repository, "repository", "smazurov/radiod", "GitHub repository to update from")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Allow prerelease versions")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only check, do not apply")

	return cmd
}
