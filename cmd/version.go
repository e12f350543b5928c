package cmd

import (
	"fmt"

	"github.com/smazurov/radiod/internal/version"
	"github.com/spf13/cobra"
)

// CreateVersionCmd creates the version command.
func CreateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(c *cobra.Command, _ []string) {
			info := version.Get()
			out := c.OutOrStdout()
			fmt.Fprintf(out, "radiod %s\n", info.Version)
			fmt.Fprintf(out, "  commit:     %s\n", info.GitCommit)
			fmt.Fprintf(out, "  built:      %s\n", info.BuildDate)
			fmt.Fprintf(out, "  go version: %s\n", info.GoVersion)
			fmt.Fprintf(out, "  platform:   %s\n", info.Platform)
		},
	}
}
