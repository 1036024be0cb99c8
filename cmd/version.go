package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set by Execute from the values goreleaser injects into main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(ui.Out, versionString())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func versionString() string {
	return fmt.Sprintf("issuetracker %s (commit %s, built %s)", buildVersion, buildCommit, buildDate)
}
