// Package cmd implements the wardenctl command tree.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var serverAddr string

// NewRootCommand builds the wardenctl command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wardenctl",
		Short:         "Operate the fleet rollout engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&serverAddr, "server", "s", "http://localhost:8080", "Engine API address")

	root.AddCommand(
		newReleaseCommand(),
		newRolloutCommand(),
		newApplianceCommand(),
		newStatsCommand(),
	)
	return root
}

// Execute runs wardenctl.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func client() *apiClient {
	return newAPIClient(serverAddr)
}
