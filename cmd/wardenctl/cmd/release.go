package cmd

import (
	"fmt"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

type releaseView struct {
	ID           string    `json:"id"`
	Version      string    `json:"version"`
	ArtifactURL  string    `json:"artifactUrl"`
	Checksum     string    `json:"checksum"`
	AgentVersion string    `json:"agentVersion"`
	Active       bool      `json:"active"`
	Latest       bool      `json:"latest"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newReleaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Manage software releases",
	}
	cmd.AddCommand(
		newReleaseListCommand(),
		newReleaseCreateCommand(),
		newReleaseActivateCommand(),
		newReleaseLatestCommand(),
	)
	return cmd
}

func newReleaseListCommand() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/fleet/releases"
			if activeOnly {
				path += "?active=true"
			}
			var releases []releaseView
			if err := client().get(path, &releases); err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow("VERSION", "ACTIVE", "LATEST", "AGENT", "CREATED")
			for _, r := range releases {
				table.AddRow(r.Version, r.Active, r.Latest, r.AgentVersion, r.CreatedAt.Format(time.RFC3339))
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only show active releases")
	return cmd
}

func newReleaseCreateCommand() *cobra.Command {
	var artifactURL, checksum, agentVersion, notes string
	var sizeBytes int64
	cmd := &cobra.Command{
		Use:   "create VERSION",
		Short: "Register a new release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"version":      args[0],
				"artifactUrl":  artifactURL,
				"checksum":     checksum,
				"agentVersion": agentVersion,
				"sizeBytes":    sizeBytes,
				"notes":        notes,
			}
			var rel releaseView
			if err := client().post("/fleet/releases", body, &rel); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Release %s registered (%s)\n", rel.Version, rel.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&artifactURL, "artifact-url", "", "Artifact location (URL or object key)")
	cmd.Flags().StringVar(&checksum, "checksum", "", "Artifact checksum")
	cmd.Flags().StringVar(&agentVersion, "agent-version", "", "Minimum agent version required")
	cmd.Flags().Int64Var(&sizeBytes, "size", 0, "Artifact size in bytes")
	cmd.Flags().StringVar(&notes, "notes", "", "Release notes")
	cmd.MarkFlagRequired("artifact-url")
	cmd.MarkFlagRequired("checksum")
	return cmd
}

func newReleaseActivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "activate VERSION",
		Short: "Mark a release eligible for rollouts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rel releaseView
			if err := client().post("/fleet/releases/"+args[0]+"/activate", nil, &rel); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Release %s activated\n", rel.Version)
			return nil
		},
	}
}

func newReleaseLatestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "latest VERSION",
		Short: "Move the latest marker to a release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rel releaseView
			if err := client().put("/fleet/releases/"+args[0]+"/latest", nil, &rel); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Release %s is now latest\n", rel.Version)
			return nil
		},
	}
}
