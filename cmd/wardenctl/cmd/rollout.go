package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

type progressView struct {
	Pending            int     `json:"pending"`
	InProgress         int     `json:"inProgress"`
	Succeeded          int     `json:"succeeded"`
	Failed             int     `json:"failed"`
	RolledBack         int     `json:"rolledBack"`
	Targeted           int     `json:"targeted"`
	CompletionFraction float64 `json:"completionFraction"`
	SuccessRate        float64 `json:"successRate"`
}

type rolloutView struct {
	ID            string       `json:"id"`
	ReleaseID     string       `json:"releaseId"`
	Status        string       `json:"status"`
	CurrentStage  int          `json:"currentStage"`
	FleetSize     int          `json:"fleetSize"`
	NextAdvanceAt *time.Time   `json:"nextAdvanceAt"`
	CreatedAt     time.Time    `json:"createdAt"`
	Progress      progressView `json:"progress"`
}

type recordView struct {
	ApplianceID      string `json:"applianceId"`
	Stage            int    `json:"stage"`
	TargetVersion    string `json:"targetVersion"`
	Status           string `json:"status"`
	DispatchAttempts int    `json:"dispatchAttempts"`
	Reason           string `json:"reason"`
}

func newRolloutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Manage rollouts",
	}
	cmd.AddCommand(
		newRolloutListCommand(),
		newRolloutStatusCommand(),
		newRolloutCreateCommand(),
		newRolloutActionCommand("pause", "Pause an in-progress rollout"),
		newRolloutActionCommand("resume", "Resume a paused rollout"),
		newRolloutActionCommand("advance", "Advance a rollout to its next stage now"),
		newRolloutActionCommand("cancel", "Cancel a rollout permanently"),
	)
	return cmd
}

func newRolloutListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rollouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rollouts []rolloutView
			if err := client().get("/fleet/rollouts", &rollouts); err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow("ID", "STATUS", "STAGE", "TARGETED", "SUCCEEDED", "FAILED", "SUCCESS")
			for _, r := range rollouts {
				table.AddRow(r.ID, r.Status, r.CurrentStage, r.Progress.Targeted,
					r.Progress.Succeeded, r.Progress.Failed,
					fmt.Sprintf("%.1f%%", r.Progress.SuccessRate*100))
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newRolloutStatusCommand() *cobra.Command {
	var showRecords bool
	cmd := &cobra.Command{
		Use:   "status ID",
		Short: "Show one rollout's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r rolloutView
			if err := client().get("/fleet/rollouts/"+args[0], &r); err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow("ID:", r.ID)
			table.AddRow("Status:", r.Status)
			table.AddRow("Stage:", r.CurrentStage)
			table.AddRow("Fleet size:", r.FleetSize)
			table.AddRow("Targeted:", r.Progress.Targeted)
			table.AddRow("Pending:", r.Progress.Pending)
			table.AddRow("In progress:", r.Progress.InProgress)
			table.AddRow("Succeeded:", r.Progress.Succeeded)
			table.AddRow("Failed:", r.Progress.Failed)
			table.AddRow("Rolled back:", r.Progress.RolledBack)
			table.AddRow("Completion:", fmt.Sprintf("%.1f%%", r.Progress.CompletionFraction*100))
			table.AddRow("Success rate:", fmt.Sprintf("%.1f%%", r.Progress.SuccessRate*100))
			if r.NextAdvanceAt != nil {
				table.AddRow("Next advance:", r.NextAdvanceAt.Format(time.RFC3339))
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)

			if showRecords {
				var records []recordView
				if err := client().get("/fleet/rollouts/"+args[0]+"/records", &records); err != nil {
					return err
				}
				rt := uitable.New()
				rt.AddRow("APPLIANCE", "STAGE", "VERSION", "STATUS", "ATTEMPTS", "REASON")
				for _, rec := range records {
					rt.AddRow(rec.ApplianceID, rec.Stage, rec.TargetVersion, rec.Status, rec.DispatchAttempts, rec.Reason)
				}
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), rt)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showRecords, "records", false, "Also list per-appliance records")
	return cmd
}

func newRolloutCreateCommand() *cobra.Command {
	var planFile string
	cmd := &cobra.Command{
		Use:   "create VERSION",
		Short: "Create a rollout of a release from a plan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(planFile)
			if err != nil {
				return err
			}
			var plan json.RawMessage
			if err := json.Unmarshal(data, &plan); err != nil {
				return fmt.Errorf("invalid plan file: %w", err)
			}
			body := map[string]any{
				"releaseVersion": args[0],
				"plan":           plan,
			}
			var r rolloutView
			if err := client().post("/fleet/rollouts", body, &r); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rollout %s created (%s, fleet of %d)\n", r.ID, r.Status, r.FleetSize)
			return nil
		},
	}
	cmd.Flags().StringVarP(&planFile, "plan", "p", "", "Path to the rollout plan JSON file")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func newRolloutActionCommand(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r rolloutView
			if err := client().post("/fleet/rollouts/"+args[0]+"/"+action, nil, &r); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rollout %s is now %s\n", r.ID, r.Status)
			return nil
		},
	}
}
