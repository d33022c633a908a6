package cmd

import (
	"fmt"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

type applianceView struct {
	ID             string     `json:"id"`
	CurrentVersion string     `json:"currentVersion"`
	LastSeenAt     *time.Time `json:"lastSeenAt"`
}

func newApplianceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appliance",
		Short: "Inspect the appliance fleet",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known appliances",
		RunE: func(cmd *cobra.Command, args []string) error {
			var appliances []applianceView
			if err := client().get("/fleet/appliances", &appliances); err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow("ID", "VERSION", "LAST SEEN")
			for _, a := range appliances {
				lastSeen := "never"
				if a.LastSeenAt != nil {
					lastSeen = a.LastSeenAt.Format(time.RFC3339)
				}
				table.AddRow(a.ID, a.CurrentVersion, lastSeen)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	})
	return cmd
}

type statsView struct {
	Appliances         int            `json:"appliances"`
	Versions           map[string]int `json:"versions"`
	ActiveRollouts     int            `json:"activeRollouts"`
	InProgressRollouts int            `json:"inProgressRollouts"`
	PausedRollouts     int            `json:"pausedRollouts"`
	RecentSuccessRate  float64        `json:"recentSuccessRate"`
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show fleet-wide version distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats statsView
			if err := client().get("/fleet/stats", &stats); err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow("Appliances:", stats.Appliances)
			table.AddRow("Active rollouts:", stats.ActiveRollouts)
			table.AddRow("In progress:", stats.InProgressRollouts)
			table.AddRow("Paused:", stats.PausedRollouts)
			table.AddRow("30d success rate:", fmt.Sprintf("%.1f%%", stats.RecentSuccessRate*100))
			fmt.Fprintln(cmd.OutOrStdout(), table)

			vt := uitable.New()
			vt.AddRow("VERSION", "COUNT")
			for version, n := range stats.Versions {
				vt.AddRow(version, n)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), vt)
			return nil
		},
	}
}
