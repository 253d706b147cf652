package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	syncRoot := &cobra.Command{
		Use:   "sync",
		Short: "Inspect, toggle and run per-account sync workers",
	}

	syncRoot.AddCommand(
		syncStatusCmd(),
		syncToggleCmd("enable", true),
		syncToggleCmd("disable", false),
		syncRunCmd(),
	)

	return syncRoot
}

func syncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <account_id>",
		Short: "Show the sync state of every api family of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			states, err := newClient().ListSyncStates(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(states)
			}
			if len(states) == 0 {
				fmt.Println("No sync state recorded yet.")
				return nil
			}
			return printSyncStatesTable(states)
		},
	}
}

func syncToggleCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <account_id> <api_family>",
		Short:   use + " syncing of one api family",
		Args:    cobra.ExactArgs(2),
		Example: "  essctl sync " + use + " 3f1c... finances",
		RunE: func(_ *cobra.Command, args []string) error {
			if err := newClient().SetSyncEnabled(context.Background(), args[0], args[1], enabled); err != nil {
				return err
			}
			fmt.Printf("%s sync for %s enabled=%v\n", args[1], args[0], enabled)
			return nil
		},
	}
}

func syncRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <account_id> <api_family>",
		Short: "Run one api family of an account now",
		Long: "Run one api family of an account now, ignoring its sync interval.\n" +
			"The run is refused while another run of the same pair is live.",
		Args:    cobra.ExactArgs(2),
		Example: "  essctl sync run 3f1c... orders",
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := newClient().RunSync(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(res)
			}
			fmt.Printf("Run %s: %s (fetched=%d stored=%d)\n", dash(res.RunID), res.Outcome, res.Fetched, res.Stored)
			if res.Error != "" {
				fmt.Printf("Error: %s\n", res.Error)
			}
			return nil
		},
	}
}
