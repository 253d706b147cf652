package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func triggerCmd() *cobra.Command {
	triggerRoot := &cobra.Command{
		Use:   "trigger",
		Short: "Run a scheduled job now",
		Long: "Run a scheduled job on the server immediately. The run is recorded in\n" +
			"the job history like a scheduled one.",
	}

	triggerRoot.AddCommand(
		&cobra.Command{
			Use:   "refresh",
			Short: "Run a token refresh sweep",
			RunE: func(_ *cobra.Command, _ []string) error {
				sum, err := newClient().TriggerRefresh(context.Background())
				if err != nil {
					return err
				}
				if jsonOutput() {
					return outputJSON(sum)
				}
				fmt.Printf("Refresh sweep: candidates=%d refreshed=%d failed=%d skipped=%d\n",
					sum.Candidates, sum.Refreshed, sum.Failed, sum.Skipped)
				return nil
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Run a sync cycle over every due pair",
			RunE: func(_ *cobra.Command, _ []string) error {
				sum, err := newClient().TriggerSync(context.Background())
				if err != nil {
					return err
				}
				if jsonOutput() {
					return outputJSON(sum)
				}
				fmt.Printf("Sync cycle: due=%d succeeded=%d failed=%d not_claimed=%d skipped=%d\n",
					sum.Due, sum.Succeeded, sum.Failed, sum.NotClaimed, sum.Skipped)
				return nil
			},
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Mark stale runs and prune old run history",
			RunE: func(_ *cobra.Command, _ []string) error {
				sum, err := newClient().TriggerCleanup(context.Background())
				if err != nil {
					return err
				}
				if jsonOutput() {
					return outputJSON(sum)
				}
				fmt.Printf("Cleanup: stale_marked=%d runs_deleted=%d refresh_logs_deleted=%d\n",
					sum.StaleMarked, sum.RunsDeleted, sum.RefreshLogsDeleted)
				return nil
			},
		},
	)

	return triggerRoot
}

func quotaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show the eBay API call budget",
		RunE: func(_ *cobra.Command, _ []string) error {
			q, err := newClient().GetQuota(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(q)
			}
			tw := newTabWriter(os.Stdout)
			tw.writef("Daily Limit:\t%d\n", q.DailyLimit)
			tw.writef("Used:\t%d\n", q.DailyUsed)
			tw.writef("Remaining:\t%d\n", q.Remaining)
			if q.Exhausted {
				tw.writef("Status:\texhausted, sync paused until reset\n")
			}
			tw.writef("Resets:\t%s\n", q.ResetAt.Format(timeLayout))
			if len(q.Families) > 0 {
				tw.writef("\nFAMILY\tCALLS\tSHARE\n")
				for _, f := range q.Families {
					tw.writef("%s\t%d\t%.0f%%\n", f.APIFamily, f.Calls, f.Share*100)
				}
			}
			return tw.finish()
		},
	}
}
