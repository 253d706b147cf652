package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/ebay-seller-sync/internal/api/client"
)

func runsCmd() *cobra.Command {
	var q apiclient.RunsQuery

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List worker run history",
		Example: `  essctl runs --account 3f1c...
  essctl runs --family finances --status error --limit 10`,
		RunE: func(_ *cobra.Command, _ []string) error {
			runs, err := newClient().ListRuns(context.Background(), q)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Println("No runs found.")
				return nil
			}
			return printRunsTable(runs)
		},
	}

	cmd.Flags().StringVar(&q.AccountID, "account", "", "filter by account id")
	cmd.Flags().StringVar(&q.APIFamily, "family", "", "filter by api family")
	cmd.Flags().StringVar(&q.Status, "status", "", "filter by status (running, success, error, stale)")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "maximum runs")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "runs to skip")
	return cmd
}
