package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	tokenRoot := &cobra.Command{
		Use:   "token",
		Short: "Refresh account tokens and view the refresh log",
	}

	tokenRoot.AddCommand(
		tokenRefreshCmd(),
		tokenLogsCmd(),
	)

	return tokenRoot
}

func tokenRefreshCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh <account_id>",
		Short: "Resolve an account's access token, refreshing it if needed",
		Args:  cobra.ExactArgs(1),
		Example: `  essctl token refresh 3f1c...
  essctl token refresh 3f1c... --force`,
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := newClient().RefreshToken(context.Background(), args[0], force)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(res)
			}
			if !res.Success {
				return fmt.Errorf("token unavailable: %s: %s", res.ErrorCode, res.ErrorMessage)
			}
			fmt.Printf("Token ok (source=%s, expires=%s, hash=%s)\n",
				res.Source, formatTime(res.ExpiresAt), res.TokenHash)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "refresh even if the stored token is still valid")
	return cmd
}

func tokenLogsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs <account_id>",
		Short: "Show recent refresh attempts of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			logs, err := newClient().ListRefreshLogs(context.Background(), args[0], limit)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(logs)
			}
			if len(logs) == 0 {
				fmt.Println("No refresh attempts recorded.")
				return nil
			}
			return printRefreshLogsTable(logs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries")
	return cmd
}
