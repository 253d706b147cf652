package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	accountsRoot := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect and toggle connected seller accounts",
	}

	accountsRoot.AddCommand(
		accountsListCmd(),
		accountsGetCmd(),
		accountsSetActiveCmd("activate", true),
		accountsSetActiveCmd("deactivate", false),
	)

	return accountsRoot
}

func accountsListCmd() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List connected accounts",
		Example: `  essctl accounts list
  essctl accounts list --active-only --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			accounts, err := newClient().ListAccounts(context.Background(), activeOnly)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(accounts)
			}
			if len(accounts) == 0 {
				fmt.Println("No accounts found.")
				return nil
			}
			return printAccountsTable(accounts)
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active-only", false, "only list active accounts")
	return cmd
}

func accountsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <account_id>",
		Short: "Show an account and its token status",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			detail, err := newClient().GetAccount(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(detail)
			}
			return printAccountDetail(detail)
		},
	}
}

func accountsSetActiveCmd(use string, active bool) *cobra.Command {
	short := "Deactivate an account; it is skipped by refresh and sync"
	if active {
		short = "Activate an account"
	}
	return &cobra.Command{
		Use:   use + " <account_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			detail, err := newClient().SetAccountActive(context.Background(), args[0], active)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(detail)
			}
			fmt.Printf("Account %s active=%v\n", detail.ID, detail.Active)
			return nil
		},
	}
}
