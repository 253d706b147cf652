package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/ebay-seller-sync/internal/tokens"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

func refreshCmd() *cobra.Command {
	var (
		accountID string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh eBay access tokens",
		Long: "Without --account, run one refresh sweep over every token that expires\n" +
			"within the lookahead window. With --account, resolve that account's\n" +
			"access token, refreshing it when needed or when --force is set.",
		Example: `  ebay-seller-sync refresh
  ebay-seller-sync refresh --account 3f1c... --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if accountID == "" {
				sum, err := a.refresher.RunSweep(ctx)
				if err != nil {
					return fmt.Errorf("refresh sweep: %w", err)
				}
				return outputJSON(sum)
			}

			res := a.provider.GetValidAccessToken(ctx, tokens.Request{
				AccountID:    accountID,
				ForceRefresh: force,
				TriggeredBy:  domain.TriggerManual,
			})
			if err := outputJSON(res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("refreshing token: %s", res.ErrorCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id to refresh")
	cmd.Flags().BoolVar(&force, "force", false, "refresh even if the stored token is still valid")
	return cmd
}
