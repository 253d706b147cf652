package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/ebay-seller-sync/internal/engine"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

func syncCmd() *cobra.Command {
	var (
		accountID string
		family    string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run sync workers",
		Long: "Without --account, run one sync cycle over every due (account, api family)\n" +
			"pair. With --account, run that account now regardless of its interval,\n" +
			"for one --family or for every configured family.",
		Example: `  ebay-seller-sync sync
  ebay-seller-sync sync --account 3f1c... --family orders`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if accountID == "" && family != "" {
				return errors.New("--family requires --account")
			}
			var families []domain.APIFamily
			if family != "" {
				f := domain.APIFamily(family)
				if !f.Valid() {
					return fmt.Errorf("unknown api family %q", family)
				}
				families = []domain.APIFamily{f}
			}

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
				sum, err := a.driver.RunCycle(ctx)
				if err != nil {
					return fmt.Errorf("sync cycle: %w", err)
				}
				return outputJSON(sum)
			}

			if len(families) == 0 {
				families = a.driver.Families()
			}
			results := make([]engine.PairResult, 0, len(families))
			failed := 0
			for _, f := range families {
				res := a.driver.RunOnce(ctx, accountID, f)
				if res.Outcome == engine.PairFailed {
					failed++
				}
				results = append(results, res)
			}
			if err := outputJSON(results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sync runs failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id to sync now")
	cmd.Flags().StringVar(&family, "family", "", "api family to sync (orders, finances)")
	return cmd
}
