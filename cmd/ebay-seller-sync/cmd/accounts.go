package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/ebay-seller-sync/internal/ebay"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

func accountsCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "accounts",
		Short: "Manage connected seller accounts",
	}
	root.AddCommand(accountsListCmd(), accountsConnectCmd())
	return root
}

func accountsListCmd() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List connected accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			accounts, err := s.ListAccounts(ctx, activeOnly)
			if err != nil {
				return err
			}
			return outputJSON(accounts)
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active-only", false, "only list active accounts")
	return cmd
}

// accountsConnectCmd stores a token pair obtained from eBay's consent flow.
func accountsConnectCmd() *cobra.Command {
	var (
		ebayUserID       string
		displayName      string
		ownerID          string
		accessToken      string
		refreshToken     string
		scopes           string
		expiresIn        time.Duration
		refreshExpiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Store an authorized token pair for a seller account",
		Long: "Create or update the account identified by --ebay-user-id and store the\n" +
			"given tokens encrypted with the vault secret. Clears any reconnect flag.\n" +
			"Tokens may also be passed as ESS_ACCESS_TOKEN and ESS_REFRESH_TOKEN.",
		Example: `  ESS_ACCESS_TOKEN=v^1.1#... ESS_REFRESH_TOKEN=v^1.1#... \
    ebay-seller-sync accounts connect --ebay-user-id seller42 --name "Seller 42"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ebayUserID == "" {
				return errors.New("--ebay-user-id is required")
			}
			if accessToken == "" {
				accessToken = os.Getenv("ESS_ACCESS_TOKEN")
			}
			if refreshToken == "" {
				refreshToken = os.Getenv("ESS_REFRESH_TOKEN")
			}
			if accessToken == "" {
				return errors.New("an access token is required")
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

			acct := &domain.Account{
				EbayUserID:  ebayUserID,
				DisplayName: displayName,
				OwnerID:     ownerID,
				Active:      true,
			}
			if err := a.store.UpsertAccount(ctx, acct); err != nil {
				return err
			}

			now := time.Now()
			grant := &ebay.TokenGrant{
				AccessToken:  accessToken,
				ExpiresAt:    now.Add(expiresIn),
				RefreshToken: refreshToken,
			}
			if refreshToken != "" && refreshExpiresIn > 0 {
				exp := now.Add(refreshExpiresIn)
				grant.RefreshExpiresAt = &exp
			}
			if err := a.provider.StoreAuthorization(ctx, acct.ID, grant, scopes); err != nil {
				return fmt.Errorf("storing authorization: %w", err)
			}

			log.Info("account connected", "account_id", acct.ID, "ebay_user_id", ebayUserID)
			return outputJSON(acct)
		},
	}

	cmd.Flags().StringVar(&ebayUserID, "ebay-user-id", "", "eBay user id of the seller")
	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	cmd.Flags().StringVar(&ownerID, "owner", "", "owning user id")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "OAuth access token")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "OAuth refresh token")
	cmd.Flags().StringVar(&scopes, "scopes", "", "space separated granted scopes")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 2*time.Hour, "access token lifetime")
	cmd.Flags().DurationVar(&refreshExpiresIn, "refresh-expires-in", 18*30*24*time.Hour, "refresh token lifetime")
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
