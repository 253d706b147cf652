package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/ebay-seller-sync/internal/tokens"
	"github.com/donaldgifford/ebay-seller-sync/internal/vault"
)

func vaultCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vault",
		Short: "Credential vault utilities",
	}
	root.AddCommand(vaultEncryptCmd(), vaultMigrateCmd())
	return root
}

func vaultEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a value read from stdin with the vault secret",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			v, err := vault.New(cfg.Vault.Secret, vault.WithLogger(log))
			if err != nil {
				return err
			}

			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading stdin: %w", err)
			}
			plaintext := strings.TrimRight(line, "\r\n")
			if plaintext == "" {
				return errors.New("nothing to encrypt")
			}

			sealed, err := v.Encrypt(plaintext)
			if err != nil {
				return err
			}
			fmt.Println(sealed)
			return nil
		},
	}
}

func vaultMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-tokens",
		Short: "Encrypt stored tokens that are still plaintext",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			v, err := vault.New(cfg.Vault.Secret, vault.WithLogger(log))
			if err != nil {
				return err
			}

			n, err := tokens.EncryptLegacyTokens(ctx, s, v)
			if err != nil {
				return fmt.Errorf("encrypting legacy tokens: %w", err)
			}
			log.Info("legacy tokens encrypted", "updated", n)
			return nil
		},
	}
}
