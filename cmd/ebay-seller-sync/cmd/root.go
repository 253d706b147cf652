// Package cmd implements the ebay-seller-sync server commands.
package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/donaldgifford/ebay-seller-sync/internal/config"
	"github.com/donaldgifford/ebay-seller-sync/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "ebay-seller-sync",
	Short: "Keep eBay seller tokens fresh and sync seller data",
	Long: "ebay-seller-sync keeps OAuth credentials of connected eBay seller accounts\n" +
		"valid and runs per-account sync workers for the Sell APIs.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format override (text, json)")

	cobra.CheckErr(viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")))
	cobra.CheckErr(viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")))
	cobra.CheckErr(viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format")))

	viper.SetEnvPrefix("ESS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		refreshCmd(),
		syncCmd(),
		accountsCmd(),
		vaultCmd(),
		versionCmd(),
	)
}

// Root returns the root cobra command for documentation generation.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies the logging overrides from
// flags or ESS_ environment variables. The resulting logger becomes the
// slog default.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if lvl := viper.GetString("log_level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if f := viper.GetString("log_format"); f != "" {
		cfg.Logging.Format = f
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)
	return cfg, log, nil
}
