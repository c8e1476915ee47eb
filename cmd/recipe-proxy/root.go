package main

import (
	"fmt"

	"github.com/Sternrassler/recipe-cache/internal/config"
	"github.com/Sternrassler/recipe-cache/internal/credentials"
	"github.com/Sternrassler/recipe-cache/pkg/logging"
	"github.com/spf13/cobra"
)

// app carries state shared by all subcommands.
type app struct {
	configPath string
	cfg        *config.Config
	keys       *credentials.KeyringStore
}

func newRootCmd() *cobra.Command {
	a := &app{keys: credentials.NewKeyringStore("")}

	cmd := &cobra.Command{
		Use:   "recipe-proxy",
		Short: "Cache-backed recipe API proxy",
		Long: `recipe-proxy serves recipe lists and recipes from a durable TTL cache,
calling the recipe API only for missing or expired entries.

Quick start:
  recipe-proxy auth login            # Store your API key in the OS keyring
  recipe-proxy fetch popular         # Print the popular recipes list
  recipe-proxy serve                 # Start the HTTP proxy on :8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			a.cfg = cfg
			logging.Setup(cfg.Log.Logging())
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: ./recipe-cache.yaml)")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newFetchCmd(a))
	cmd.AddCommand(newWarmCmd(a))
	cmd.AddCommand(newAuthCmd(a))

	return cmd
}
