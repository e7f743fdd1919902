package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/internal/logging"
	"github.com/rustyeddy/simtrader/internal/trace"
)

var rootCmd = &cobra.Command{
	Use:   "simtrader",
	Short: "AI-driven paper trading simulations for crypto assets",
	Long: `Simtrader runs paper-trading simulations driven by AI market outlooks.

Each simulation asks an AI provider for a Bullish, Bearish or Neutral view of
one asset on a fixed interval, opens and closes paper positions on that view,
and journals every fill. Up to five simulations run at once, each in its own
worker process.

It provides tools for:
  - Creating, listing and inspecting simulations
  - Supervising running simulations from an interactive console
  - Exporting the trade journal as org or CSV
  - Telegram and Discord notifications

Secrets (AI keys, chat tokens) are read from the environment or a .env file.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

var (
	cfgFile string
	envFile string

	appCfg  *config.Config
	secrets config.Secrets
	logger  zerolog.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "application config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with API keys and tokens")
}

// setup loads the environment and configuration shared by every command.
// Without --config the defaults apply, adjusted by environment variables.
func setup(cmd *cobra.Command, args []string) error {
	config.LoadEnv(envFile)
	secrets = config.SecretsFromEnv()

	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(cfgFile); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	appCfg = cfg

	// Logs go to stderr; worker processes use stdout for events.
	logger = logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	return trace.Init(cfg.Trace.Enabled, cfg.Trace.Service, os.Stderr)
}

func teardown(cmd *cobra.Command, args []string) error {
	if err := trace.Shutdown(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("flush traces: %w", err)
	}
	return nil
}
