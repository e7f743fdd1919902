package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/simtrader/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage the application configuration file.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  simtrader config init -o simtrader.yaml
  simtrader config validate -f simtrader.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new application configuration file with default settings.

Example:
  simtrader config init -o simtrader.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and can be loaded.

Example:
  simtrader config validate -f simtrader.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "simtrader.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  simtrader --config %s run\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Store: %s\n", cfg.Store.Driver)
	fmt.Printf("  Supervisor: max %d simulations, stop timeout %s\n",
		cfg.Supervisor.MaxConcurrent, cfg.Supervisor.StopTimeoutDuration())
	fmt.Printf("  Market data: %s (retries: %d)\n", cfg.Oracle.Source, cfg.Oracle.Retries)
	fmt.Printf("  Notifications: telegram=%t discord=%t\n", cfg.Notify.Telegram, cfg.Notify.Discord)
	if cfg.Journal.CSVDir != "" {
		fmt.Printf("  Journal CSV copies: %s\n", cfg.Journal.CSVDir)
	}
	return nil
}
