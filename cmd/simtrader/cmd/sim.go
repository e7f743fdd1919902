package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/risk"
	"github.com/rustyeddy/simtrader/simulation"
	"github.com/rustyeddy/simtrader/store"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Create and inspect simulations",
	Long: `Manage simulation records in the configured store.

Simulations are started, paused and stopped from the "run" console, which owns
the worker processes. These commands work whether or not it is running.

Subcommands:
  init    - Write a simulation config template
  create  - Create a pending simulation
  list    - List simulations
  show    - Show one simulation
  trades  - List the trades of a simulation
  stats   - Summarize the closed trades of a simulation
  delete  - Delete a simulation that is not running

Examples:
  simtrader sim init -o btc.yaml
  simtrader sim create -f btc.yaml --name "BTC claude"
  simtrader sim list --status running`,
}

var simInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a simulation config template",
	Args:  cobra.NoArgs,
	RunE:  runSimInit,
}

var simCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a pending simulation",
	Long: `Create a simulation from a config file, flags, or both. Flags override
values from the file. At most five simulations may be active at once.

Example:
  simtrader sim create --symbol ETHUSDT --provider deepseek --size 2.5%`,
	Args: cobra.NoArgs,
	RunE: runSimCreate,
}

var simListCmd = &cobra.Command{
	Use:   "list",
	Short: "List simulations",
	Args:  cobra.NoArgs,
	RunE:  runSimList,
}

var simShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one simulation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimShow,
}

var simTradesCmd = &cobra.Command{
	Use:   "trades <id>",
	Short: "List the trades of a simulation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimTrades,
}

var simStatsCmd = &cobra.Command{
	Use:   "stats <id>",
	Short: "Summarize the closed trades of a simulation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimStats,
}

var simDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a simulation that is not running",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimDelete,
}

var (
	simInitOutput string

	simFile     string
	simName     string
	simSymbol   string
	simProvider string
	simCapital  float64
	simSize     string
	simInterval int

	simListStatus string
	simTradeLimit int
)

func init() {
	rootCmd.AddCommand(simCmd)
	simCmd.AddCommand(simInitCmd, simCreateCmd, simListCmd, simShowCmd, simTradesCmd, simStatsCmd, simDeleteCmd)

	simInitCmd.Flags().StringVarP(&simInitOutput, "output", "o", "simulation.yaml", "output file (.yaml, .yml or .json)")

	simCreateCmd.Flags().StringVarP(&simFile, "file", "f", "", "simulation config file (YAML or JSON)")
	simCreateCmd.Flags().StringVar(&simName, "name", "", "display name")
	simCreateCmd.Flags().StringVar(&simSymbol, "symbol", "", "asset symbol, e.g. BTCUSDT")
	simCreateCmd.Flags().StringVar(&simProvider, "provider", "", "AI provider: "+strings.Join(config.AIProviders, ", "))
	simCreateCmd.Flags().Float64Var(&simCapital, "capital", 0, "initial capital in USD")
	simCreateCmd.Flags().StringVar(&simSize, "size", "", "position size: an amount (500) or a percent of capital (2.5%)")
	simCreateCmd.Flags().IntVar(&simInterval, "interval", 0, "seconds between checks (60-3600)")

	simListCmd.Flags().StringVar(&simListStatus, "status", "", "comma separated statuses to include")
	simTradesCmd.Flags().IntVarP(&simTradeLimit, "limit", "n", 20, "number of trades to show (0 for all)")
}

// withStore opens the configured store for the duration of fn.
func withStore(fn func(ctx context.Context, st store.Store) error) error {
	ctx := context.Background()
	st, err := openStore(ctx, appCfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

// registry is a supervisor without a launcher. It serves record operations
// for commands that never start workers.
func registry(st store.Store) *simulation.Supervisor {
	return simulation.NewSupervisor(st, nil, logger, simulation.OptionsFrom(appCfg.Supervisor))
}

func runSimInit(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultSimulation()
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(simInitOutput, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshal simulation: %w", err)
	}
	if err := os.WriteFile(simInitOutput, data, 0o644); err != nil {
		return fmt.Errorf("write simulation: %w", err)
	}

	fmt.Printf("✓ Created simulation template: %s\n", simInitOutput)
	fmt.Println("\nEdit the file and create the simulation with:")
	fmt.Printf("  simtrader sim create -f %s\n", simInitOutput)
	return nil
}

func simulationFromFlags(cmd *cobra.Command) (config.Simulation, error) {
	cfg := config.DefaultSimulation()
	if simFile != "" {
		var err error
		if cfg, err = config.LoadSimulationFile(simFile); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("symbol") {
		cfg.Symbol = simSymbol
		cfg.CryptoDisplayName = ""
	}
	if flags.Changed("provider") {
		cfg.AIProvider = simProvider
	}
	if flags.Changed("capital") {
		cfg.InitialCapital = simCapital
	}
	if flags.Changed("size") {
		size, err := risk.ParseSizing(simSize)
		if err != nil {
			return cfg, err
		}
		cfg.PositionSize = size
	}
	if flags.Changed("interval") {
		cfg.CheckIntervalSeconds = simInterval
	}
	cfg.Normalize()
	return cfg, nil
}

func runSimCreate(cmd *cobra.Command, args []string) error {
	cfg, err := simulationFromFlags(cmd)
	if err != nil {
		return err
	}
	return withStore(func(ctx context.Context, st store.Store) error {
		rec, err := registry(st).Create(ctx, simName, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Created simulation %s (%s)\n", rec.ID, rec.Name)
		fmt.Println("\nStart it from the console:")
		fmt.Printf("  simtrader run --start %s\n", rec.ID)
		return nil
	})
}

func parseStatuses(s string) ([]store.Status, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []store.Status
	for _, part := range strings.Split(s, ",") {
		st := store.Status(strings.ToLower(strings.TrimSpace(part)))
		if !st.Valid() {
			return nil, fmt.Errorf("unknown status %q", part)
		}
		out = append(out, st)
	}
	return out, nil
}

func runSimList(cmd *cobra.Command, args []string) error {
	statuses, err := parseStatuses(simListStatus)
	if err != nil {
		return err
	}
	return withStore(func(ctx context.Context, st store.Store) error {
		views, err := registry(st).List(ctx, statuses...)
		if err != nil {
			return err
		}
		printSimulationList(cmd.OutOrStdout(), views)
		return nil
	})
}

func runSimShow(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st store.Store) error {
		v, err := registry(st).Get(ctx, args[0])
		if err != nil {
			return err
		}
		printSimulation(cmd.OutOrStdout(), v)
		return nil
	})
}

func runSimTrades(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st store.Store) error {
		trades, err := registry(st).Trades(ctx, args[0], simTradeLimit)
		if err != nil {
			return err
		}
		printTrades(cmd.OutOrStdout(), trades)
		return nil
	})
}

func runSimStats(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st store.Store) error {
		stats, err := registry(st).Stats(ctx, args[0])
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	})
}

func runSimDelete(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st store.Store) error {
		sup := registry(st)
		v, err := sup.Get(ctx, args[0])
		if err != nil {
			return err
		}
		// Workers of a running console belong to that process.
		if v.Status == store.StatusRunning || v.Status == store.StatusPaused {
			return fmt.Errorf("%w: simulation %s is %s, stop it from the run console first",
				simulation.ErrInvalidState, v.ID, v.Status)
		}
		if err := sup.Delete(ctx, v.ID); err != nil {
			return err
		}
		fmt.Printf("✓ Deleted simulation %s\n", v.ID)
		return nil
	})
}
