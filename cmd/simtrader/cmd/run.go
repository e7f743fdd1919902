package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/simtrader/internal/logging"
	"github.com/rustyeddy/simtrader/simulation"
	"github.com/rustyeddy/simtrader/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Supervise simulations from an interactive console",
	Long: `Run the supervisor. It marks simulations left running by a previous run as
stopped, watches worker processes and records their status. Commands are
read from stdin; type "help" for the list.

Workers run as child processes of this command unless supervisor.in_process
is set in the config. Interrupting the command stops every worker.

Examples:
  simtrader run
  simtrader run --start 01HV6Z8K2Q0J3W5X7Y9A1B3C5D
  simtrader run --headless --start 01HV6Z8K2Q0J3W5X7Y9A1B3C5D`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runStart    []string
	runHeadless bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runStart, "start", nil, "simulation ids to start immediately")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "no console, run until interrupted")
}

func newLauncher(st store.Store) simulation.Launcher {
	log := logging.Component(logger, "launcher")
	if appCfg.Supervisor.InProcess {
		env := simulation.Env{Store: st, Config: appCfg, Secrets: secrets, Log: logger}
		return &simulation.InProcessLauncher{Build: env.Factory(), Log: log}
	}

	var args []string
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	args = append(args, "--env-file", envFile)
	return &simulation.ProcessLauncher{Args: args, Log: log}
}

// startSupervisor marks simulations orphaned by a previous run as stopped
// before launching ids, so an orphan can be started again. Run is then started
// in the background; its result arrives on the returned channel.
func startSupervisor(ctx context.Context, sup *simulation.Supervisor, ids []string, out io.Writer, log zerolog.Logger) (<-chan error, error) {
	n, err := sup.Recover(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		log.Info().Int("count", n).Msg("recovered orphaned simulations")
	}

	runDone := make(chan error, 1)
	go func() { runDone <- sup.Run(ctx) }()

	for _, simID := range ids {
		if err := sup.Start(ctx, simID); err != nil {
			log.Error().Err(err).Str("simulation_id", simID).Msg("start failed")
			continue
		}
		fmt.Fprintf(out, "✓ Started %s\n", simID)
	}
	return runDone, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, appCfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	sup := simulation.NewSupervisor(st, newLauncher(st),
		logging.Component(logger, "supervisor"), simulation.OptionsFrom(appCfg.Supervisor))

	runDone, err := startSupervisor(ctx, sup, runStart, os.Stdout, logger)
	if err != nil {
		return err
	}

	if runHeadless {
		<-ctx.Done()
	} else {
		fmt.Println("simtrader console, type help for commands")
		c := &console{sup: sup, out: cmd.OutOrStdout()}
		c.serve(ctx, os.Stdin)
		stop()
	}

	fmt.Println("Stopping workers...")
	if err := <-runDone; err != nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	return nil
}
