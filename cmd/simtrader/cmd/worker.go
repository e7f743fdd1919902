package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/simtrader/simulation"
	"github.com/rustyeddy/simtrader/store"
)

// workerCmd is the child side of the process launcher. It is not meant to be
// run by hand: stdin carries commands and stdout carries JSON events.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run one simulation worker (used by run)",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runWorker,
}

var workerID string

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().StringVar(&workerID, "id", "", "simulation id (required)")
	workerCmd.MarkFlagRequired("id")
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serveWorker(ctx, workerID, os.Stdin, os.Stdout)
}

// serveWorker loads and runs one simulation. Failures before the worker runs
// are reported on out as an error event, which the supervisor records on the
// simulation; once running, the worker reports its own failures.
func serveWorker(ctx context.Context, simID string, in io.Reader, out io.Writer) error {
	st, err := openStore(ctx, appCfg.Store)
	if err != nil {
		return reportFailure(out, simID, err)
	}
	defer st.Close()

	rec, err := st.GetSimulation(ctx, simID)
	if err != nil {
		return reportFailure(out, simID, fmt.Errorf("load simulation: %w", err))
	}
	w, cleanup, err := simulation.BuildWorker(ctx, simulation.Env{
		Store:   st,
		Config:  appCfg,
		Secrets: secrets,
		Log:     logger,
	}, rec)
	if err != nil {
		return reportFailure(out, simID, fmt.Errorf("build worker: %w", err))
	}
	defer cleanup()

	return simulation.ServeWorker(ctx, w, in, out, logger)
}

func reportFailure(out io.Writer, simID string, err error) error {
	_ = json.NewEncoder(out).Encode(simulation.Event{
		SimulationID: simID,
		Status:       store.StatusError,
		Message:      err.Error(),
		Timestamp:    time.Now().UTC(),
	})
	return err
}
