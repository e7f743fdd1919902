package simulation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/simtrader/ai"
	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/internal/logging"
	"github.com/rustyeddy/simtrader/journal"
	"github.com/rustyeddy/simtrader/notify"
	"github.com/rustyeddy/simtrader/oracle"
	"github.com/rustyeddy/simtrader/sim"
	"github.com/rustyeddy/simtrader/store"
)

// Env carries what a worker needs beyond its own record.
type Env struct {
	Store   store.Store
	Config  *config.Config
	Secrets config.Secrets
	Log     zerolog.Logger
}

// BuildWorker wires a paper exchange, market oracle, AI advisor and
// notification manager for rec. The ledger is rebuilt from the journal, so a
// restarted simulation continues where it left off. When journal.csv_dir is
// set every journal row is also mirrored to <csv_dir>/<id>.csv. The returned
// cleanup closes the mirror.
func BuildWorker(ctx context.Context, env Env, rec *store.Simulation) (*Worker, func(), error) {
	cfg, err := config.ParseSimulation(rec.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	log := logging.Simulation(logging.Component(env.Log, "worker"), rec.ID)

	source, err := oracle.New(env.Config.Oracle, log)
	if err != nil {
		return nil, nil, err
	}
	advisor, err := ai.NewAdvisor(cfg.AIProvider, env.Secrets)
	if err != nil {
		return nil, nil, err
	}

	j, err := workerJournal(env, rec.ID, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := j.Close(); err != nil {
			log.Warn().Err(err).Msg("close journal mirror")
		}
	}

	engine, err := sim.NewEngine(ctx, j, sim.Account{
		ID:             rec.ID,
		InitialCapital: cfg.InitialCapitalDecimal(),
		FeeRate:        cfg.FeeRateDecimal(),
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("rebuild ledger: %w", err)
	}

	return NewWorker(rec.ID, rec.Name, cfg, Deps{
		Exchange: sim.NewPaper(engine, source),
		Oracle:   source,
		Advisor:  advisor,
		Trades:   env.Store,
		Journal:  j,
		Notifier: notify.ForSimulation(log, notify.StoreRecorder{Store: env.Store}, env.Config.Notify, env.Secrets, cfg),
		Log:      log,
	}), cleanup, nil
}

// workerJournal is the store's journal, teed to a CSV file when configured.
// Closing it never closes the store.
func workerJournal(env Env, simID string, log zerolog.Logger) (journal.Journal, error) {
	tee := &journal.Tee{Primary: env.Store.Journal(), Log: log}
	dir := env.Config.Journal.CSVDir
	if dir == "" {
		return tee, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal csv dir: %w", err)
	}
	mirror, err := journal.NewCSV(filepath.Join(dir, simID+".csv"), simID)
	if err != nil {
		return nil, fmt.Errorf("open journal mirror: %w", err)
	}
	tee.Mirrors = append(tee.Mirrors, mirror)
	return tee, nil
}

// Factory adapts BuildWorker to InProcessLauncher.
func (env Env) Factory() WorkerFactory {
	return func(ctx context.Context, rec *store.Simulation) (*Worker, func(), error) {
		return BuildWorker(ctx, env, rec)
	}
}
