package simulation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/simtrader/ai"
	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/journal"
	"github.com/rustyeddy/simtrader/pkg/id"
	"github.com/rustyeddy/simtrader/store"
)

func factoryEnv(t *testing.T, csvDir string) (Env, *store.Simulation) {
	t.Helper()
	st := newTestStore(t)

	blob, err := config.DefaultSimulation().JSON()
	require.NoError(t, err)
	rec := &store.Simulation{ID: id.New(), Name: "factory", Config: blob, Status: store.StatusStopped}
	require.NoError(t, st.CreateSimulation(context.Background(), rec))

	cfg := config.Default()
	cfg.Journal.CSVDir = csvDir
	return Env{
		Store:   st,
		Config:  cfg,
		Secrets: config.Secrets{AnthropicAPIKey: "test-key"},
		Log:     zerolog.Nop(),
	}, rec
}

func TestBuildWorkerMirrorsJournalToCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journals")
	env, rec := factoryEnv(t, dir)
	ctx := context.Background()

	w, cleanup, err := BuildWorker(ctx, env, rec)
	require.NoError(t, err)
	require.NotNil(t, w)

	e := journal.Entry{
		Account: rec.ID, Time: time.Now().UTC(), Action: journal.OpenLong, Symbol: "BTCUSDT",
		Quantity: decimal.RequireFromString("0.1"), Price: decimal.RequireFromString("50000"),
		Fees: decimal.RequireFromString("5"), PnL: decimal.Zero,
		CapitalAfter: decimal.RequireFromString("9995"), Interpretation: "Bullish",
	}
	require.NoError(t, w.deps.Journal.Append(ctx, e))
	cleanup()

	stored, err := env.Store.Journal().Entries(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	mirror, err := journal.NewCSV(filepath.Join(dir, rec.ID+".csv"), rec.ID)
	require.NoError(t, err)
	defer mirror.Close()
	copied, err := mirror.Entries(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, copied, 1)
	assert.Equal(t, journal.OpenLong, copied[0].Action)
	assert.True(t, copied[0].Price.Equal(e.Price))
}

func TestBuildWorkerWithoutMirror(t *testing.T) {
	env, rec := factoryEnv(t, "")

	w, cleanup, err := BuildWorker(context.Background(), env, rec)
	require.NoError(t, err)
	require.NotNil(t, w)
	cleanup()

	// Closing the worker journal leaves the store usable.
	_, err = env.Store.Journal().Entries(context.Background(), rec.ID)
	assert.NoError(t, err)
}

func TestBuildWorkerErrors(t *testing.T) {
	t.Run("bad config", func(t *testing.T) {
		env, rec := factoryEnv(t, "")
		rec.Config = json.RawMessage(`{"initial_capital": "lots"`)
		_, _, err := BuildWorker(context.Background(), env, rec)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing key", func(t *testing.T) {
		env, rec := factoryEnv(t, "")
		env.Secrets = config.Secrets{}
		_, _, err := BuildWorker(context.Background(), env, rec)
		assert.ErrorIs(t, err, ai.ErrProvider)
	})

	t.Run("csv dir is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "taken")
		require.NoError(t, os.WriteFile(file, nil, 0o644))
		env, rec := factoryEnv(t, file)
		_, _, err := BuildWorker(context.Background(), env, rec)
		assert.ErrorContains(t, err, "journal csv dir")
	})
}
