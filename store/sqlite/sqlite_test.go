package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/simtrader/journal"
	"github.com/rustyeddy/simtrader/market"
	"github.com/rustyeddy/simtrader/store"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "simtrader.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func newSim(id string) *store.Simulation {
	return &store.Simulation{
		ID:     id,
		Name:   "btc-" + id,
		Config: json.RawMessage(`{"symbol":"BTCUSDT"}`),
	}
}

func TestSimulationCRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore(t)

	sim := newSim("sim-1")
	require.NoError(t, s.CreateSimulation(ctx, sim))
	assert.Equal(t, store.StatusPending, sim.Status)

	err := s.CreateSimulation(ctx, newSim("sim-1"))
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	got, err := s.GetSimulation(ctx, "sim-1")
	require.NoError(t, err)
	assert.Equal(t, "btc-sim-1", got.Name)
	assert.JSONEq(t, `{"symbol":"BTCUSDT"}`, string(got.Config))
	assert.Nil(t, got.StartedAt)
	assert.Zero(t, got.PID)

	started := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	got.Status = store.StatusRunning
	got.PID = 4242
	got.StartedAt = &started
	require.NoError(t, s.UpdateSimulation(ctx, got))

	got, err = s.GetSimulation(ctx, "sim-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, got.Status)
	assert.Equal(t, 4242, got.PID)
	require.NotNil(t, got.StartedAt)
	assert.True(t, got.StartedAt.Equal(started))

	_, err = s.GetSimulation(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.UpdateSimulation(ctx, newSim("missing"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListAndCountActive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore(t)

	statuses := []store.Status{store.StatusPending, store.StatusRunning, store.StatusPaused, store.StatusStopped, store.StatusError}
	for i, st := range statuses {
		sim := newSim(string(rune('a' + i)))
		sim.Status = st
		sim.CreatedAt = time.Date(2025, 1, 1, 0, i, 0, 0, time.UTC)
		require.NoError(t, s.CreateSimulation(ctx, sim))
	}

	all, err := s.ListSimulations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "e", all[0].ID, "newest first")

	active, err := s.ListSimulations(ctx, store.ActiveStatuses...)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	n, err := s.CountActive(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.CountActive(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTradeLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.CreateSimulation(ctx, newSim("sim-1")))

	tr := &store.Trade{
		ID:             "tr-1",
		SimulationID:   "sim-1",
		Symbol:         "BTCUSDT",
		Side:           market.Long,
		Action:         journal.OpenLong,
		Quantity:       decimal.RequireFromString("0.1"),
		EntryPrice:     decimal.NewFromInt(50000),
		Fees:           decimal.NewFromInt(5),
		Interpretation: "Bullish",
	}
	require.NoError(t, s.InsertTrade(ctx, tr))

	open, err := s.OpenTrade(ctx, "sim-1", "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "tr-1", open.ID)
	assert.False(t, open.Closed())
	assert.False(t, open.PnL.Valid)
	assert.False(t, open.ExitPrice.Valid)

	closedAt := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CloseTrade(ctx, "tr-1", decimal.NewFromInt(52000), decimal.RequireFromString("194.8"), decimal.RequireFromString("10.2"), closedAt))

	err = s.CloseTrade(ctx, "tr-1", decimal.NewFromInt(1), decimal.Zero, decimal.Zero, closedAt)
	assert.ErrorIs(t, err, store.ErrNotFound, "already closed")

	_, err = s.OpenTrade(ctx, "sim-1", "BTCUSDT")
	assert.ErrorIs(t, err, store.ErrNotFound)

	trades, err := s.ListTrades(ctx, "sim-1", 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Closed())
	assert.Equal(t, "194.8", trades[0].PnL.Decimal.String())
	assert.Equal(t, "52000", trades[0].ExitPrice.Decimal.String())

	stats, err := store.SimulationStats(ctx, s, "sim-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, "100", stats.WinRate.String())
}

func TestNotifications(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.CreateSimulation(ctx, newSim("sim-1")))

	sent := time.Now().UTC()
	require.NoError(t, s.InsertNotification(ctx, &store.Notification{
		ID: "n-1", SimulationID: "sim-1", Type: "signal", Symbol: "BTCUSDT",
		Channel: "telegram", Content: "Bullish", Status: store.DeliverySent, SentAt: &sent,
	}))
	require.NoError(t, s.InsertNotification(ctx, &store.Notification{
		ID: "n-2", Type: "simulation_status", Content: "supervisor started",
	}))

	list, err := s.ListNotifications(ctx, "sim-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, store.DeliverySent, list[0].Status)
	assert.NotNil(t, list[0].SentAt)

	global, err := s.ListNotifications(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Equal(t, store.DeliveryPending, global[0].Status)
}

func TestDeleteCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.CreateSimulation(ctx, newSim("sim-1")))
	require.NoError(t, s.InsertTrade(ctx, &store.Trade{
		ID: "tr-1", SimulationID: "sim-1", Symbol: "BTC", Side: market.Long, Action: journal.OpenLong,
		Quantity: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(1), Fees: decimal.Zero,
	}))
	require.NoError(t, s.Journal().Append(ctx, journal.Entry{
		Account: "sim-1", Time: time.Now(), Action: journal.OpenLong, Symbol: "BTC",
		Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1), CapitalAfter: decimal.NewFromInt(100),
	}))

	require.NoError(t, s.DeleteSimulation(ctx, "sim-1"))

	trades, err := s.ListTrades(ctx, "sim-1", 0)
	require.NoError(t, err)
	assert.Empty(t, trades)

	entries, err := s.Journal().Entries(ctx, "sim-1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.ErrorIs(t, s.DeleteSimulation(ctx, "sim-1"), store.ErrNotFound)
}

func TestConcurrentWritersShareFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s1, path := newTestStore(t)
	s2, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })

	require.NoError(t, s1.CreateSimulation(ctx, newSim("sim-1")))

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			sim, err := s1.GetSimulation(ctx, "sim-1")
			if err != nil {
				errs <- err
				return
			}
			sim.Status = store.StatusRunning
			errs <- s1.UpdateSimulation(ctx, sim)
		}(i)
		go func(i int) {
			defer wg.Done()
			errs <- s2.Journal().Append(ctx, journal.Entry{
				Account: "sim-1", Time: time.Now(), Action: journal.OpenLong, Symbol: "BTC",
				Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(int64(i + 1)), CapitalAfter: decimal.NewFromInt(100),
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	entries, err := s1.Journal().Entries(ctx, "sim-1")
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}
