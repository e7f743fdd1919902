package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/simtrader/journal"
	"github.com/rustyeddy/simtrader/market"
	"github.com/rustyeddy/simtrader/notify"
	"github.com/rustyeddy/simtrader/store"
)

func TestWorkerOpensAndClosesTrade(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig(), market.Bullish, market.Bearish)

	require.NoError(t, h.worker.Cycle(ctx))
	pos, ok := h.engine.Position("BTC")
	require.True(t, ok)
	assert.Equal(t, market.Long, pos.Side)
	assertDec(t, "0.1", pos.Quantity)
	assertDec(t, "9995", h.engine.Capital())

	h.quotes.Set("52000")
	require.NoError(t, h.worker.Cycle(ctx))
	_, ok = h.engine.Position("BTC")
	assert.False(t, ok)
	assertDec(t, "10189.8", h.engine.Capital())

	trades, err := h.st.ListTrades(ctx, h.rec.ID, 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	tr := trades[0]
	assert.True(t, tr.Closed())
	assert.Equal(t, journal.OpenLong, tr.Action)
	assertDec(t, "50000", tr.EntryPrice)
	assertDec(t, "52000", tr.ExitPrice.Decimal)
	assertDec(t, "194.8", tr.PnL.Decimal)
	assertDec(t, "10.2", tr.Fees)

	entries, err := h.st.Journal().Entries(ctx, h.rec.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, journal.CloseLong, entries[1].Action)
	assert.Equal(t, "Bearish", entries[1].Interpretation)

	assert.Equal(t, []notify.Type{notify.Signal, notify.TradeOpened, notify.Signal, notify.TradeClosed}, h.notes.Types())
}

func TestWorkerOpensShortOnBearish(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig(), market.Bearish, market.Bullish)

	require.NoError(t, h.worker.Cycle(ctx))
	pos, ok := h.engine.Position("BTC")
	require.True(t, ok)
	assert.Equal(t, market.Short, pos.Side)

	h.quotes.Set("49000")
	require.NoError(t, h.worker.Cycle(ctx))
	trades, err := h.st.ListTrades(ctx, h.rec.ID, 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	// 0.1 * 1000 gross, less the 4.9 exit fee.
	assertDec(t, "95.1", trades[0].PnL.Decimal)
}

func TestWorkerHoldsOnNeutral(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig(), market.Neutral)

	require.NoError(t, h.worker.Cycle(ctx))
	_, ok := h.engine.Position("BTC")
	assert.False(t, ok)
	assertDec(t, "10000", h.engine.Capital())
	assert.Equal(t, []notify.Type{notify.Signal}, h.notes.Types())
}

func TestWorkerStopLossSkipsAdvisor(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	stop := 10.0
	cfg.StopLossPercent = &stop
	h := newHarness(t, cfg, market.Bullish)

	require.NoError(t, h.worker.Cycle(ctx))
	require.Equal(t, 1, h.advisor.Calls())

	h.quotes.Set("44000")
	require.NoError(t, h.worker.Cycle(ctx))
	assert.Equal(t, 1, h.advisor.Calls())

	_, ok := h.engine.Position("BTC")
	assert.False(t, ok)
	trades, err := h.st.ListTrades(ctx, h.rec.ID, 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assertDec(t, "44000", trades[0].ExitPrice.Decimal)

	entries, err := h.st.Journal().Entries(ctx, h.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StopLossInterpretation, entries[len(entries)-1].Interpretation)
}

func TestWorkerAdvisorFailureKeepsLedger(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig())
	h.advisor.set(context.DeadlineExceeded)

	require.NoError(t, h.worker.Cycle(ctx))
	assertDec(t, "10000", h.engine.Capital())
	entries, err := h.st.Journal().Entries(ctx, h.rec.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, []notify.Type{notify.Error}, h.notes.Types())

	h.advisor.set(nil, market.Bullish)
	require.NoError(t, h.worker.Cycle(ctx))
	_, ok := h.engine.Position("BTC")
	assert.True(t, ok)
}

func TestWorkerDailyTradeLimit(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxDailyTrades = 1
	h := newHarness(t, cfg, market.Bullish, market.Bearish, market.Bullish)

	require.NoError(t, h.worker.Cycle(ctx))
	require.NoError(t, h.worker.Cycle(ctx))
	require.NoError(t, h.worker.Cycle(ctx))

	_, ok := h.engine.Position("BTC")
	assert.False(t, ok)
	types := h.notes.Types()
	assert.Equal(t, notify.Warning, types[len(types)-1])

	trades, err := h.st.ListTrades(ctx, h.rec.ID, 0)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestWorkerRunStopDuringSleep(t *testing.T) {
	h := newHarness(t, testConfig())
	commands := make(chan Command, 1)
	events := make(chan Event, 8)
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(context.Background(), commands, events) }()

	ev := nextEvent(t, events)
	assert.Equal(t, store.StatusRunning, ev.Status)
	assert.Equal(t, h.rec.ID, ev.SimulationID)
	require.Eventually(t, func() bool { return h.advisor.Calls() == 1 }, 2*time.Second, 10*time.Millisecond)

	commands <- CmdStop
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop during its sleep")
	}
	ev = nextEvent(t, events)
	assert.Equal(t, store.StatusStopped, ev.Status)
	assert.Equal(t, "stopped by command", ev.Message)
}

func TestWorkerRunPauseResume(t *testing.T) {
	cfg := testConfig()
	cfg.CheckIntervalSeconds = 1
	h := newHarness(t, cfg, market.Neutral)
	commands := make(chan Command, 4)
	events := make(chan Event, 8)
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(context.Background(), commands, events) }()

	assert.Equal(t, store.StatusRunning, nextEvent(t, events).Status)
	require.Eventually(t, func() bool { return h.advisor.Calls() >= 1 }, 2*time.Second, 10*time.Millisecond)

	commands <- CmdPause
	assert.Equal(t, store.StatusPaused, nextEvent(t, events).Status)
	calls := h.advisor.Calls()

	// Two intervals pass without a cycle.
	time.Sleep(2200 * time.Millisecond)
	assert.Equal(t, calls, h.advisor.Calls())

	// Bullish from here on; resuming runs a cycle right away and trades.
	h.advisor.set(nil, market.Bullish)
	commands <- CmdResume
	ev := nextEvent(t, events)
	assert.Equal(t, store.StatusRunning, ev.Status)
	assert.Equal(t, "resumed", ev.Message)
	require.Eventually(t, func() bool {
		_, ok := h.engine.Position("BTC")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	commands <- CmdStop
	require.NoError(t, <-done)
}

func TestWorkerRunContextCancel(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 8)
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(ctx, nil, events) }()

	assert.Equal(t, store.StatusRunning, nextEvent(t, events).Status)
	cancel()
	require.NoError(t, <-done)
	ev := nextEvent(t, events)
	assert.Equal(t, store.StatusStopped, ev.Status)
	assert.Equal(t, "context cancelled", ev.Message)
}

func TestWorkerRunStoreFailureIsFatal(t *testing.T) {
	h := newHarness(t, testConfig(), market.Bullish)
	h.worker.deps.Trades = failingTrades{TradeStore: h.st}
	events := make(chan Event, 8)

	err := h.worker.Run(context.Background(), nil, events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record trade")

	assert.Equal(t, store.StatusRunning, nextEvent(t, events).Status)
	ev := nextEvent(t, events)
	assert.Equal(t, store.StatusError, ev.Status)
	assert.Contains(t, ev.Message, "disk full")
}

func TestWorkerRunRecoversPanic(t *testing.T) {
	h := newHarness(t, testConfig())
	h.advisor.panics = true
	events := make(chan Event, 8)

	err := h.worker.Run(context.Background(), nil, events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in trading cycle")

	nextEvent(t, events)
	ev := nextEvent(t, events)
	assert.Equal(t, store.StatusError, ev.Status)
}

func TestWorkerResumesLedgerFromJournal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig(), market.Bullish)
	require.NoError(t, h.worker.Cycle(ctx))

	// A fresh worker for the same record sees the open position.
	h2 := buildHarness(t, h.st, h.rec, testConfig(), market.Bullish)
	pos, ok := h2.engine.Position("BTC")
	require.True(t, ok)
	assertDec(t, "0.1", pos.Quantity)
	assertDec(t, "9995", h2.engine.Capital())

	require.NoError(t, h2.worker.Cycle(ctx))
	entries, err := h.st.Journal().Entries(ctx, h.rec.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
