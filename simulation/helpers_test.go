package simulation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/simtrader/ai"
	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/market"
	"github.com/rustyeddy/simtrader/notify"
	"github.com/rustyeddy/simtrader/pkg/id"
	"github.com/rustyeddy/simtrader/risk"
	"github.com/rustyeddy/simtrader/sim"
	"github.com/rustyeddy/simtrader/store"
	"github.com/rustyeddy/simtrader/store/sqlite"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s, got %s", want, got)
}

// scriptedAdvisor returns its signals in order and then repeats the last one.
type scriptedAdvisor struct {
	mu      sync.Mutex
	signals []market.Signal
	err     error
	panics  bool
	calls   int
}

func (a *scriptedAdvisor) Name() string { return "scripted" }

func (a *scriptedAdvisor) Outlook(_ context.Context, _, _ string) (ai.Outlook, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.panics {
		panic("advisor exploded")
	}
	if a.err != nil {
		return ai.Outlook{}, a.err
	}
	sig := market.Neutral
	if n := len(a.signals); n > 0 {
		sig = a.signals[min(a.calls-1, n-1)]
	}
	return ai.Outlook{Interpretation: sig, Reasons: "scripted " + string(sig)}, nil
}

func (a *scriptedAdvisor) set(err error, signals ...market.Signal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
	a.signals = signals
	a.calls = 0
}

func (a *scriptedAdvisor) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fixedQuotes struct {
	mu    sync.Mutex
	price decimal.Decimal
}

func (q *fixedQuotes) Quote(_ context.Context, symbol string) (market.Quote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.price.IsPositive() {
		return market.Quote{}, market.ErrNoQuote
	}
	return market.Quote{Symbol: symbol, Price: q.price, Source: "fixed", Time: time.Now()}, nil
}

func (q *fixedQuotes) Set(p string) {
	q.mu.Lock()
	q.price = d(p)
	q.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	n.mu.Lock()
	n.events = append(n.events, e)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) Types() []notify.Type {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Type, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

// failingTrades rejects every trade insert.
type failingTrades struct {
	store.TradeStore
}

func (failingTrades) InsertTrade(context.Context, *store.Trade) error {
	return errors.New("disk full")
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "sim.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// testConfig opens 0.1 BTC at 50000 with a 0.1% fee.
func testConfig() config.Simulation {
	cfg := config.DefaultSimulation()
	cfg.Symbol = "BTC"
	cfg.CryptoDisplayName = "Bitcoin"
	cfg.InitialCapital = 10000
	cfg.PositionSize = risk.FixedAmount(5000)
	cfg.FeeRate = 0.001
	cfg.StopLossPercent = nil
	cfg.MaxDailyTrades = 10
	cfg.CheckIntervalSeconds = 3600
	return cfg
}

func createRecord(t *testing.T, st store.Store, cfg config.Simulation, status store.Status) *store.Simulation {
	t.Helper()
	blob, err := cfg.JSON()
	require.NoError(t, err)
	rec := &store.Simulation{ID: id.New(), Name: "test " + cfg.Symbol, Config: blob, Status: status}
	require.NoError(t, st.CreateSimulation(context.Background(), rec))
	return rec
}

type harness struct {
	st      *sqlite.Store
	rec     *store.Simulation
	engine  *sim.Engine
	quotes  *fixedQuotes
	advisor *scriptedAdvisor
	notes   *recordingNotifier
	worker  *Worker
}

func newHarness(t *testing.T, cfg config.Simulation, signals ...market.Signal) *harness {
	t.Helper()
	st := newTestStore(t)
	rec := createRecord(t, st, cfg, store.StatusRunning)
	return buildHarness(t, st, rec, cfg, signals...)
}

func buildHarness(t *testing.T, st *sqlite.Store, rec *store.Simulation, cfg config.Simulation, signals ...market.Signal) *harness {
	t.Helper()
	engine, err := sim.NewEngine(context.Background(), st.Journal(), sim.Account{
		ID:             rec.ID,
		InitialCapital: cfg.InitialCapitalDecimal(),
		FeeRate:        cfg.FeeRateDecimal(),
	})
	require.NoError(t, err)

	h := &harness{
		st:      st,
		rec:     rec,
		engine:  engine,
		quotes:  &fixedQuotes{price: d("50000")},
		advisor: &scriptedAdvisor{signals: signals},
		notes:   &recordingNotifier{},
	}
	h.worker = NewWorker(rec.ID, rec.Name, cfg, Deps{
		Exchange: sim.NewPaper(engine, h.quotes),
		Oracle:   h.quotes,
		Advisor:  h.advisor,
		Trades:   st,
		Journal:  st.Journal(),
		Notifier: h.notes,
		Log:      zerolog.Nop(),
	})
	return h
}

// testFactory builds workers on st that always see a neutral market unless
// signals are given.
func testFactory(st *sqlite.Store, signals ...market.Signal) WorkerFactory {
	return func(ctx context.Context, rec *store.Simulation) (*Worker, func(), error) {
		cfg, err := config.ParseSimulation(rec.Config)
		if err != nil {
			return nil, nil, err
		}
		engine, err := sim.NewEngine(ctx, st.Journal(), sim.Account{
			ID:             rec.ID,
			InitialCapital: cfg.InitialCapitalDecimal(),
			FeeRate:        cfg.FeeRateDecimal(),
		})
		if err != nil {
			return nil, nil, err
		}
		quotes := &fixedQuotes{price: d("50000")}
		return NewWorker(rec.ID, rec.Name, cfg, Deps{
			Exchange: sim.NewPaper(engine, quotes),
			Oracle:   quotes,
			Advisor:  &scriptedAdvisor{signals: signals},
			Trades:   st,
			Journal:  st.Journal(),
			Notifier: &recordingNotifier{},
			Log:      zerolog.Nop(),
		}), nil, nil
	}
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for worker event")
	}
	return Event{}
}
