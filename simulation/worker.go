// Package simulation runs paper-trading simulations. A Worker drives one
// simulation's decision loop; the Supervisor owns the lifecycle of every
// worker and enforces the global concurrency limit.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rustyeddy/simtrader/ai"
	"github.com/rustyeddy/simtrader/broker"
	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/internal/trace"
	"github.com/rustyeddy/simtrader/journal"
	"github.com/rustyeddy/simtrader/market"
	"github.com/rustyeddy/simtrader/notify"
	"github.com/rustyeddy/simtrader/oracle"
	"github.com/rustyeddy/simtrader/pkg/id"
	"github.com/rustyeddy/simtrader/risk"
	"github.com/rustyeddy/simtrader/store"
)

// StopLossInterpretation marks trades closed by the stop-loss check.
const StopLossInterpretation = "StopLoss"

// Notifier delivers worker notifications.
type Notifier interface {
	Notify(ctx context.Context, e notify.Event) error
}

// quoteObserver is implemented by exchanges that can reuse a quote fetched by
// the worker for their own fills.
type quoteObserver interface {
	Observe(q market.Quote)
}

// Deps are the collaborators of a worker. Oracle may be nil, in which case
// prompts carry no market context and prices come from the exchange.
type Deps struct {
	Exchange broker.Exchange
	Oracle   market.QuoteSource
	Advisor  ai.Advisor
	Trades   store.TradeStore
	Journal  journal.Journal
	Notifier Notifier
	Log      zerolog.Logger
	Now      func() time.Time
}

type Worker struct {
	id   string
	name string
	cfg  config.Simulation
	deps Deps
	log  zerolog.Logger
}

func NewWorker(simID, name string, cfg config.Simulation, deps Deps) *Worker {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewManager(deps.Log, nil)
	}
	if cfg.CryptoDisplayName == "" {
		cfg.CryptoDisplayName = market.DisplayName(cfg.Symbol)
	}
	return &Worker{
		id:   simID,
		name: name,
		cfg:  cfg,
		deps: deps,
		log:  deps.Log.With().Str("simulation_id", simID).Str("symbol", cfg.Symbol).Logger(),
	}
}

func (w *Worker) ID() string { return w.id }

// Run executes cycles until a stop command arrives, ctx is cancelled or a
// cycle fails unexpectedly. Commands are honored during the sleep between
// cycles. The returned error is the failure that moved the worker to error.
func (w *Worker) Run(ctx context.Context, commands <-chan Command, events chan<- Event) error {
	paused := false
	w.emit(events, store.StatusRunning, "")
	w.status(ctx, "running", "")
	w.log.Info().Dur("interval", w.cfg.CheckInterval()).Msg("worker started")

	for {
		if !paused {
			if err := w.safeCycle(ctx); err != nil {
				if ctx.Err() != nil {
					break
				}
				w.log.Error().Err(err).Msg("worker failed")
				w.status(context.WithoutCancel(ctx), "failed", err.Error())
				w.emit(events, store.StatusError, err.Error())
				return err
			}
		}

		var stop bool
		if paused, stop = w.wait(ctx, commands, events, paused); stop {
			break
		}
	}

	msg := "stopped by command"
	if ctx.Err() != nil {
		msg = "context cancelled"
	}
	w.log.Info().Str("reason", msg).Msg("worker stopped")
	w.status(context.WithoutCancel(ctx), "stopped", msg)
	w.emit(events, store.StatusStopped, msg)
	return nil
}

// wait sleeps for the check interval while handling commands. It returns the
// new paused flag and whether the worker must stop. Resuming ends the wait so
// trading picks up immediately.
func (w *Worker) wait(ctx context.Context, commands <-chan Command, events chan<- Event, paused bool) (bool, bool) {
	timer := time.NewTimer(w.cfg.CheckInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return paused, true
		case <-timer.C:
			return paused, false
		case cmd, ok := <-commands:
			if !ok {
				return paused, true
			}
			switch cmd {
			case CmdStop:
				return paused, true
			case CmdPause:
				if !paused {
					paused = true
					w.log.Info().Msg("worker paused")
					w.status(ctx, "paused", "")
					w.emit(events, store.StatusPaused, "")
				}
			case CmdResume:
				if paused {
					w.log.Info().Msg("worker resumed")
					w.status(ctx, "resumed", "")
					w.emit(events, store.StatusRunning, "resumed")
					return false, false
				}
			default:
				w.log.Warn().Str("command", string(cmd)).Msg("ignoring unknown command")
			}
		}
	}
}

func (w *Worker) emit(events chan<- Event, status store.Status, msg string) {
	if events == nil {
		return
	}
	ev := Event{SimulationID: w.id, Status: status, Message: msg, Timestamp: w.deps.Now().UTC()}
	select {
	case events <- ev:
	case <-time.After(time.Second):
		w.log.Warn().Str("status", string(status)).Msg("event channel full, dropping event")
	}
}

// safeCycle turns a panic inside a cycle into an error.
func (w *Worker) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Bytes("stack", debug.Stack()).Msg("cycle panicked")
			err = fmt.Errorf("panic in trading cycle: %v", r)
		}
	}()
	return w.Cycle(ctx)
}

// Cycle runs one trading step. Collaborator failures are logged, notified and
// end the cycle without touching the ledger; only store, journal and
// invariant failures are returned.
func (w *Worker) Cycle(ctx context.Context) (err error) {
	ctx, span := trace.StartSpan(ctx, "worker.cycle",
		attribute.String("simulation.id", w.id),
		attribute.String("simulation.symbol", w.cfg.Symbol))
	defer func() { trace.End(span, err) }()

	symbol := w.cfg.Symbol
	ex := w.deps.Exchange

	pos, hasPos, err := ex.Position(ctx, symbol)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}

	var (
		quote     *market.Quote
		marketCtx string
	)
	if w.deps.Oracle != nil {
		q, qerr := w.deps.Oracle.Quote(ctx, symbol)
		if qerr != nil {
			w.log.Warn().Err(qerr).Msg("market data unavailable, continuing without context")
		} else {
			quote = &q
			marketCtx = oracle.FormatContext(q)
			if obs, ok := ex.(quoteObserver); ok {
				obs.Observe(q)
			}
		}
	}

	if hasPos && quote != nil && pos.StopLossHit(quote.Price, w.cfg.StopLoss()) {
		w.log.Info().
			Str("price", quote.Price.String()).
			Str("stop", pos.StopPrice(w.cfg.StopLoss()).String()).
			Msg("stop loss triggered")
		return w.closePosition(ctx, quote.Price, StopLossInterpretation)
	}

	prompt := ai.BuildPrompt(w.cfg.CryptoDisplayName, marketCtx)
	outlook, err := w.deps.Advisor.Outlook(ctx, prompt, w.cfg.CryptoDisplayName)
	if err != nil {
		w.log.Error().Err(err).Str("provider", w.deps.Advisor.Name()).Msg("AI outlook failed, skipping cycle")
		w.notify(ctx, notify.ErrorEvent(w.id, w.name, symbol, fmt.Errorf("AI outlook failed: %w", err)))
		return nil
	}
	w.log.Info().Str("signal", string(outlook.Interpretation)).Msg("signal received")
	w.notify(ctx, notify.SignalEvent(w.id, w.name, symbol, outlook.Interpretation, outlook.Reasons, w.cfg.IncludeReasoning))

	action := Decide(outlook.Interpretation, pos, hasPos, ex.Capabilities())
	if action.Kind == Hold {
		w.log.Debug().Bool("has_position", hasPos).Msg("holding")
		return nil
	}

	price, err := w.price(ctx, quote)
	if err != nil {
		w.log.Error().Err(err).Msg("no price available, skipping cycle")
		w.notify(ctx, notify.ErrorEvent(w.id, w.name, symbol, err))
		return nil
	}

	if action.Kind == Close {
		return w.closePosition(ctx, price, string(outlook.Interpretation))
	}
	return w.openPosition(ctx, action.Side, price, string(outlook.Interpretation))
}

func (w *Worker) price(ctx context.Context, quote *market.Quote) (decimal.Decimal, error) {
	if quote != nil && quote.Price.IsPositive() {
		return quote.Price, nil
	}
	p, err := w.deps.Exchange.Price(ctx, w.cfg.Symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch price for %s: %w", w.cfg.Symbol, err)
	}
	return p, nil
}

func (w *Worker) openPosition(ctx context.Context, side market.Side, price decimal.Decimal, interpretation string) error {
	symbol := w.cfg.Symbol
	ex := w.deps.Exchange

	bal, err := ex.Balance(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("read balance failed, skipping cycle")
		w.notify(ctx, notify.ErrorEvent(w.id, w.name, symbol, err))
		return nil
	}

	qty, err := w.cfg.PositionSize.Quantity(bal.Capital, price)
	if err != nil {
		w.log.Warn().Err(err).Msg("cannot size order")
		w.notify(ctx, notify.WarningEvent(w.id, w.name, symbol, "cannot size order: "+err.Error()))
		return nil
	}

	entries, err := w.deps.Journal.Entries(ctx, w.id)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	now := w.deps.Now()
	decision := risk.EvaluateOpen(
		risk.Policy{FeeRate: w.cfg.FeeRateDecimal(), MaxDailyTrades: w.cfg.MaxDailyTrades},
		risk.OpenIntent{Now: now, Symbol: symbol, Quantity: qty, Price: price},
		risk.AccountSnapshot{
			Capital:    bal.Capital,
			OpensToday: journal.OpensSince(entries, risk.StartOfDay(now)),
		},
	)
	if !decision.Allowed {
		w.log.Warn().Err(decision.Err()).Msg("open refused")
		w.notify(ctx, notify.WarningEvent(w.id, w.name, symbol, decision.Err().Error()))
		return nil
	}

	fill, err := ex.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:         symbol,
		Side:           side,
		Quantity:       qty,
		Price:          price,
		Interpretation: interpretation,
	})
	if err != nil {
		w.log.Error().Err(err).Msg("place order failed")
		w.notify(ctx, notify.ErrorEvent(w.id, w.name, symbol, fmt.Errorf("open %s: %w", side, err)))
		return nil
	}

	trade := &store.Trade{
		ID:             id.At(fill.Time),
		SimulationID:   w.id,
		Symbol:         symbol,
		Side:           fill.Side,
		Action:         journal.OpenAction(fill.Side),
		Quantity:       fill.Quantity,
		EntryPrice:     fill.Price,
		Fees:           fill.Fees,
		Interpretation: interpretation,
		CreatedAt:      fill.Time,
	}
	if err := w.deps.Trades.InsertTrade(ctx, trade); err != nil {
		return fmt.Errorf("record trade: %w", err)
	}

	w.log.Info().
		Str("side", string(fill.Side)).
		Str("qty", fill.Quantity.String()).
		Str("price", fill.Price.String()).
		Str("fees", fill.Fees.String()).
		Str("capital", fill.CapitalAfter.String()).
		Msg("position opened")
	w.notify(ctx, notify.TradeOpenedEvent(w.id, w.name, fill, ex.Capabilities().Paper))
	return nil
}

func (w *Worker) closePosition(ctx context.Context, price decimal.Decimal, interpretation string) error {
	symbol := w.cfg.Symbol
	ex := w.deps.Exchange

	fill, err := ex.ClosePosition(ctx, broker.CloseRequest{Symbol: symbol, Price: price, Interpretation: interpretation})
	if err != nil {
		w.log.Error().Err(err).Msg("close position failed")
		w.notify(ctx, notify.ErrorEvent(w.id, w.name, symbol, fmt.Errorf("close: %w", err)))
		return nil
	}

	open, err := w.deps.Trades.OpenTrade(ctx, w.id, symbol)
	switch {
	case errors.Is(err, store.ErrNotFound):
		w.log.Warn().Msg("no open trade record for closed position")
	case err != nil:
		return fmt.Errorf("find open trade: %w", err)
	default:
		if err := w.deps.Trades.CloseTrade(ctx, open.ID, fill.Price, fill.NetPnL(), open.Fees.Add(fill.Fees), fill.Time); err != nil {
			return fmt.Errorf("record trade close: %w", err)
		}
	}

	w.log.Info().
		Str("side", string(fill.Side)).
		Str("exit", fill.Price.String()).
		Str("pnl", fill.PnL.String()).
		Str("fees", fill.Fees.String()).
		Str("capital", fill.CapitalAfter.String()).
		Str("reason", interpretation).
		Msg("position closed")
	w.notify(ctx, notify.TradeClosedEvent(w.id, w.name, fill, ex.Capabilities().Paper))
	return nil
}

func (w *Worker) notify(ctx context.Context, e notify.Event) {
	// Delivery failures are already logged by the manager.
	_ = w.deps.Notifier.Notify(ctx, e)
}

func (w *Worker) status(ctx context.Context, status, msg string) {
	w.notify(ctx, notify.StatusEvent(w.id, w.name, status, msg))
}
