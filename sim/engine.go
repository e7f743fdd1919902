// Package sim is the paper-trading ledger. An Engine owns the capital and open
// positions of one simulated account and records every transition in a
// journal before applying it, so the account can always be rebuilt by replay.
package sim

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/simtrader/broker"
	"github.com/rustyeddy/simtrader/journal"
	"github.com/rustyeddy/simtrader/market"
)

type Position = broker.Position

// Account is the static configuration of a simulated account.
type Account struct {
	ID             string
	InitialCapital decimal.Decimal
	FeeRate        decimal.Decimal
}

type Engine struct {
	mu        sync.Mutex
	acct      Account
	capital   decimal.Decimal
	fees      decimal.Decimal
	realized  decimal.Decimal
	positions map[string]Position
	journal   journal.Journal
	now       func() time.Time
}

type Option func(*Engine)

// WithClock overrides the time source used to stamp journal entries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine validates acct and rebuilds its state from the journal.
func NewEngine(ctx context.Context, j journal.Journal, acct Account, opts ...Option) (*Engine, error) {
	if acct.ID == "" {
		return nil, fmt.Errorf("%w: account id is required", broker.ErrInvalidOrder)
	}
	if !acct.InitialCapital.IsPositive() {
		return nil, fmt.Errorf("%w: initial capital must be positive", broker.ErrInvalidOrder)
	}
	if acct.FeeRate.IsNegative() || acct.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: fee rate must be in [0,1)", broker.ErrInvalidOrder)
	}

	e := &Engine{
		acct:      acct,
		capital:   acct.InitialCapital,
		positions: make(map[string]Position),
		journal:   j,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	entries, err := j.Entries(ctx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("replay journal for %s: %w", acct.ID, err)
	}
	e.replay(entries)
	return e, nil
}

func (e *Engine) Account() Account { return e.acct }

// Open opens a position and charges the entry fee. The journal entry is
// written before any state changes; on a journal error nothing is applied.
func (e *Engine) Open(ctx context.Context, symbol string, side market.Side, qty, price decimal.Decimal, interpretation string) (broker.Fill, error) {
	if err := validateOrder(symbol, qty, price); err != nil {
		return broker.Fill{}, err
	}
	if !side.Valid() {
		return broker.Fill{}, fmt.Errorf("%w: unknown side %q", broker.ErrInvalidOrder, side)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.positions[symbol]; ok {
		return broker.Fill{}, fmt.Errorf("open %s: %w", symbol, broker.ErrPositionOpen)
	}

	now := e.now().UTC()
	fees := qty.Mul(price).Mul(e.acct.FeeRate)
	capitalAfter := e.capital.Sub(fees)

	if err := e.journal.Append(ctx, journal.Entry{
		Account:        e.acct.ID,
		Time:           now,
		Action:         journal.OpenAction(side),
		Symbol:         symbol,
		Quantity:       qty,
		Price:          price,
		Fees:           fees,
		PnL:            decimal.Zero,
		CapitalAfter:   capitalAfter,
		Interpretation: interpretation,
	}); err != nil {
		return broker.Fill{}, fmt.Errorf("open %s: %w", symbol, err)
	}

	e.capital = capitalAfter
	e.fees = e.fees.Add(fees)
	e.positions[symbol] = Position{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		EntryPrice: price,
		OpenedAt:   now,
	}

	return broker.Fill{
		Symbol:       symbol,
		Side:         side,
		Opening:      true,
		Quantity:     qty,
		Price:        price,
		EntryPrice:   price,
		Fees:         fees,
		PnL:          decimal.Zero,
		CapitalAfter: capitalAfter,
		Time:         now,
	}, nil
}

// Close closes the open position for symbol at exitPrice, realizing P&L and
// charging the exit fee.
func (e *Engine) Close(ctx context.Context, symbol string, exitPrice decimal.Decimal, interpretation string) (broker.Fill, error) {
	if !exitPrice.IsPositive() {
		return broker.Fill{}, fmt.Errorf("%w: price must be positive", broker.ErrInvalidOrder)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[symbol]
	if !ok {
		return broker.Fill{}, fmt.Errorf("close %s: %w", symbol, broker.ErrNoPosition)
	}

	now := e.now().UTC()
	pnl := pos.UnrealizedPnL(exitPrice)
	fees := pos.Quantity.Mul(exitPrice).Mul(e.acct.FeeRate)
	capitalAfter := e.capital.Add(pnl).Sub(fees)

	if err := e.journal.Append(ctx, journal.Entry{
		Account:        e.acct.ID,
		Time:           now,
		Action:         journal.CloseAction(pos.Side),
		Symbol:         symbol,
		Quantity:       pos.Quantity,
		Price:          exitPrice,
		Fees:           fees,
		PnL:            pnl,
		CapitalAfter:   capitalAfter,
		Interpretation: interpretation,
	}); err != nil {
		return broker.Fill{}, fmt.Errorf("close %s: %w", symbol, err)
	}

	e.capital = capitalAfter
	e.fees = e.fees.Add(fees)
	e.realized = e.realized.Add(pnl)
	delete(e.positions, symbol)

	return broker.Fill{
		Symbol:       symbol,
		Side:         pos.Side,
		Quantity:     pos.Quantity,
		Price:        exitPrice,
		EntryPrice:   pos.EntryPrice,
		Fees:         fees,
		PnL:          pnl,
		CapitalAfter: capitalAfter,
		Time:         now,
	}, nil
}

func (e *Engine) Position(symbol string) (Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.positions[symbol]
	return p, ok
}

// Positions returns the open positions sorted by symbol.
func (e *Engine) Positions() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (e *Engine) Capital() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capital
}

func (e *Engine) FeesPaid() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fees
}

func (e *Engine) RealizedPnL() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.realized
}

// LockedCapital is the notional of all open positions at entry.
func (e *Engine) LockedCapital() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := decimal.Zero
	for _, p := range e.positions {
		total = total.Add(p.Notional())
	}
	return total
}

// CheckStopLoss reports whether price has moved against the open position for
// symbol by at least stopPct percent of entry.
func (e *Engine) CheckStopLoss(symbol string, price, stopPct decimal.Decimal) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[symbol]
	if !ok {
		return false
	}
	return p.StopLossHit(price, stopPct)
}

func validateOrder(symbol string, qty, price decimal.Decimal) error {
	if strings.TrimSpace(symbol) == "" {
		return fmt.Errorf("%w: symbol is required", broker.ErrInvalidOrder)
	}
	if !qty.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", broker.ErrInvalidOrder)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", broker.ErrInvalidOrder)
	}
	return nil
}
