// Package broker defines the exchange abstraction the simulation worker trades
// through. Implementations advertise what they can do through Capabilities so
// callers never assume shorting or leverage.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/simtrader/market"
)

var (
	ErrInvalidState = errors.New("invalid state")
	ErrPositionOpen = fmt.Errorf("%w: position already open", ErrInvalidState)
	ErrNoPosition   = fmt.Errorf("%w: no open position", ErrInvalidState)
	ErrInvalidOrder = errors.New("invalid order")
)

// Capabilities describes optional exchange features.
type Capabilities struct {
	SupportsShorting bool
	SupportsLeverage bool
	Paper            bool
}

type Exchange interface {
	Capabilities() Capabilities
	Balance(ctx context.Context) (Account, error)
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
	Position(ctx context.Context, symbol string) (Position, bool, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (Fill, error)
	ClosePosition(ctx context.Context, req CloseRequest) (Fill, error)
}

type Account struct {
	ID          string
	Capital     decimal.Decimal
	Locked      decimal.Decimal
	FeesPaid    decimal.Decimal
	RealizedPnL decimal.Decimal
}

// Position is an open position. At most one exists per account and symbol.
type Position struct {
	Symbol     string
	Side       market.Side
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	OpenedAt   time.Time
}

// Notional is quantity times entry price.
func (p Position) Notional() decimal.Decimal {
	return p.Quantity.Mul(p.EntryPrice)
}

// UnrealizedPnL values the position at price.
func (p Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(p.EntryPrice)
	if p.Side == market.Short {
		diff = diff.Neg()
	}
	return diff.Mul(p.Quantity)
}

var hundred = decimal.NewFromInt(100)

// StopPrice is the price at which the position has lost pct percent of entry.
func (p Position) StopPrice(pct decimal.Decimal) decimal.Decimal {
	frac := pct.Div(hundred)
	if p.Side == market.Short {
		return p.EntryPrice.Mul(decimal.NewFromInt(1).Add(frac))
	}
	return p.EntryPrice.Mul(decimal.NewFromInt(1).Sub(frac))
}

// StopLossHit reports whether price has reached the stop for pct. A
// non-positive pct disables the stop.
func (p Position) StopLossHit(price, pct decimal.Decimal) bool {
	if !pct.IsPositive() {
		return false
	}
	stop := p.StopPrice(pct)
	if p.Side == market.Short {
		return price.GreaterThanOrEqual(stop)
	}
	return price.LessThanOrEqual(stop)
}

// OrderRequest opens a position. A zero Price fills at the current market price.
type OrderRequest struct {
	Symbol         string
	Side           market.Side
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	Interpretation string
}

// CloseRequest closes the open position for Symbol. A zero Price fills at the
// current market price.
type CloseRequest struct {
	Symbol         string
	Price          decimal.Decimal
	Interpretation string
}

type Fill struct {
	Symbol       string
	Side         market.Side
	Opening      bool
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	EntryPrice   decimal.Decimal
	Fees         decimal.Decimal
	PnL          decimal.Decimal
	CapitalAfter decimal.Decimal
	Time         time.Time
}

// NetPnL is realized P&L less the fee charged on this fill.
func (f Fill) NetPnL() decimal.Decimal {
	return f.PnL.Sub(f.Fees)
}
