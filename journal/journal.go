// Package journal is the append-only trade log for a simulated account. Every
// capital-changing transition is one Entry; replaying the entries of an
// account rebuilds its capital and open positions.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/simtrader/market"
)

// Action is the transition recorded by an entry.
type Action string

const (
	OpenLong   Action = "OpenLong"
	OpenShort  Action = "OpenShort"
	CloseLong  Action = "CloseLong"
	CloseShort Action = "CloseShort"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case OpenLong, OpenShort, CloseLong, CloseShort:
		return a, nil
	}
	return "", fmt.Errorf("unknown journal action %q", s)
}

func (a Action) IsOpen() bool { return a == OpenLong || a == OpenShort }

func (a Action) IsClose() bool { return a == CloseLong || a == CloseShort }

// Side is the position side the action opened or closed.
func (a Action) Side() market.Side {
	if a == OpenShort || a == CloseShort {
		return market.Short
	}
	return market.Long
}

// OpenAction returns the opening action for a side.
func OpenAction(s market.Side) Action {
	if s == market.Short {
		return OpenShort
	}
	return OpenLong
}

// CloseAction returns the closing action for a side.
func CloseAction(s market.Side) Action {
	if s == market.Short {
		return CloseShort
	}
	return CloseLong
}

// Entry is one immutable journal row. PnL is zero for opens.
type Entry struct {
	Seq            int64
	Account        string
	Time           time.Time
	Action         Action
	Symbol         string
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	Fees           decimal.Decimal
	PnL            decimal.Decimal
	CapitalAfter   decimal.Decimal
	Interpretation string
}

// Journal persists entries for one or more accounts. Entries returns the rows
// of an account in append order.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	Entries(ctx context.Context, account string) ([]Entry, error)
	Close() error
}

// OpensSince counts open entries at or after t.
func OpensSince(entries []Entry, t time.Time) int {
	n := 0
	for _, e := range entries {
		if e.Action.IsOpen() && !e.Time.Before(t) {
			n++
		}
	}
	return n
}

// RangeReader is implemented by journals that can filter by time themselves.
type RangeReader interface {
	EntriesBetween(ctx context.Context, account string, start, end time.Time) ([]Entry, error)
}

// Between returns the entries of account with start <= Time < end.
func Between(ctx context.Context, j Journal, account string, start, end time.Time) ([]Entry, error) {
	if rr, ok := j.(RangeReader); ok {
		return rr.EntriesBetween(ctx, account, start, end)
	}
	all, err := j.Entries(ctx, account)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if !e.Time.Before(start) && e.Time.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}
