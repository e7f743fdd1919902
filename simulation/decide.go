package simulation

import (
	"github.com/rustyeddy/simtrader/broker"
	"github.com/rustyeddy/simtrader/market"
)

type ActionKind int

const (
	Hold ActionKind = iota
	Open
	Close
)

func (k ActionKind) String() string {
	switch k {
	case Open:
		return "open"
	case Close:
		return "close"
	}
	return "hold"
}

// Action is what the worker does with a signal. Side is set for opens.
type Action struct {
	Kind ActionKind
	Side market.Side
}

// Decide maps a signal and the current position to an action. Opposing
// signals close; the worker never flips a position in one cycle. A bearish
// signal while flat is a hold on exchanges without shorting.
func Decide(sig market.Signal, pos broker.Position, hasPos bool, caps broker.Capabilities) Action {
	if !hasPos {
		switch sig {
		case market.Bullish:
			return Action{Kind: Open, Side: market.Long}
		case market.Bearish:
			if caps.SupportsShorting {
				return Action{Kind: Open, Side: market.Short}
			}
		}
		return Action{Kind: Hold}
	}

	switch {
	case pos.Side == market.Long && sig == market.Bearish:
		return Action{Kind: Close}
	case pos.Side == market.Short && sig == market.Bullish:
		return Action{Kind: Close}
	}
	return Action{Kind: Hold}
}
