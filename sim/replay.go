package sim

import (
	"github.com/rustyeddy/simtrader/journal"
)

// replay rebuilds state from the entries of the account. Capital is the
// capital_after of the last row. A symbol is open when its most recent row is
// an open.
func (e *Engine) replay(entries []journal.Entry) {
	if len(entries) == 0 {
		return
	}

	last := make(map[string]journal.Entry)
	for _, en := range entries {
		last[en.Symbol] = en
		e.fees = e.fees.Add(en.Fees)
		if en.Action.IsClose() {
			e.realized = e.realized.Add(en.PnL)
		}
	}
	e.capital = entries[len(entries)-1].CapitalAfter

	for sym, en := range last {
		if !en.Action.IsOpen() {
			continue
		}
		e.positions[sym] = Position{
			Symbol:     sym,
			Side:       en.Action.Side(),
			Quantity:   en.Quantity,
			EntryPrice: en.Price,
			OpenedAt:   en.Time,
		}
	}
}
