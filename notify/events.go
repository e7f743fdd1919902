package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/simtrader/broker"
	"github.com/rustyeddy/simtrader/market"
)

const maxReasoning = 500

func usd(d decimal.Decimal) string { return "$" + market.Money(d, 2, false) }

func signedUSD(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + market.Money(d.Abs(), 2, false)
	}
	return "+$" + market.Money(d, 2, false)
}

// SignalEvent reports an AI outlook. reasons is dropped unless
// includeReasoning is set, and truncated otherwise.
func SignalEvent(simID, simName, symbol string, sig market.Signal, reasons string, includeReasoning bool) Event {
	e := Event{
		Type:         Signal,
		SimulationID: simID,
		Simulation:   simName,
		Symbol:       symbol,
		Title:        fmt.Sprintf("Signal: %s for %s", sig, symbol),
		Time:         time.Now().UTC(),
	}
	if includeReasoning && reasons != "" {
		if r := []rune(reasons); len(r) > maxReasoning {
			reasons = string(r[:maxReasoning])
		}
		e.Message = "Reasoning: " + reasons
	}
	return e
}

func TradeOpenedEvent(simID, simName string, f broker.Fill, paper bool) Event {
	return Event{
		Type:         TradeOpened,
		SimulationID: simID,
		Simulation:   simName,
		Symbol:       f.Symbol,
		Title: fmt.Sprintf("%sOpened %s %s %s @ %s",
			paperTag(paper), strings.ToUpper(string(f.Side)), f.Quantity.StringFixed(6), f.Symbol, usd(f.Price)),
		Fields: []Field{
			{Name: "Fee", Value: usd(f.Fees)},
			{Name: "Capital", Value: usd(f.CapitalAfter)},
		},
		Time: f.Time,
	}
}

func TradeClosedEvent(simID, simName string, f broker.Fill, paper bool) Event {
	return Event{
		Type:         TradeClosed,
		SimulationID: simID,
		Simulation:   simName,
		Symbol:       f.Symbol,
		Title: fmt.Sprintf("%sClosed %s %s | Entry: %s | Exit: %s | PnL: %s",
			paperTag(paper), strings.ToUpper(string(f.Side)), f.Symbol,
			usd(f.EntryPrice), usd(f.Price), signedUSD(f.NetPnL())),
		Fields: []Field{
			{Name: "Fee", Value: usd(f.Fees)},
			{Name: "Capital", Value: usd(f.CapitalAfter)},
		},
		PnL:  f.NetPnL(),
		Time: f.Time,
	}
}

func StatusEvent(simID, simName, status, message string) Event {
	return Event{
		Type:         SimulationStatus,
		SimulationID: simID,
		Simulation:   simName,
		Title:        fmt.Sprintf("Simulation %s %s", simName, status),
		Message:      message,
		Time:         time.Now().UTC(),
	}
}

func WarningEvent(simID, simName, symbol, message string) Event {
	return Event{
		Type:         Warning,
		SimulationID: simID,
		Simulation:   simName,
		Symbol:       symbol,
		Title:        "Warning: " + simName,
		Message:      message,
		Time:         time.Now().UTC(),
	}
}

func ErrorEvent(simID, simName, symbol string, err error) Event {
	return Event{
		Type:         Error,
		SimulationID: simID,
		Simulation:   simName,
		Symbol:       symbol,
		Title:        "Error: " + simName,
		Message:      err.Error(),
		Time:         time.Now().UTC(),
	}
}

func paperTag(paper bool) string {
	if paper {
		return "[PAPER] "
	}
	return ""
}
