package store

import (
	"context"

	"github.com/shopspring/decimal"
)

// Stats summarizes the closed trades of a simulation.
type Stats struct {
	TotalTrades   int
	OpenTrades    int
	WinningTrades int
	LosingTrades  int
	WinRate       decimal.Decimal // percent
	TotalPnL      decimal.Decimal
	TotalFees     decimal.Decimal
	AvgWin        decimal.Decimal
	AvgLoss       decimal.Decimal
}

// ComputeStats derives Stats from trade records. Break-even trades count as
// neither wins nor losses.
func ComputeStats(trades []*Trade) Stats {
	var (
		s          Stats
		wins, loss = decimal.Zero, decimal.Zero
	)
	for _, t := range trades {
		s.TotalFees = s.TotalFees.Add(t.Fees)
		if !t.Closed() || !t.PnL.Valid {
			s.OpenTrades++
			continue
		}
		s.TotalTrades++
		pnl := t.PnL.Decimal
		s.TotalPnL = s.TotalPnL.Add(pnl)
		switch {
		case pnl.IsPositive():
			s.WinningTrades++
			wins = wins.Add(pnl)
		case pnl.IsNegative():
			s.LosingTrades++
			loss = loss.Add(pnl)
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.WinningTrades)).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(int64(s.TotalTrades)), 2)
	}
	if s.WinningTrades > 0 {
		s.AvgWin = wins.DivRound(decimal.NewFromInt(int64(s.WinningTrades)), 8)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = loss.DivRound(decimal.NewFromInt(int64(s.LosingTrades)), 8)
	}
	return s
}

// SimulationStats loads every trade of a simulation and summarizes it.
func SimulationStats(ctx context.Context, ts TradeStore, simulationID string) (Stats, error) {
	trades, err := ts.ListTrades(ctx, simulationID, 0)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(trades), nil
}
