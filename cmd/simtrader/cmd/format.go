package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/market"
	"github.com/rustyeddy/simtrader/simulation"
	"github.com/rustyeddy/simtrader/store"
)

func printSimulationList(w io.Writer, views []simulation.View) {
	if len(views) == 0 {
		fmt.Fprintln(w, "No simulations.")
		return
	}
	fmt.Fprintf(w, "%-26s  %-20s  %-8s  %-8s  %s\n", "ID", "NAME", "SYMBOL", "STATUS", "CREATED")
	for _, v := range views {
		symbol := "?"
		if cfg, err := config.ParseSimulation(v.Config); err == nil {
			symbol = cfg.Symbol
		}
		status := string(v.Status)
		if v.WorkerAlive {
			status += "*"
		}
		fmt.Fprintf(w, "%-26s  %-20s  %-8s  %-8s  %s\n",
			v.ID, truncate(v.Name, 20), symbol, status, v.CreatedAt.Local().Format(time.DateTime))
	}
}

func printSimulation(w io.Writer, v simulation.View) {
	fmt.Fprintf(w, "Simulation %s\n", v.ID)
	fmt.Fprintf(w, "  Name:    %s\n", v.Name)
	fmt.Fprintf(w, "  Status:  %s\n", v.Status)
	if v.PID != 0 {
		fmt.Fprintf(w, "  PID:     %d (alive: %t)\n", v.PID, v.WorkerAlive)
	}
	fmt.Fprintf(w, "  Created: %s\n", v.CreatedAt.Local().Format(time.DateTime))
	printTime(w, "Started", v.StartedAt)
	printTime(w, "Paused", v.PausedAt)
	printTime(w, "Stopped", v.StoppedAt)
	if v.ErrorMessage != "" {
		fmt.Fprintf(w, "  Message: %s\n", v.ErrorMessage)
	}

	cfg, err := config.ParseSimulation(v.Config)
	if err != nil {
		fmt.Fprintf(w, "  Config:  unreadable (%v)\n", err)
		return
	}
	fmt.Fprintf(w, "  Asset:   %s (%s)\n", cfg.CryptoDisplayName, cfg.Symbol)
	fmt.Fprintf(w, "  Capital: $%s\n", market.Money(cfg.InitialCapitalDecimal(), 2, false))
	fmt.Fprintf(w, "  Size:    %s per trade, fee %s%%\n", cfg.PositionSize, cfg.FeeRateDecimal().Shift(2).String())
	fmt.Fprintf(w, "  AI:      %s every %s\n", cfg.AIProvider, cfg.CheckInterval())
	if sl := cfg.StopLoss(); sl.IsPositive() {
		fmt.Fprintf(w, "  Stop:    %s%%\n", sl.String())
	}
	fmt.Fprintf(w, "  Limit:   %d trades/day\n", cfg.MaxDailyTrades)
}

func printTime(w io.Writer, label string, t *time.Time) {
	if t == nil {
		return
	}
	fmt.Fprintf(w, "  %-8s %s\n", label+":", t.Local().Format(time.DateTime))
}

func printTrades(w io.Writer, trades []*store.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(w, "No trades.")
		return
	}
	fmt.Fprintf(w, "%-19s  %-5s  %-6s  %12s  %12s  %12s  %10s  %s\n",
		"OPENED", "SIDE", "SYMBOL", "QTY", "ENTRY", "EXIT", "PNL", "SIGNAL")
	for _, t := range trades {
		exit, pnl := "-", "-"
		if t.ExitPrice.Valid {
			exit = market.Money(t.ExitPrice.Decimal, 2, false)
		}
		if t.PnL.Valid {
			pnl = market.Money(t.PnL.Decimal, 2, true)
		}
		fmt.Fprintf(w, "%-19s  %-5s  %-6s  %12s  %12s  %12s  %10s  %s\n",
			t.CreatedAt.Local().Format(time.DateTime), t.Side, t.Symbol,
			t.Quantity.String(), market.Money(t.EntryPrice, 2, false), exit, pnl, t.Interpretation)
	}
}

func printStats(w io.Writer, s store.Stats) {
	fmt.Fprintf(w, "Closed trades: %d (open: %d)\n", s.TotalTrades, s.OpenTrades)
	fmt.Fprintf(w, "Win rate:      %s%% (%d won, %d lost)\n", s.WinRate.StringFixed(2), s.WinningTrades, s.LosingTrades)
	fmt.Fprintf(w, "Total P&L:     $%s\n", market.Money(s.TotalPnL, 2, true))
	fmt.Fprintf(w, "Total fees:    $%s\n", market.Money(s.TotalFees, 2, false))
	fmt.Fprintf(w, "Average win:   $%s\n", market.Money(s.AvgWin, 2, false))
	fmt.Fprintf(w, "Average loss:  $%s\n", market.Money(s.AvgLoss, 2, false))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
