package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/simulation"
)

const consoleHelp = `Commands:
  list [status,...]        list simulations (* marks a live worker)
  show <id>                show one simulation
  create <file> [name...]  create a simulation from a config file
  start <id>               start a worker
  pause <id>               pause trading
  resume <id>              resume trading
  stop <id>                stop the worker
  delete <id>              stop and delete a simulation
  trades <id>              list recent trades
  stats <id>               summarize closed trades
  help                     show this help
  quit                     stop all workers and exit`

// console is the interactive front end of "simtrader run". Every line is one
// command against the supervisor.
type console struct {
	sup *simulation.Supervisor
	out io.Writer
}

// serve reads commands from in until quit, EOF or ctx is done.
func (c *console) serve(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprint(c.out, "> ")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			quit, err := c.exec(ctx, line)
			if err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
			if quit {
				return
			}
			fmt.Fprint(c.out, "> ")
		}
	}
}

func (c *console) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	needID := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("usage: %s <id>", name)
		}
		return args[0], nil
	}

	switch name {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
	case "list", "ls":
		var filter string
		if len(args) > 0 {
			filter = args[0]
		}
		statuses, err := parseStatuses(filter)
		if err != nil {
			return false, err
		}
		views, err := c.sup.List(ctx, statuses...)
		if err != nil {
			return false, err
		}
		printSimulationList(c.out, views)
	case "show":
		simID, err := needID()
		if err != nil {
			return false, err
		}
		v, err := c.sup.Get(ctx, simID)
		if err != nil {
			return false, err
		}
		printSimulation(c.out, v)
	case "create":
		if len(args) == 0 {
			return false, fmt.Errorf("usage: create <file> [name...]")
		}
		cfg, err := config.LoadSimulationFile(args[0])
		if err != nil {
			return false, err
		}
		rec, err := c.sup.Create(ctx, strings.Join(args[1:], " "), cfg)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "✓ Created %s (%s)\n", rec.ID, rec.Name)
	case "start", "pause", "resume", "stop", "delete":
		simID, err := needID()
		if err != nil {
			return false, err
		}
		op := map[string]func(context.Context, string) error{
			"start":  c.sup.Start,
			"pause":  c.sup.Pause,
			"resume": c.sup.Resume,
			"stop":   c.sup.Stop,
			"delete": c.sup.Delete,
		}[name]
		if err := op(ctx, simID); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "✓ %s %s\n", name, simID)
	case "trades":
		simID, err := needID()
		if err != nil {
			return false, err
		}
		trades, err := c.sup.Trades(ctx, simID, 20)
		if err != nil {
			return false, err
		}
		printTrades(c.out, trades)
	case "stats":
		simID, err := needID()
		if err != nil {
			return false, err
		}
		stats, err := c.sup.Stats(ctx, simID)
		if err != nil {
			return false, err
		}
		printStats(c.out, stats)
	default:
		return false, fmt.Errorf("unknown command %q, try help", name)
	}
	return false, nil
}
