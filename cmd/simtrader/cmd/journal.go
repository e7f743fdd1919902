package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/simtrader/journal"
	"github.com/rustyeddy/simtrader/simulation"
	"github.com/rustyeddy/simtrader/store"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the trade journal",
	Long: `Display or export the journal rows of a simulation. Every open and close
is journaled with the capital after the fill.

Subcommands:
  show   - Print the journal as org-mode
  export - Write the journal as CSV
  import - Load a CSV journal into a simulation with no trades yet

Examples:
  simtrader journal show <simulation-id>
  simtrader journal show <simulation-id> --day 2024-01-15
  simtrader journal export <simulation-id> -o trades.csv
  simtrader journal import <simulation-id> -f trades.csv`,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <simulation-id>",
	Short: "Print the journal as org-mode",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalExportCmd = &cobra.Command{
	Use:   "export <simulation-id>",
	Short: "Write the journal as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalExport,
}

var journalImportCmd = &cobra.Command{
	Use:   "import <simulation-id>",
	Short: "Load a CSV journal into a stopped simulation",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalImport,
}

var (
	journalDay    string
	journalOutput string
	journalInput  string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalExportCmd)
	journalCmd.AddCommand(journalImportCmd)

	journalShowCmd.Flags().StringVar(&journalDay, "day", "", "only entries of this local day (YYYY-MM-DD)")
	journalExportCmd.Flags().StringVarP(&journalOutput, "output", "o", "", "output file (default stdout)")
	journalImportCmd.Flags().StringVarP(&journalInput, "file", "f", "", "CSV journal to load (required)")
	journalImportCmd.MarkFlagRequired("file")
}

func loadEntries(ctx context.Context, st store.Store, simID string) ([]journal.Entry, error) {
	if _, err := registry(st).Get(ctx, simID); err != nil {
		return nil, err
	}
	entries, err := st.Journal().Entries(ctx, simID)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}

// dayEntries returns the entries of one local day, using the journal's range
// query when it has one.
func dayEntries(ctx context.Context, st store.Store, simID, day string) ([]journal.Entry, error) {
	if _, err := registry(st).Get(ctx, simID); err != nil {
		return nil, err
	}
	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}
	entries, err := journal.Between(ctx, st.Journal(), simID, start, end)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st store.Store) error {
		var (
			entries []journal.Entry
			err     error
		)
		if journalDay != "" {
			entries, err = dayEntries(ctx, st, args[0], journalDay)
		} else {
			entries, err = loadEntries(ctx, st, args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), journal.FormatEntriesOrg(entries))
		return nil
	})
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st store.Store) error {
		entries, err := loadEntries(ctx, st, args[0])
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if journalOutput != "" {
			f, err := os.Create(journalOutput)
			if err != nil {
				return fmt.Errorf("create %s: %w", journalOutput, err)
			}
			defer f.Close()
			w = f
		}
		if err := journal.WriteCSV(w, entries); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		if journalOutput != "" {
			fmt.Printf("✓ Exported %d entries to %s\n", len(entries), journalOutput)
		}
		return nil
	})
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}

func runJournalImport(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st store.Store) error {
		n, err := importJournal(ctx, st, args[0], journalInput)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d entries from %s\n", n, journalInput)
		return nil
	})
}

// importJournal appends the rows of a CSV journal to simID. The simulation
// must be inactive with an empty journal, since the ledger is rebuilt from
// these rows on the next start.
func importJournal(ctx context.Context, st store.Store, simID, path string) (int, error) {
	v, err := registry(st).Get(ctx, simID)
	if err != nil {
		return 0, err
	}
	if v.Status.Active() {
		return 0, fmt.Errorf("%w: simulation %s is %s", simulation.ErrInvalidState, simID, v.Status)
	}
	existing, err := st.Journal().Entries(ctx, simID)
	if err != nil {
		return 0, fmt.Errorf("read journal: %w", err)
	}
	if len(existing) > 0 {
		return 0, fmt.Errorf("%w: simulation %s already has %d journal entries", simulation.ErrInvalidState, simID, len(existing))
	}

	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	src, err := journal.NewCSV(path, simID)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()
	entries, err := src.Entries(ctx, simID)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	for _, e := range entries {
		if err := st.Journal().Append(ctx, e); err != nil {
			return 0, fmt.Errorf("append entry: %w", err)
		}
	}
	return len(entries), nil
}
