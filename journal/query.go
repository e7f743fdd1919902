package journal

import (
	"context"
	"time"
)

const entryColumns = `seq, account, time, action, symbol, quantity, price, fees, pnl, capital_after, interpretation`

// Entries returns all rows of an account in append order.
func (j *SQLite) Entries(ctx context.Context, account string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM journal_entries
		WHERE account = ?
		ORDER BY seq ASC`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// EntriesBetween returns the rows of an account whose time is within [start, end).
func (j *SQLite) EntriesBetween(ctx context.Context, account string, start, end time.Time) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM journal_entries
		WHERE account = ? AND time >= ? AND time < ?
		ORDER BY seq ASC`, account, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntries(rows rowScanner) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			action string
		)
		if err := rows.Scan(
			&e.Seq,
			&e.Account,
			&e.Time,
			&action,
			&e.Symbol,
			&e.Quantity,
			&e.Price,
			&e.Fees,
			&e.PnL,
			&e.CapitalAfter,
			&e.Interpretation,
		); err != nil {
			return nil, err
		}
		a, err := ParseAction(action)
		if err != nil {
			return nil, err
		}
		e.Action = a
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
