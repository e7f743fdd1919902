package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rustyeddy/simtrader/journal"
)

const entryColumns = `seq, account, time, action, symbol, quantity, price, fees, pnl, capital_after, interpretation`

func (s *Store) Append(ctx context.Context, e journal.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO journal_entries
		(account, time, action, symbol, quantity, price, fees, pnl, capital_after, interpretation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.Account, e.Time.UTC(), string(e.Action), e.Symbol,
		e.Quantity.String(), e.Price.String(), e.Fees.String(), e.PnL.String(),
		e.CapitalAfter.String(), e.Interpretation,
	)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

func (s *Store) Entries(ctx context.Context, account string) ([]journal.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM journal_entries
		WHERE account = $1
		ORDER BY seq ASC`, account)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// EntriesBetween returns the rows of an account whose time is within [start, end).
func (s *Store) EntriesBetween(ctx context.Context, account string, start, end time.Time) ([]journal.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM journal_entries
		WHERE account = $1 AND time >= $2 AND time < $3
		ORDER BY seq ASC`, account, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]journal.Entry, error) {
	defer rows.Close()

	var out []journal.Entry
	for rows.Next() {
		var (
			e                                 journal.Entry
			action                            string
			qty, price, fees, pnl, capitalAft string
		)
		if err := rows.Scan(&e.Seq, &e.Account, &e.Time, &action, &e.Symbol,
			&qty, &price, &fees, &pnl, &capitalAft, &e.Interpretation); err != nil {
			return nil, err
		}
		var err error
		if e.Action, err = journal.ParseAction(action); err != nil {
			return nil, err
		}
		if e.Quantity, err = parseDecimal(qty); err != nil {
			return nil, err
		}
		if e.Price, err = parseDecimal(price); err != nil {
			return nil, err
		}
		if e.Fees, err = parseDecimal(fees); err != nil {
			return nil, err
		}
		if e.PnL, err = parseDecimal(pnl); err != nil {
			return nil, err
		}
		if e.CapitalAfter, err = parseDecimal(capitalAft); err != nil {
			return nil, err
		}
		e.Time = e.Time.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
