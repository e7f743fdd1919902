package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db    *sql.DB
	owned bool
}

// NewSQLite opens (or creates) a journal database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, err
	}
	j, err := FromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	j.owned = true
	return j, nil
}

// FromDB attaches a journal to an already open SQLite handle. Close on the
// returned journal leaves the handle open.
func FromDB(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) Append(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO journal_entries
		(account, time, action, symbol, quantity, price, fees, pnl, capital_after, interpretation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Account, e.Time.UTC(), string(e.Action), e.Symbol,
		e.Quantity.String(), e.Price.String(), e.Fees.String(), e.PnL.String(),
		e.CapitalAfter.String(), e.Interpretation,
	)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

func (j *SQLite) Close() error {
	if !j.owned {
		return nil
	}
	return j.db.Close()
}
