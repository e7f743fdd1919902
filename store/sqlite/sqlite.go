// Package sqlite is the default store backend. The database runs in WAL mode
// with a busy timeout so the supervisor and its worker processes can write to
// the same file.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/simtrader/journal"
	"github.com/rustyeddy/simtrader/store"
)

type Store struct {
	db      *sql.DB
	journal *journal.SQLite
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=30000&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	j, err := journal.FromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, journal: j}, nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Journal() journal.Journal { return s.journal }

func (s *Store) Close() error { return s.db.Close() }

func isDuplicateKey(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
