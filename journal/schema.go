package journal

// Schema holds the journal table. Decimal columns are TEXT so replay is exact.
const Schema = `
CREATE TABLE IF NOT EXISTS journal_entries (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	account TEXT NOT NULL,
	time DATETIME NOT NULL,
	action TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity TEXT NOT NULL,
	price TEXT NOT NULL,
	fees TEXT NOT NULL,
	pnl TEXT NOT NULL,
	capital_after TEXT NOT NULL,
	interpretation TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_journal_account_seq ON journal_entries(account, seq);
`
