package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS simulations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	config_json TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	pid INTEGER,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	started_at DATETIME,
	stopped_at DATETIME,
	paused_at DATETIME,
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_simulations_status ON simulations(status);

CREATE TABLE IF NOT EXISTS simulation_trades (
	id TEXT PRIMARY KEY,
	simulation_id TEXT NOT NULL REFERENCES simulations(id) ON DELETE CASCADE,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	action TEXT NOT NULL,
	quantity TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT,
	pnl TEXT,
	fees TEXT NOT NULL,
	interpretation TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	closed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_trades_simulation ON simulation_trades(simulation_id, created_at);

CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	simulation_id TEXT REFERENCES simulations(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	symbol TEXT NOT NULL DEFAULT '',
	channel TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	sent_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_notifications_simulation ON notifications(simulation_id, created_at);
`
