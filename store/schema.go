// store/schema.go
package store

const schema = `
CREATE TABLE IF NOT EXISTS account (
	id INTEGER PRIMARY KEY,
	equity REAL NOT NULL,
	balance REAL NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS position (
	ticket TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	size REAL NOT NULL,
	entry_price REAL NOT NULL,
	stop_price REAL NOT NULL,
	target_price REAL NOT NULL,
	status TEXT NOT NULL,
	entry_time DATETIME NOT NULL,
	exit_price REAL NOT NULL DEFAULT 0,
	exit_time DATETIME,
	pnl REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_position_open ON position(symbol, status);

CREATE TABLE IF NOT EXISTS pending_order (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	limit_price REAL NOT NULL,
	size REAL NOT NULL,
	stop REAL NOT NULL,
	target REAL NOT NULL,
	kind TEXT NOT NULL,
	submitted_at DATETIME NOT NULL
);
`
