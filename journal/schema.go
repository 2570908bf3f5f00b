// journal/schema.go
package journal

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	ticket TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	size REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	entry_time DATETIME NOT NULL,
	exit_time DATETIME NOT NULL,
	pnl REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	equity REAL NOT NULL,
	balance REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);

CREATE TABLE IF NOT EXISTS decisions (
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	verdict TEXT NOT NULL,
	failed TEXT NOT NULL,
	details TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_time ON decisions(time);
`
