package journal

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(ticket, symbol, direction, size, entry_price, exit_price, entry_time, exit_time, pnl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Ticket, t.Symbol, t.Direction, t.Size, t.EntryPrice, t.ExitPrice,
		t.EntryTime, t.ExitTime, t.PnL, t.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, equity, balance) VALUES (?, ?, ?)`,
		e.Time, e.Equity, e.Balance,
	)
	return err
}

func (j *SQLite) RecordDecision(d DecisionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO decisions (time, symbol, verdict, failed, details) VALUES (?, ?, ?, ?, ?)`,
		d.Time, d.Symbol, d.Verdict, strings.Join(d.Failed, ","), d.Details,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
