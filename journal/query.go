package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Trade returns a single audit record by ticket.
func (j *SQLite) Trade(ticket string) (TradeRecord, error) {
	var rec TradeRecord

	row := j.db.QueryRow(`
		SELECT ticket, symbol, direction, size, entry_price, exit_price, entry_time, exit_time, pnl, reason
		FROM trades
		WHERE ticket = ?`, ticket)

	err := row.Scan(
		&rec.Ticket,
		&rec.Symbol,
		&rec.Direction,
		&rec.Size,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.EntryTime,
		&rec.ExitTime,
		&rec.PnL,
		&rec.Reason,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return TradeRecord{}, fmt.Errorf("trade %q not found", ticket)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// TradesClosedBetween returns trades whose exit_time lies in [start, end).
func (j *SQLite) TradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT ticket, symbol, direction, size, entry_price, exit_price, entry_time, exit_time, pnl, reason
		FROM trades
		WHERE exit_time >= ? AND exit_time < ?
		ORDER BY exit_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(
			&rec.Ticket,
			&rec.Symbol,
			&rec.Direction,
			&rec.Size,
			&rec.EntryPrice,
			&rec.ExitPrice,
			&rec.EntryTime,
			&rec.ExitTime,
			&rec.PnL,
			&rec.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EquityBetween returns the equity curve in [start, end).
func (j *SQLite) EquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, equity, balance
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var rec EquitySnapshot
		if err := rows.Scan(&rec.Time, &rec.Equity, &rec.Balance); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DecisionsBetween returns gateway decisions in [start, end).
func (j *SQLite) DecisionsBetween(start, end time.Time) ([]DecisionRecord, error) {
	rows, err := j.db.Query(`
		SELECT time, symbol, verdict, failed, details
		FROM decisions
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var (
			rec    DecisionRecord
			failed string
		)
		if err := rows.Scan(&rec.Time, &rec.Symbol, &rec.Verdict, &failed, &rec.Details); err != nil {
			return nil, err
		}
		if failed != "" {
			rec.Failed = strings.Split(failed, ",")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
