// Package store is the durable record of account, position, and pending-order
// state. It is the sole source of truth across restarts: collaborators must
// adopt whatever OPEN position it reports at startup rather than assuming a
// flat book. Every mutation runs as a single SQLite transaction.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"goldengine/market"
)

const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Account is the single persisted account row.
type Account struct {
	Equity    float64
	Balance   float64
	UpdatedAt time.Time
}

// Position mirrors one row of the position table.
type Position struct {
	Ticket      string
	Symbol      string
	Direction   market.Direction
	Size        float64
	EntryPrice  float64
	StopPrice   float64
	TargetPrice float64
	Status      string
	EntryTime   time.Time
	ExitPrice   float64
	ExitTime    time.Time
	PnL         float64
}

// PendingOrder is a limit order waiting for its trigger price.
type PendingOrder struct {
	ID          int64
	Symbol      string
	Direction   market.Direction
	LimitPrice  float64
	Size        float64
	Stop        float64
	Target      float64
	Kind        string
	SubmittedAt time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the state database and seeds the account row with
// initialBalance when none exists yet.
func Open(path string, initialBalance float64) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	// WAL keeps journal writes from blocking the feed pollers.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	var n int
	if err := db.QueryRow(`SELECT count(*) FROM account`).Scan(&n); err != nil {
		return nil, err
	}
	if n == 0 {
		_, err = db.Exec(
			`INSERT INTO account (id, equity, balance, updated_at) VALUES (1, ?, ?, ?)`,
			initialBalance, initialBalance, time.Now().UTC(),
		)
		if err != nil {
			return nil, fmt.Errorf("seed account: %w", err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// GetAccount returns the single account row.
func (s *Store) GetAccount() (Account, error) {
	var a Account
	err := s.db.QueryRow(`SELECT equity, balance, updated_at FROM account WHERE id=1`).
		Scan(&a.Equity, &a.Balance, &a.UpdatedAt)
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// UpdateEquity sets equity and, when balance is non-nil, balance in one
// transaction.
func (s *Store) UpdateEquity(equity float64, balance *float64) error {
	var err error
	if balance != nil {
		_, err = s.db.Exec(
			`UPDATE account SET equity=?, balance=?, updated_at=? WHERE id=1`,
			equity, *balance, time.Now().UTC(),
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE account SET equity=?, updated_at=? WHERE id=1`,
			equity, time.Now().UTC(),
		)
	}
	if err != nil {
		return fmt.Errorf("update equity: %w", err)
	}
	return nil
}

// GetOpenPosition returns the open position for symbol, or ok=false when flat.
func (s *Store) GetOpenPosition(symbol string) (Position, bool, error) {
	var (
		p        Position
		exitTime sql.NullTime
	)
	err := s.db.QueryRow(`
		SELECT ticket, symbol, direction, size, entry_price, stop_price, target_price,
		       status, entry_time, exit_price, exit_time, pnl
		FROM position WHERE symbol=? AND status=?`, symbol, StatusOpen).
		Scan(&p.Ticket, &p.Symbol, &p.Direction, &p.Size, &p.EntryPrice, &p.StopPrice,
			&p.TargetPrice, &p.Status, &p.EntryTime, &p.ExitPrice, &exitTime, &p.PnL)
	if errors.Is(err, sql.ErrNoRows) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, fmt.Errorf("get open position %s: %w", symbol, err)
	}
	if exitTime.Valid {
		p.ExitTime = exitTime.Time
	}
	return p, true, nil
}

// AddPosition persists a freshly filled position. The protective-stop
// invariant is enforced here as the last line of defense: a LONG stop must sit
// strictly below entry, a SHORT stop strictly above.
func (s *Store) AddPosition(p Position) error {
	switch p.Direction {
	case market.Long:
		if p.StopPrice >= p.EntryPrice {
			return fmt.Errorf("add position %s: long stop %.5f not below entry %.5f",
				p.Symbol, p.StopPrice, p.EntryPrice)
		}
	case market.Short:
		if p.StopPrice <= p.EntryPrice {
			return fmt.Errorf("add position %s: short stop %.5f not above entry %.5f",
				p.Symbol, p.StopPrice, p.EntryPrice)
		}
	default:
		return fmt.Errorf("add position %s: unknown direction %q", p.Symbol, p.Direction)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// At most one open position per symbol.
	var n int
	if err := tx.QueryRow(`SELECT count(*) FROM position WHERE symbol=? AND status=?`,
		p.Symbol, StatusOpen).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("add position %s: open position already exists", p.Symbol)
	}

	_, err = tx.Exec(`
		INSERT INTO position
		(ticket, symbol, direction, size, entry_price, stop_price, target_price, status, entry_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Ticket, p.Symbol, p.Direction, p.Size, p.EntryPrice, p.StopPrice,
		p.TargetPrice, StatusOpen, p.EntryTime,
	)
	if err != nil {
		return fmt.Errorf("add position %s: %w", p.Symbol, err)
	}
	return tx.Commit()
}

// ClosePosition marks the open position CLOSED and applies the realized pnl to
// equity and balance in the same transaction, so no reader can observe a
// closed position with unsettled equity.
func (s *Store) ClosePosition(symbol string, exitPrice, pnl float64, exitTime time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE position SET status=?, exit_price=?, exit_time=?, pnl=?
		WHERE symbol=? AND status=?`,
		StatusClosed, exitPrice, exitTime, pnl, symbol, StatusOpen,
	)
	if err != nil {
		return fmt.Errorf("close position %s: %w", symbol, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("close position %s: no open position", symbol)
	}

	_, err = tx.Exec(`
		UPDATE account SET equity=equity+?, balance=balance+?, updated_at=? WHERE id=1`,
		pnl, pnl, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("settle close %s: %w", symbol, err)
	}
	return tx.Commit()
}

// AddPendingOrder persists a limit order and returns its id.
func (s *Store) AddPendingOrder(o PendingOrder) (int64, error) {
	if o.Size <= 0 || o.LimitPrice <= 0 {
		return 0, fmt.Errorf("add pending order %s: size and price must be positive", o.Symbol)
	}
	res, err := s.db.Exec(`
		INSERT INTO pending_order (symbol, direction, limit_price, size, stop, target, kind, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Symbol, o.Direction, o.LimitPrice, o.Size, o.Stop, o.Target, o.Kind, o.SubmittedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("add pending order %s: %w", o.Symbol, err)
	}
	return res.LastInsertId()
}

// ListPendingOrders returns all pending orders for symbol, oldest first.
func (s *Store) ListPendingOrders(symbol string) ([]PendingOrder, error) {
	rows, err := s.db.Query(`
		SELECT id, symbol, direction, limit_price, size, stop, target, kind, submitted_at
		FROM pending_order WHERE symbol=? ORDER BY id ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("list pending orders %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []PendingOrder
	for rows.Next() {
		var o PendingOrder
		if err := rows.Scan(&o.ID, &o.Symbol, &o.Direction, &o.LimitPrice, &o.Size,
			&o.Stop, &o.Target, &o.Kind, &o.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// RemovePendingOrder deletes a pending order by id.
func (s *Store) RemovePendingOrder(id int64) error {
	_, err := s.db.Exec(`DELETE FROM pending_order WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("remove pending order %d: %w", id, err)
	}
	return nil
}
