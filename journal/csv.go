// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSV writes trades, equity, and decisions to three flat files. Useful when
// the run's artifacts feed a spreadsheet rather than queries.
type CSV struct {
	trades    *csv.Writer
	equity    *csv.Writer
	decisions *csv.Writer
	files     []*os.File
}

func NewCSV(tradesPath, equityPath, decisionsPath string) (*CSV, error) {
	j := &CSV{}

	open := func(path string, header []string) (*csv.Writer, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.trades, err = open(tradesPath, []string{
		"ticket", "symbol", "direction", "size", "entry_price", "exit_price",
		"entry_time", "exit_time", "pnl", "reason",
	}); err != nil {
		return nil, err
	}
	if j.equity, err = open(equityPath, []string{"time", "equity", "balance"}); err != nil {
		return nil, err
	}
	if j.decisions, err = open(decisionsPath, []string{"time", "symbol", "verdict", "failed", "details"}); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.Ticket,
		t.Symbol,
		string(t.Direction),
		f(t.Size),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.EntryTime.Format(time.RFC3339),
		t.ExitTime.Format(time.RFC3339),
		f(t.PnL),
		t.Reason,
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Equity),
		f(e.Balance),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) RecordDecision(d DecisionRecord) error {
	err := j.decisions.Write([]string{
		d.Time.Format(time.RFC3339),
		d.Symbol,
		d.Verdict,
		strings.Join(d.Failed, ";"),
		d.Details,
	})
	if err != nil {
		return err
	}
	j.decisions.Flush()
	return j.decisions.Error()
}

func (j *CSV) Close() error {
	for _, w := range []*csv.Writer{j.trades, j.equity, j.decisions} {
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	}
	for _, file := range j.files {
		if err := file.Close(); err != nil {
			return err
		}
	}
	return nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
