// Package feed keeps one sanitized market snapshot per symbol fresh in memory.
// A background poller per symbol watches an external snapshot source and swaps
// the cached snapshot atomically; readers never block on I/O.
package feed

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"
)

// Source is an external snapshot source: a file, a fixture, anything with a
// last-modified marker and loadable raw rows.
type Source interface {
	// LastModified returns the source's modification marker, used both for
	// change detection and heartbeat staleness.
	LastModified() (time.Time, error)
	// Load reads all raw rows. Values come back unparsed; Sanitize owns
	// coercion and gap healing.
	Load() ([]RawRow, error)
}

// RawRow is one unsanitized OHLCV record.
type RawRow struct {
	Time   string
	Open   string
	High   string
	Low    string
	Close  string
	Volume string
}

// CSVSource reads the per-symbol candle file that the data pipeline appends to.
type CSVSource struct {
	Path string
}

func (s CSVSource) LastModified() (time.Time, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", s.Path, err)
	}
	return info.ModTime(), nil
}

func (s CSVSource) Load() ([]RawRow, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols := columnIndex(records[0])
	rows := make([]RawRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, RawRow{
			Time:   field(rec, cols["time"]),
			Open:   field(rec, cols["open"]),
			High:   field(rec, cols["high"]),
			Low:    field(rec, cols["low"]),
			Close:  field(rec, cols["close"]),
			Volume: field(rec, cols["volume"]),
		})
	}
	return rows, nil
}

func columnIndex(header []string) map[string]int {
	idx := map[string]int{"time": -1, "open": -1, "high": -1, "low": -1, "close": -1, "volume": -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "time", "timestamp", "date", "datetime":
			idx["time"] = i
		case "open":
			idx["open"] = i
		case "high":
			idx["high"] = i
		case "low":
			idx["low"] = i
		case "close", "adj close":
			if idx["close"] == -1 {
				idx["close"] = i
			}
		case "volume":
			idx["volume"] = i
		}
	}
	return idx
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
