package feed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldengine/market"
)

// memSource is an in-memory Source with a controllable modification marker.
type memSource struct {
	mu       sync.Mutex
	modified time.Time
	rows     []RawRow
	loadErr  error
	statErr  error
}

func (s *memSource) LastModified() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified, s.statErr
}

func (s *memSource) Load() ([]RawRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.loadErr
}

func (s *memSource) set(modified time.Time, rows []RawRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modified = modified
	s.rows = rows
}

func row(t, o, h, l, c, v string) RawRow {
	return RawRow{Time: t, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	rows := []RawRow{
		row("2026-03-02 09:00:00", "2000", "2005", "1998", "2003", "1200"),
		// zero close is a gap, healed from the prior row
		row("2026-03-02 09:01:00", "2003", "2006", "2001", "0", "900"),
		// garbage open, healed; negative volume clamps to zero
		row("2026-03-02 09:02:00", "n/a", "2007", "2002", "2005", "-4"),
	}

	clean := Sanitize(rows)
	require.Len(t, clean, 3)

	assert.InDelta(t, 2003.0, clean[1].Close, 1e-9)
	assert.InDelta(t, 2003.0, clean[2].Open, 1e-9)
	assert.Zero(t, clean[2].Volume)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), clean[0].Time)
}

func TestSanitizeDropsUnhealableRows(t *testing.T) {
	t.Parallel()

	rows := []RawRow{
		// nothing before it to fill from
		row("2026-03-02 09:00:00", "0", "2005", "1998", "2003", "10"),
		row("2026-03-02 09:01:00", "2003", "2006", "2001", "2004", "10"),
	}
	clean := Sanitize(rows)
	require.Len(t, clean, 1)
	assert.InDelta(t, 2004.0, clean[0].Close, 1e-9)
}

func TestBufferVersionNeverRegresses(t *testing.T) {
	t.Parallel()

	src := &memSource{}
	base := time.Now()
	src.set(base, []RawRow{row("2026-03-02 09:00:00", "2000", "2005", "1998", "2003", "10")})

	b := NewBuffer("XAUUSD", src, zerolog.Nop(),
		WithPollInterval(time.Millisecond), WithErrorBackoff(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()

	waitReady := func() Snapshot {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			if snap, ok := b.Latest(); ok {
				return snap
			}
			select {
			case <-deadline:
				t.Fatal("buffer never published")
			case <-time.After(time.Millisecond):
			}
		}
	}

	first := waitReady()
	assert.Equal(t, uint64(1), first.Version)
	lastClose, ok := first.LastClose()
	require.True(t, ok)
	assert.InDelta(t, 2003.0, lastClose, 1e-9)

	// A source update bumps the version; an unchanged source does not.
	src.set(base.Add(time.Second), []RawRow{
		row("2026-03-02 09:00:00", "2000", "2005", "1998", "2003", "10"),
		row("2026-03-02 09:01:00", "2003", "2008", "2002", "2006", "12"),
	})

	deadline := time.After(2 * time.Second)
	var last uint64 = first.Version
	for {
		snap, _ := b.Latest()
		require.GreaterOrEqual(t, snap.Version, last)
		last = snap.Version
		if snap.Version >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("version never advanced")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestBufferSurvivesReadErrors(t *testing.T) {
	t.Parallel()

	src := &memSource{}
	src.set(time.Now(), nil)
	src.loadErr = errors.New("disk wobble")

	b := NewBuffer("XAUUSD", src, zerolog.Nop(),
		WithPollInterval(time.Millisecond), WithErrorBackoff(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, ok := b.Latest()
	assert.False(t, ok)
}

func TestSnapshotTick(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Symbol:       "XAUUSD",
		Rows:         []market.Candle{{Close: 2000}},
		LastModified: time.Now(),
	}
	meta := market.InstrumentMeta{Spread: 0.30}

	tick, ok := snap.Tick(meta)
	require.True(t, ok)
	assert.InDelta(t, 1999.85, tick.Bid, 1e-9)
	assert.InDelta(t, 2000.15, tick.Ask, 1e-9)
	assert.InDelta(t, 2000.0, tick.Mid(), 1e-9)

	_, ok = Snapshot{}.Tick(meta)
	assert.False(t, ok)
}

func TestHeartbeat(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	fresh := &memSource{modified: now.Add(-10 * time.Second)}
	hb := Heartbeat{Symbol: "XAUUSD", Source: fresh, MaxLatency: time.Minute, Now: clock}
	assert.NoError(t, hb.Check())

	stale := &memSource{modified: now.Add(-5 * time.Minute)}
	hb.Source = stale
	err := hb.Check()
	var serr *StaleError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "XAUUSD", serr.Symbol)
	assert.Equal(t, 5*time.Minute, serr.Latency)

	missing := &memSource{statErr: os.ErrNotExist}
	hb.Source = missing
	err = hb.Check()
	require.Error(t, err)
	assert.False(t, errors.As(err, &serr))
}

func TestCSVSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "xauusd.csv")
	data := "Date,Open,High,Low,Close,Volume\n" +
		"2026-03-02 09:00:00,2000,2005,1998,2003,1200\n" +
		"2026-03-02 09:01:00,2003,2006,2001,2004,900\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	src := CSVSource{Path: path}
	_, err := src.LastModified()
	require.NoError(t, err)

	rows, err := src.Load()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2003", rows[0].Close)
	assert.Equal(t, "900", rows[1].Volume)

	_, err = CSVSource{Path: filepath.Join(t.TempDir(), "missing.csv")}.LastModified()
	assert.Error(t, err)
}
