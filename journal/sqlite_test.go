package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldengine/market"
)

func TestSQLiteTradeRoundTrip(t *testing.T) {
	t.Parallel()

	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	entry := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	exit := entry.Add(45 * time.Minute)

	rec := TradeRecord{
		Ticket:     "01JXYZ",
		Symbol:     "XAUUSD",
		Direction:  market.Long,
		Size:       0.5,
		EntryPrice: 2000.30,
		ExitPrice:  2015.10,
		EntryTime:  entry,
		ExitTime:   exit,
		PnL:        733.0,
		Reason:     "TAKE_PROFIT",
	}
	require.NoError(t, j.RecordTrade(rec))

	got, err := j.Trade("01JXYZ")
	require.NoError(t, err)
	assert.Equal(t, rec.Symbol, got.Symbol)
	assert.Equal(t, rec.Direction, got.Direction)
	assert.InDelta(t, rec.PnL, got.PnL, 1e-9)
	assert.Equal(t, rec.Reason, got.Reason)

	_, err = j.Trade("missing")
	assert.Error(t, err)
}

func TestSQLiteTradesClosedBetween(t *testing.T) {
	t.Parallel()

	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i, exit := range []time.Time{base.Add(1 * time.Hour), base.Add(26 * time.Hour), base.Add(3 * time.Hour)} {
		require.NoError(t, j.RecordTrade(TradeRecord{
			Ticket: string(rune('A' + i)), Symbol: "XAUUSD", Direction: market.Long,
			Size: 1, EntryPrice: 2000, ExitPrice: 2001,
			EntryTime: exit.Add(-time.Hour), ExitTime: exit, PnL: 100, Reason: "SIGNAL_EXIT",
		}))
	}

	day := base.Add(24 * time.Hour)
	got, err := j.TradesClosedBetween(base, day)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].ExitTime.Before(got[1].ExitTime))
}

func TestSQLiteEquityAndDecisions(t *testing.T) {
	t.Parallel()

	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: now, Equity: 101000, Balance: 101000}))
	require.NoError(t, j.RecordDecision(DecisionRecord{
		Time: now, Symbol: "XAUUSD", Verdict: "NO-GO",
		Failed:  []string{"ECONOMIC_CALENDAR", "SIGNAL_CONFLUENCE"},
		Details: `{"economic_calendar":{"status":"FAIL"}}`,
	}))

	curve, err := j.EquityBetween(now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, curve, 1)
	assert.InDelta(t, 101000, curve[0].Equity, 1e-9)

	decisions, err := j.DecisionsBetween(now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "NO-GO", decisions[0].Verdict)
	assert.Equal(t, []string{"ECONOMIC_CALENDAR", "SIGNAL_CONFLUENCE"}, decisions[0].Failed)
}
