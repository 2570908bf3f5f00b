package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldengine/broker"
	"goldengine/feed"
	"goldengine/gateway"
	"goldengine/journal"
	"goldengine/market"
	"goldengine/store"
	"goldengine/strategy"
)

type stubBroker struct {
	mu     sync.Mutex
	state  broker.AccountState
	placed []broker.OrderRequest
	sweeps []float64
	result broker.OrderResult
	err    error
}

func (b *stubBroker) Connect(context.Context) error { return nil }

func (b *stubBroker) GetTick(_ context.Context, symbol string) (market.Tick, error) {
	return market.Tick{Symbol: symbol}, nil
}

func (b *stubBroker) GetPositions(context.Context, string) (broker.AccountState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, nil
}

func (b *stubBroker) PlaceOrder(_ context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.placed = append(b.placed, req)
	return b.result, b.err
}

func (b *stubBroker) CheckLimits(_ context.Context, _ string, price float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sweeps = append(b.sweeps, price)
	return nil
}

type stubSnaps struct {
	snap feed.Snapshot
	ok   bool
}

func (s stubSnaps) Latest() (feed.Snapshot, bool) { return s.snap, s.ok }

type stubHeartbeat struct{ err error }

func (h stubHeartbeat) Check() error { return h.err }

type stubStrategy struct{ intent strategy.Intent }

func (s stubStrategy) Decide(feed.Snapshot, *store.Position) strategy.Intent { return s.intent }

func goldMeta() market.InstrumentMeta {
	return market.InstrumentMeta{
		Symbol: "XAUUSD", ContractSize: 100, Leverage: 100, TickSize: 0.01,
		Spread: 0.30, CommissionPerLot: 7, MinSize: 0.01, MaxSize: 100,
		SizeStep: 0.01, MarginBuffer: 0.05,
	}
}

func twoDaySnapshot(lastClose float64) feed.Snapshot {
	d1 := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return feed.Snapshot{
		Symbol:  "XAUUSD",
		Version: 3,
		Rows: []market.Candle{
			{Time: d1, Open: 1995, High: 2010, Low: 1985, Close: 2002},
			{Time: d2, Open: 2002, High: lastClose + 2, Low: lastClose - 2, Close: lastClose},
		},
		LastModified: d2,
	}
}

func passingGateway() *gateway.Gateway {
	now := func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return gateway.New(journal.Nop{}, zerolog.Nop(),
		gateway.DutyConfirmation{Getenv: func(string) string { return "0.06" }},
		gateway.GlobalCues{ChangesPct: map[string]float64{"S&P 500": 0.8}},
		gateway.EconomicCalendar{Now: now},
		gateway.CurrencyMonitor{ChangePct: 0.1},
		gateway.GeopoliticalRisk{Now: now},
		gateway.PivotCheck{},
		gateway.SignalConfluence{},
		gateway.RiskManagerCheck{},
	)
}

func alignedIndicators() gateway.Indicators {
	return gateway.Indicators{RSI: 60, MACD: 1.2, MACDSignal: 1.0, EMAFast: 2005, EMASlow: 2001}
}

func newTestEngine(t *testing.T, b *stubBroker, hb stubHeartbeat, snap feed.Snapshot, strat strategy.Source, gw *gateway.Gateway) *Engine {
	t.Helper()
	eng, err := New(Config{
		Instruments: map[string]market.InstrumentMeta{"XAUUSD": goldMeta()},
		Broker:      b,
		Limits:      b,
		Gateway:     gw,
		Feeds: map[string]SymbolFeed{
			"XAUUSD": {Snapshots: stubSnaps{snap: snap, ok: snap.Version > 0}, Heartbeat: hb},
		},
		Strategies: map[string]strategy.Source{"XAUUSD": strat},
		RiskPct:    0.01,
		Log:        zerolog.Nop(),
	})
	require.NoError(t, err)
	return eng
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{
		Broker: &stubBroker{},
		Feeds:  map[string]SymbolFeed{"BTCUSD": {}},
	})
	assert.ErrorContains(t, err, "no instrument metadata")
}

func TestStepSuspendsWhileStale(t *testing.T) {
	t.Parallel()

	b := &stubBroker{state: broker.AccountState{Equity: 100000}}
	hb := stubHeartbeat{err: &feed.StaleError{Symbol: "XAUUSD", Latency: time.Hour, Max: time.Minute}}
	buy := strategy.Intent{Action: broker.Buy, Stop: 1990, Indicators: alignedIndicators()}

	eng := newTestEngine(t, b, hb, twoDaySnapshot(2000), stubStrategy{intent: buy}, nil)

	require.NoError(t, eng.step(context.Background(), "XAUUSD"))
	assert.Empty(t, b.sweeps, "no trigger sweep while stale")
	assert.Empty(t, b.placed, "no orders while stale")
}

func TestStepSweepsBracketsOnHold(t *testing.T) {
	t.Parallel()

	b := &stubBroker{state: broker.AccountState{Equity: 100000}}
	eng := newTestEngine(t, b, stubHeartbeat{}, twoDaySnapshot(2000), stubStrategy{intent: strategy.Hold}, nil)

	require.NoError(t, eng.step(context.Background(), "XAUUSD"))
	require.Len(t, b.sweeps, 1)
	assert.InDelta(t, 2000.0, b.sweeps[0], 1e-9)
	assert.Empty(t, b.placed)
}

func TestStepOpensThroughGatewayAndSizer(t *testing.T) {
	t.Parallel()

	b := &stubBroker{
		state:  broker.AccountState{Equity: 100000},
		result: broker.OrderResult{Accepted: true, Ticket: "T1", FillPrice: 2000.4},
	}
	buy := strategy.Intent{Action: broker.Buy, Stop: 1990, Target: 2030, ATR: 1.2, Indicators: alignedIndicators()}

	eng := newTestEngine(t, b, stubHeartbeat{}, twoDaySnapshot(2000), stubStrategy{intent: buy}, passingGateway())

	require.NoError(t, eng.step(context.Background(), "XAUUSD"))
	require.Len(t, b.placed, 1)

	req := b.placed[0]
	assert.Equal(t, broker.Buy, req.Action)
	assert.Equal(t, broker.Market, req.Kind)
	// 1% of 100k over a 10-point stop on a 100 oz contract sizes to one lot.
	assert.InDelta(t, 1.0, req.Qty, 1e-9)
	assert.InDelta(t, 1990.0, req.Stop, 1e-9)
	assert.InDelta(t, 1.2, req.ATR, 1e-9)
}

func TestStepBlockedByGateway(t *testing.T) {
	t.Parallel()

	b := &stubBroker{state: broker.AccountState{Equity: 100000}}
	// Weak indicators fail the confluence vote.
	buy := strategy.Intent{Action: broker.Buy, Stop: 1990, Target: 2030,
		Indicators: gateway.Indicators{RSI: 40, MACD: 0.1, MACDSignal: 0.5, EMAFast: 1990, EMASlow: 2000}}

	eng := newTestEngine(t, b, stubHeartbeat{}, twoDaySnapshot(2000), stubStrategy{intent: buy}, passingGateway())

	require.NoError(t, eng.step(context.Background(), "XAUUSD"))
	assert.Empty(t, b.placed)
}

func TestStepFlattensOppositeSignal(t *testing.T) {
	t.Parallel()

	pos := &store.Position{Ticket: "T1", Symbol: "XAUUSD", Direction: market.Long, Size: 0.7}
	b := &stubBroker{
		state:  broker.AccountState{Equity: 100000, Position: pos},
		result: broker.OrderResult{Accepted: true, Ticket: "T1", RealizedPL: 120},
	}
	sell := strategy.Intent{Action: broker.Sell, ATR: 1.0}

	eng := newTestEngine(t, b, stubHeartbeat{}, twoDaySnapshot(2000), stubStrategy{intent: sell}, nil)

	require.NoError(t, eng.step(context.Background(), "XAUUSD"))
	require.Len(t, b.placed, 1)
	// Closes route straight to the broker, bypassing gateway and sizing.
	assert.InDelta(t, 0.7, b.placed[0].Qty, 1e-9)
	assert.Zero(t, b.placed[0].Stop)
}

func TestStepHaltedEntryIsNotAnError(t *testing.T) {
	t.Parallel()

	b := &stubBroker{
		state: broker.AccountState{Equity: 100000},
		err:   broker.ErrTradingHalted,
	}
	buy := strategy.Intent{Action: broker.Buy, Stop: 1990, Target: 2030, Indicators: alignedIndicators()}

	eng := newTestEngine(t, b, stubHeartbeat{}, twoDaySnapshot(2000), stubStrategy{intent: buy}, passingGateway())

	assert.NoError(t, eng.step(context.Background(), "XAUUSD"))
}

func TestPrevSessionBar(t *testing.T) {
	t.Parallel()

	d1a := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d1b := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	rows := []market.Candle{
		{Time: d1a, Open: 1990, High: 2001, Low: 1980, Close: 1995, Volume: 10},
		{Time: d1b, Open: 1995, High: 2010, Low: 1992, Close: 2002, Volume: 12},
		{Time: d2, Open: 2002, High: 2006, Low: 1999, Close: 2004, Volume: 5},
	}

	bar := prevSessionBar(rows)
	assert.InDelta(t, 1990.0, bar.Open, 1e-9)
	assert.InDelta(t, 2010.0, bar.High, 1e-9)
	assert.InDelta(t, 1980.0, bar.Low, 1e-9)
	assert.InDelta(t, 2002.0, bar.Close, 1e-9)
	assert.InDelta(t, 22.0, bar.Volume, 1e-9)

	assert.Equal(t, market.Candle{}, prevSessionBar(rows[2:]))
}
