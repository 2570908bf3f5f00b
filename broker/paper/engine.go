// Package paper is the execution simulator. It fills market intents against
// the state store with a spread/slippage/commission model, enforces the
// mandatory-stop and margin rules, and replays exchange-side bracket behavior
// (stops, targets, resting limits) through CheckLimits.
package paper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"goldengine/alert"
	"goldengine/broker"
	"goldengine/internal/id"
	"goldengine/journal"
	"goldengine/market"
	"goldengine/metrics"
	"goldengine/store"
)

// Closing reasons recorded in the audit journal.
const (
	ReasonStopLoss   = "STOP_LOSS"
	ReasonTakeProfit = "TAKE_PROFIT"
	ReasonSignalExit = "SIGNAL_EXIT"
)

const defaultNotifyTimeout = 2 * time.Second

// TickSource supplies current quotes; the feed layer implements it.
type TickSource interface {
	GetTick(ctx context.Context, symbol string) (market.Tick, error)
}

// HealthChecker gates new entries; the risk circuit breaker implements it.
type HealthChecker interface {
	CheckHealth(currentEquity float64) (bool, string)
}

// Config wires an Engine.
type Config struct {
	Store         *store.Store
	Instruments   map[string]market.InstrumentMeta
	Journal       journal.Journal
	Notifier      alert.Notifier
	NotifyTimeout time.Duration
	Health        HealthChecker
	Ticks         TickSource
	Rand          *rand.Rand // deterministic slippage for tests; nil seeds from time
	Log           zerolog.Logger
}

type Engine struct {
	mu            sync.Mutex
	store         *store.Store
	instruments   map[string]market.InstrumentMeta
	journal       journal.Journal
	notifier      alert.Notifier
	notifyTimeout time.Duration
	health        HealthChecker
	ticks         TickSource
	rng           *rand.Rand
	log           zerolog.Logger
	connected     bool
}

func NewEngine(cfg Config) *Engine {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	jnl := cfg.Journal
	if jnl == nil {
		jnl = journal.Nop{}
	}
	timeout := cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &Engine{
		store:         cfg.Store,
		instruments:   cfg.Instruments,
		journal:       jnl,
		notifier:      cfg.Notifier,
		notifyTimeout: timeout,
		health:        cfg.Health,
		ticks:         cfg.Ticks,
		rng:           rng,
		log:           cfg.Log.With().Str("component", "paper").Logger(),
	}
}

// Connect verifies the state store is reachable.
func (e *Engine) Connect(ctx context.Context) error {
	_ = ctx
	if _, err := e.store.GetAccount(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()
	return nil
}

// GetTick delegates to the wired tick source.
func (e *Engine) GetTick(ctx context.Context, symbol string) (market.Tick, error) {
	if e.ticks == nil {
		return market.Tick{}, fmt.Errorf("get tick %s: no tick source wired", symbol)
	}
	return e.ticks.GetTick(ctx, symbol)
}

// GetPositions returns the read-only account view for one symbol.
func (e *Engine) GetPositions(ctx context.Context, symbol string) (broker.AccountState, error) {
	_ = ctx

	e.mu.Lock()
	ok := e.connected
	e.mu.Unlock()
	if !ok {
		return broker.AccountState{}, fmt.Errorf("get positions %s: broker not connected", symbol)
	}

	acct, err := e.store.GetAccount()
	if err != nil {
		return broker.AccountState{}, err
	}
	state := broker.AccountState{Equity: acct.Equity, Balance: acct.Balance}

	pos, ok, err := e.store.GetOpenPosition(symbol)
	if err != nil {
		return broker.AccountState{}, err
	}
	if ok {
		state.Position = &pos
	}

	state.Orders, err = e.store.ListPendingOrders(symbol)
	if err != nil {
		return broker.AccountState{}, err
	}
	return state, nil
}

// PlaceOrder executes one intent. Rejections return a typed error and never
// mutate state; the caller re-decides next tick rather than retrying.
func (e *Engine) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return broker.OrderResult{}, fmt.Errorf("place order %s: broker not connected", req.Symbol)
	}
	return e.placeLocked(ctx, req, ReasonSignalExit)
}

func (e *Engine) placeLocked(ctx context.Context, req broker.OrderRequest, closeReason string) (broker.OrderResult, error) {
	if err := e.validate(req); err != nil {
		e.rejected(req, err)
		return broker.OrderResult{Reason: err.Error()}, err
	}
	meta := e.instruments[req.Symbol]

	if req.Kind == broker.Limit {
		return e.placeLimitLocked(req)
	}

	pos, open, err := e.store.GetOpenPosition(req.Symbol)
	if err != nil {
		return broker.OrderResult{}, err
	}

	intent := market.Long
	if req.Action == broker.Sell {
		intent = market.Short
	}

	if open {
		if pos.Direction == intent {
			err := &broker.ValidationError{Symbol: req.Symbol, Reason: "position already open"}
			e.rejected(req, err)
			return broker.OrderResult{Reason: err.Reason}, err
		}
		// Opposing intent closes the open position.
		return e.closeLocked(ctx, pos, req.Price, req.ATR, closeReason)
	}

	return e.openLocked(ctx, req, meta, intent)
}

func (e *Engine) validate(req broker.OrderRequest) error {
	if req.Action != broker.Buy && req.Action != broker.Sell {
		return &broker.ValidationError{Symbol: req.Symbol, Reason: "action must be BUY or SELL"}
	}
	if req.Qty <= 0 {
		return &broker.ValidationError{Symbol: req.Symbol, Reason: "size must be positive"}
	}
	if req.Price <= 0 {
		return &broker.ValidationError{Symbol: req.Symbol, Reason: "price must be positive"}
	}
	if _, ok := e.instruments[req.Symbol]; !ok {
		return &broker.ValidationError{Symbol: req.Symbol, Reason: "unknown instrument"}
	}
	return nil
}

func (e *Engine) openLocked(ctx context.Context, req broker.OrderRequest, meta market.InstrumentMeta, dir market.Direction) (broker.OrderResult, error) {
	// No naked positions: every entry carries a protective stop on the
	// correct side of the reference price.
	if req.Stop <= 0 {
		err := &broker.ValidationError{Symbol: req.Symbol, Reason: "no naked positions: stop required"}
		e.rejected(req, err)
		return broker.OrderResult{Reason: err.Reason}, err
	}
	if dir == market.Long && req.Stop >= req.Price {
		err := &broker.ValidationError{Symbol: req.Symbol, Reason: "long stop must be below reference price"}
		e.rejected(req, err)
		return broker.OrderResult{Reason: err.Reason}, err
	}
	if dir == market.Short && req.Stop <= req.Price {
		err := &broker.ValidationError{Symbol: req.Symbol, Reason: "short stop must be above reference price"}
		e.rejected(req, err)
		return broker.OrderResult{Reason: err.Reason}, err
	}

	acct, err := e.store.GetAccount()
	if err != nil {
		return broker.OrderResult{}, err
	}

	if e.health != nil {
		if healthy, reason := e.health.CheckHealth(acct.Equity); !healthy {
			err := fmt.Errorf("%w: %s", broker.ErrTradingHalted, reason)
			e.rejected(req, err)
			metrics.OrdersTotal.WithLabelValues(req.Symbol, "halted").Inc()
			return broker.OrderResult{Reason: reason}, err
		}
	}

	fill := e.entryFill(req.Price, dir, meta, req.ATR)

	required := fill * meta.ContractSize * req.Qty / meta.Leverage
	if acct.Equity < required {
		err := &broker.MarginError{Symbol: req.Symbol, Required: required, Equity: acct.Equity}
		e.rejected(req, err)
		metrics.OrdersTotal.WithLabelValues(req.Symbol, "margin_rejected").Inc()
		return broker.OrderResult{Reason: err.Error()}, err
	}

	now := time.Now().UTC()
	ticket := id.Ticket()
	err = e.store.AddPosition(store.Position{
		Ticket:      ticket,
		Symbol:      req.Symbol,
		Direction:   dir,
		Size:        req.Qty,
		EntryPrice:  fill,
		StopPrice:   req.Stop,
		TargetPrice: req.Target,
		EntryTime:   now,
	})
	if err != nil {
		return broker.OrderResult{}, err
	}

	metrics.OrdersTotal.WithLabelValues(req.Symbol, "accepted").Inc()
	e.log.Info().
		Str("symbol", req.Symbol).Str("direction", string(dir)).Str("ticket", ticket).
		Float64("qty", req.Qty).Float64("fill", fill).Float64("stop", req.Stop).
		Msg("position opened")
	e.notify(ctx, fmt.Sprintf("OPEN %s %s %.2f lots @ %.2f (stop %.2f)", dir, req.Symbol, req.Qty, fill, req.Stop))

	return broker.OrderResult{Accepted: true, Ticket: ticket, FillPrice: fill}, nil
}

func (e *Engine) closeLocked(ctx context.Context, pos store.Position, refPrice, atr float64, reason string) (broker.OrderResult, error) {
	meta := e.instruments[pos.Symbol]

	fill := e.exitFill(refPrice, pos.Direction, meta, atr)

	gross := (fill - pos.EntryPrice) * meta.ContractSize * pos.Size * pos.Direction.Sign()
	net := gross - meta.CommissionPerLot*pos.Size

	now := time.Now().UTC()
	if err := e.store.ClosePosition(pos.Symbol, fill, net, now); err != nil {
		return broker.OrderResult{}, err
	}

	acct, err := e.store.GetAccount()
	if err != nil {
		return broker.OrderResult{}, err
	}

	if err := e.journal.RecordTrade(journal.TradeRecord{
		Ticket:     pos.Ticket,
		Symbol:     pos.Symbol,
		Direction:  pos.Direction,
		Size:       pos.Size,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  fill,
		EntryTime:  pos.EntryTime,
		ExitTime:   now,
		PnL:        net,
		Reason:     reason,
	}); err != nil {
		e.log.Error().Err(err).Str("ticket", pos.Ticket).Msg("journal trade record failed")
	}
	if err := e.journal.RecordEquity(journal.EquitySnapshot{Time: now, Equity: acct.Equity, Balance: acct.Balance}); err != nil {
		e.log.Error().Err(err).Msg("journal equity record failed")
	}

	// Every equity change re-evaluates account health.
	if e.health != nil {
		if healthy, why := e.health.CheckHealth(acct.Equity); !healthy {
			metrics.BreakerTrips.Inc()
			e.log.Warn().Str("symbol", pos.Symbol).Str("reason", why).Msg("circuit breaker unhealthy after close")
		}
	}

	metrics.OrdersTotal.WithLabelValues(pos.Symbol, "closed").Inc()
	e.log.Info().
		Str("symbol", pos.Symbol).Str("ticket", pos.Ticket).Str("reason", reason).
		Float64("fill", fill).Float64("pnl", net).
		Msg("position closed")
	e.notify(ctx, fmt.Sprintf("CLOSE %s %s @ %.2f pnl %.2f (%s)", pos.Direction, pos.Symbol, fill, net, reason))

	return broker.OrderResult{Accepted: true, Ticket: pos.Ticket, FillPrice: fill, RealizedPL: net, Reason: reason}, nil
}

func (e *Engine) placeLimitLocked(req broker.OrderRequest) (broker.OrderResult, error) {
	dir := market.Long
	if req.Action == broker.Sell {
		dir = market.Short
	}
	// Stops and targets must sit on the correct side of the limit price.
	if req.Stop > 0 {
		if dir == market.Long && req.Stop >= req.Price {
			err := &broker.ValidationError{Symbol: req.Symbol, Reason: "long limit stop must be below limit price"}
			e.rejected(req, err)
			return broker.OrderResult{Reason: err.Reason}, err
		}
		if dir == market.Short && req.Stop <= req.Price {
			err := &broker.ValidationError{Symbol: req.Symbol, Reason: "short limit stop must be above limit price"}
			e.rejected(req, err)
			return broker.OrderResult{Reason: err.Reason}, err
		}
	}
	if req.Target > 0 {
		if dir == market.Long && req.Target <= req.Price {
			err := &broker.ValidationError{Symbol: req.Symbol, Reason: "long limit target must be above limit price"}
			e.rejected(req, err)
			return broker.OrderResult{Reason: err.Reason}, err
		}
		if dir == market.Short && req.Target >= req.Price {
			err := &broker.ValidationError{Symbol: req.Symbol, Reason: "short limit target must be below limit price"}
			e.rejected(req, err)
			return broker.OrderResult{Reason: err.Reason}, err
		}
	}

	oid, err := e.store.AddPendingOrder(store.PendingOrder{
		Symbol:      req.Symbol,
		Direction:   dir,
		LimitPrice:  req.Price,
		Size:        req.Qty,
		Stop:        req.Stop,
		Target:      req.Target,
		Kind:        string(broker.Limit),
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return broker.OrderResult{}, err
	}

	metrics.OrdersTotal.WithLabelValues(req.Symbol, "pending").Inc()
	e.log.Info().
		Str("symbol", req.Symbol).Str("direction", string(dir)).Int64("order_id", oid).
		Float64("limit", req.Price).Float64("qty", req.Qty).
		Msg("limit order parked")

	return broker.OrderResult{Accepted: true, Ticket: fmt.Sprintf("P%d", oid)}, nil
}

func (e *Engine) rejected(req broker.OrderRequest, err error) {
	metrics.OrdersTotal.WithLabelValues(req.Symbol, "rejected").Inc()
	e.log.Warn().
		Str("symbol", req.Symbol).Str("action", req.Action.String()).
		Float64("price", req.Price).Float64("qty", req.Qty).
		Err(err).
		Msg("order rejected")
}

// notify delivers an event with a hard timeout and swallows failures; a dead
// notification channel must never stall the execution path.
func (e *Engine) notify(ctx context.Context, msg string) {
	if e.notifier == nil {
		return
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.notifyTimeout)
		defer cancel()
		if err := e.notifier.Send(nctx, msg); err != nil {
			e.log.Warn().Err(err).Msg("notification failed")
		}
	}()
}
