// Package gateway is the pre-trade authorization layer: a fixed ordered
// sequence of independent go/no-go checks collapsed into one verdict with full
// per-check diagnostics. The first check is critical and short-circuits the
// rest; every later check runs regardless of earlier failures so the decision
// record is complete.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"goldengine/journal"
	"goldengine/market"
	"goldengine/metrics"
)

// Verdicts.
const (
	VerdictGo              = "GO"
	VerdictNoGo            = "NO-GO"
	VerdictBlockedCritical = "BLOCKED_CRITICAL"
)

// Indicators is the signal state the confluence check votes on.
type Indicators struct {
	RSI        float64
	MACD       float64
	MACDSignal float64
	EMAFast    float64
	EMASlow    float64
}

// Input is everything a check may inspect for one proposed trade.
type Input struct {
	Symbol     string
	Equity     float64
	Entry      float64
	Stop       float64
	Target     float64
	RiskPct    float64
	Meta       market.InstrumentMeta
	PrevDay    market.Candle // prior session bar, feeds the pivot levels
	Indicators Indicators
}

// Result is one check's outcome plus its diagnostic payload.
type Result struct {
	Name   string
	Pass   bool
	Detail map[string]any
}

// Check is a single go/no-go gate.
type Check interface {
	Name() string
	Run(ctx context.Context, in Input) Result
}

// Decision is the aggregate verdict with the ordered per-check results.
type Decision struct {
	Time    time.Time
	Symbol  string
	Verdict string
	Checks  []Result
	Failed  []string
}

// Authorized reports whether execution may proceed.
func (d Decision) Authorized() bool { return d.Verdict == VerdictGo }

// Gateway runs its checks in order. Checks[0] is the critical gate.
type Gateway struct {
	checks  []Check
	journal journal.Journal
	log     zerolog.Logger
	now     func() time.Time
}

func New(jnl journal.Journal, log zerolog.Logger, checks ...Check) *Gateway {
	if jnl == nil {
		jnl = journal.Nop{}
	}
	return &Gateway{
		checks:  checks,
		journal: jnl,
		log:     log.With().Str("component", "gateway").Logger(),
		now:     time.Now,
	}
}

// Evaluate runs every check against in and returns the decision. The decision
// is journaled and counted whether or not it authorizes the trade.
func (g *Gateway) Evaluate(ctx context.Context, in Input) Decision {
	d := Decision{Time: g.now().UTC(), Symbol: in.Symbol, Verdict: VerdictGo}

	for i, c := range g.checks {
		res := c.Run(ctx, in)
		d.Checks = append(d.Checks, res)
		if res.Pass {
			continue
		}
		d.Failed = append(d.Failed, res.Name)
		if i == 0 {
			d.Verdict = VerdictBlockedCritical
			break
		}
		d.Verdict = VerdictNoGo
	}

	g.record(d)
	return d
}

func (g *Gateway) record(d Decision) {
	metrics.GatewayVerdicts.WithLabelValues(d.Verdict).Inc()

	details := make(map[string]map[string]any, len(d.Checks))
	for _, res := range d.Checks {
		payload := map[string]any{"status": "PASS"}
		if !res.Pass {
			payload["status"] = "FAIL"
		}
		for k, v := range res.Detail {
			payload[k] = v
		}
		details[res.Name] = payload
	}
	raw, err := json.Marshal(details)
	if err != nil {
		g.log.Error().Err(err).Msg("encode decision details")
		raw = []byte("{}")
	}

	if err := g.journal.RecordDecision(journal.DecisionRecord{
		Time:    d.Time,
		Symbol:  d.Symbol,
		Verdict: d.Verdict,
		Failed:  d.Failed,
		Details: string(raw),
	}); err != nil {
		g.log.Error().Err(err).Msg("journal decision record failed")
	}

	evt := g.log.Info()
	if !d.Authorized() {
		evt = g.log.Warn()
	}
	evt.Str("symbol", d.Symbol).Str("verdict", d.Verdict).Strs("failed", d.Failed).
		Int("checks", len(d.Checks)).Msg("gateway decision")
}
