package gateway

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"goldengine/risk"
)

// Check identifiers, in gate order.
const (
	CheckDutyConfirmation  = "DUTY_CONFIRMATION"
	CheckGlobalCues        = "GLOBAL_CUES"
	CheckEconomicCalendar  = "ECONOMIC_CALENDAR"
	CheckCurrencyMonitor   = "CURRENCY_MONITOR"
	CheckGeopoliticalRisk  = "GEOPOLITICAL_RISK"
	CheckPivotLevels       = "PIVOT_LEVELS"
	CheckSignalConfluence  = "SIGNAL_CONFLUENCE"
	CheckRiskManager       = "RISK_MANAGER"
)

// DutyEnvVar must hold the operator-confirmed import duty rate for the day.
const DutyEnvVar = "CONFIRMED_DAILY_DUTY_RATE"

const maxDutyRate = 0.20

// DutyConfirmation is the critical compliance gate: trading is blocked outright
// until an operator has confirmed the day's import duty rate.
type DutyConfirmation struct {
	// Getenv is swappable for tests; nil means os.Getenv.
	Getenv func(string) string
}

func (DutyConfirmation) Name() string { return CheckDutyConfirmation }

func (c DutyConfirmation) Run(_ context.Context, _ Input) Result {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	raw := getenv(DutyEnvVar)
	if raw == "" {
		return Result{Name: CheckDutyConfirmation, Detail: map[string]any{
			"error": fmt.Sprintf("duty rate not confirmed for today: set %s", DutyEnvVar),
		}}
	}
	duty, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Result{Name: CheckDutyConfirmation, Detail: map[string]any{
			"error": fmt.Sprintf("bad duty rate %q: %v", raw, err),
		}}
	}
	if duty < 0 || duty > maxDutyRate {
		return Result{Name: CheckDutyConfirmation, Detail: map[string]any{
			"error": fmt.Sprintf("duty rate %.2f%% outside 0-%.0f%%", duty*100, maxDutyRate*100),
		}}
	}
	return Result{Name: CheckDutyConfirmation, Pass: true, Detail: map[string]any{"duty_rate": duty}}
}

// GlobalCues derives a session bias from overnight index moves. Any readable
// bias passes; the bias itself is diagnostic, not a gate.
type GlobalCues struct {
	// ChangesPct maps index name to percent change since prior close.
	ChangesPct map[string]float64
}

func (GlobalCues) Name() string { return CheckGlobalCues }

func (c GlobalCues) Run(_ context.Context, _ Input) Result {
	if len(c.ChangesPct) == 0 {
		return Result{Name: CheckGlobalCues, Detail: map[string]any{"error": "no index data"}}
	}
	var score, n float64
	for _, change := range c.ChangesPct {
		switch {
		case change > 0.5:
			score++
		case change < -0.5:
			score--
		}
		n++
	}
	bias := "NEUTRAL"
	switch avg := score / n; {
	case avg > 0.5:
		bias = "BULLISH"
	case avg < -0.5:
		bias = "BEARISH"
	}
	return Result{Name: CheckGlobalCues, Pass: true, Detail: map[string]any{"bias": bias}}
}

// CalendarEvent is one scheduled macro release.
type CalendarEvent struct {
	Time   time.Time
	Title  string
	Impact string // LOW, MEDIUM, HIGH, VERY HIGH
}

// Titles that mark a release as high impact regardless of feed metadata.
var highImpactKeywords = []string{
	"NFP", "CPI", "FOMC", "ECB", "RBI", "GDP", "ISM", "PMI", "Jobless Claims",
}

// EconomicCalendar blocks trading inside the blackout window around
// high-impact macro releases.
type EconomicCalendar struct {
	Events   []CalendarEvent
	Blackout time.Duration // window ahead of the event; zero means 30m
	Now      func() time.Time
}

func (EconomicCalendar) Name() string { return CheckEconomicCalendar }

func (c EconomicCalendar) Run(_ context.Context, _ Input) Result {
	blackout := c.Blackout
	if blackout <= 0 {
		blackout = 30 * time.Minute
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	for _, ev := range c.Events {
		until := ev.Time.Sub(now())
		if until < 0 || until > blackout {
			continue
		}
		if !highImpact(ev) {
			continue
		}
		return Result{Name: CheckEconomicCalendar, Detail: map[string]any{
			"reason":      "high-impact event inside blackout window",
			"event":       ev.Title,
			"minutes_out": math.Round(until.Minutes()),
		}}
	}
	return Result{Name: CheckEconomicCalendar, Pass: true, Detail: map[string]any{}}
}

func highImpact(ev CalendarEvent) bool {
	if ev.Impact == "HIGH" || ev.Impact == "VERY HIGH" {
		for _, kw := range highImpactKeywords {
			if strings.Contains(ev.Title, kw) {
				return true
			}
		}
	}
	return false
}

// CurrencyMonitor blocks when the funding currency is moving too fast for the
// instrument's quote to be trusted.
type CurrencyMonitor struct {
	ChangePct    float64 // day-over-day percent move of the funding pair
	MaxChangePct float64 // zero means 0.5
}

func (CurrencyMonitor) Name() string { return CheckCurrencyMonitor }

func (c CurrencyMonitor) Run(_ context.Context, _ Input) Result {
	limit := c.MaxChangePct
	if limit <= 0 {
		limit = 0.5
	}
	detail := map[string]any{"change_pct": c.ChangePct}
	if math.Abs(c.ChangePct) > limit {
		detail["reason"] = "high currency volatility"
		return Result{Name: CheckCurrencyMonitor, Detail: detail}
	}
	return Result{Name: CheckCurrencyMonitor, Pass: true, Detail: detail}
}

// Headline is one recent news item scored for geopolitical risk.
type Headline struct {
	Time  time.Time
	Title string
}

var riskEvents = []string{
	"US-China tensions",
	"Middle East conflict",
	"Russia-Ukraine",
	"Israel-Palestine",
	"Taiwan strait",
	"North Korea",
}

// GeopoliticalRisk scores last-day headlines against known flashpoints and
// blocks when the level reaches HIGH.
type GeopoliticalRisk struct {
	Headlines []Headline
	Now       func() time.Time
}

func (GeopoliticalRisk) Name() string { return CheckGeopoliticalRisk }

func (c GeopoliticalRisk) Run(_ context.Context, _ Input) Result {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	score := 0
	for _, h := range c.Headlines {
		if now().Sub(h.Time) > 24*time.Hour {
			continue
		}
		for _, ev := range riskEvents {
			if strings.Contains(strings.ToLower(h.Title), strings.ToLower(ev)) {
				score++
			}
		}
	}

	level := "LOW"
	switch {
	case score > 5:
		level = "HIGH"
	case score > 2:
		level = "MEDIUM"
	}
	detail := map[string]any{"risk_level": level, "score": score}
	return Result{Name: CheckGeopoliticalRisk, Pass: level != "HIGH", Detail: detail}
}

// PivotCheck verifies the reference levels are computable from the prior
// session bar and publishes them for the decision loop.
type PivotCheck struct{}

func (PivotCheck) Name() string { return CheckPivotLevels }

func (PivotCheck) Run(_ context.Context, in Input) Result {
	if in.PrevDay.High <= 0 || in.PrevDay.Low <= 0 || in.PrevDay.Close <= 0 {
		return Result{Name: CheckPivotLevels, Detail: map[string]any{
			"reason": "no prior session bar",
		}}
	}
	lv := ComputePivots(in.PrevDay.High, in.PrevDay.Low, in.PrevDay.Close)
	return Result{Name: CheckPivotLevels, Pass: true, Detail: map[string]any{
		"pivot": lv.Pivot, "r1": lv.R1, "r2": lv.R2, "s1": lv.S1, "s2": lv.S2,
	}}
}

// SignalConfluence requires at least two of three indicator families aligned
// with the proposed entry.
type SignalConfluence struct{}

func (SignalConfluence) Name() string { return CheckSignalConfluence }

func (SignalConfluence) Run(_ context.Context, in Input) Result {
	ind := in.Indicators
	rsiAligned := ind.RSI > 50 && ind.RSI < 70
	macdAligned := ind.MACD > ind.MACDSignal
	emaAligned := ind.EMAFast > ind.EMASlow

	aligned := 0
	for _, ok := range []bool{rsiAligned, macdAligned, emaAligned} {
		if ok {
			aligned++
		}
	}
	detail := map[string]any{
		"aligned": aligned,
		"rsi":     rsiAligned,
		"macd":    macdAligned,
		"ema":     emaAligned,
	}
	if aligned < 2 {
		detail["reason"] = "weak signal confluence"
		return Result{Name: CheckSignalConfluence, Detail: detail}
	}
	return Result{Name: CheckSignalConfluence, Pass: true, Detail: detail}
}

// RiskManagerCheck runs the position sizer over the proposed setup; a zero
// size or an unacceptable reward-to-risk ratio blocks the trade.
type RiskManagerCheck struct {
	MinRewardRisk float64 // zero means 1.5
}

func (RiskManagerCheck) Name() string { return CheckRiskManager }

func (c RiskManagerCheck) Run(_ context.Context, in Input) Result {
	minRR := c.MinRewardRisk
	if minRR <= 0 {
		minRR = 1.5
	}

	res := risk.CalculateLotSize(risk.SizeInputs{
		Equity:     in.Equity,
		EntryPrice: in.Entry,
		StopPrice:  in.Stop,
		RiskPct:    in.RiskPct,
		Meta:       in.Meta,
	})
	detail := map[string]any{
		"lots":       res.Lots,
		"constraint": res.Constraint,
	}
	if res.Lots <= 0 {
		detail["reason"] = "position size calculation returned 0"
		return Result{Name: CheckRiskManager, Detail: detail}
	}
	if in.Target > 0 {
		ok, rr := risk.ValidateSetup(in.Entry, in.Stop, in.Target, minRR)
		detail["reward_risk"] = rr
		if !ok {
			detail["reason"] = "reward-to-risk below minimum"
			return Result{Name: CheckRiskManager, Detail: detail}
		}
	}
	return Result{Name: CheckRiskManager, Pass: true, Detail: detail}
}
