package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"goldengine/alert"
	"goldengine/broker/paper"
	"goldengine/config"
	"goldengine/engine"
	"goldengine/feed"
	"goldengine/gateway"
	"goldengine/journal"
	"goldengine/market"
	"goldengine/metrics"
	"goldengine/risk"
	"goldengine/store"
	"goldengine/strategy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine from a config file",
	Long: `Start the decision loop with settings from a configuration file.

The config file specifies the account, risk limits, market-data feeds,
strategy, and journal backend.

Example:
  goldengine run --config engine.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	// Operator confirmations (duty rate etc.) arrive through the environment.
	_ = godotenv.Load()

	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.State.DBPath, cfg.Account.Balance)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer st.Close()

	jnl, err := buildJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer jnl.Close()

	acct, err := st.GetAccount()
	if err != nil {
		return err
	}
	breaker := risk.NewCircuitBreaker(acct.Equity, cfg.Risk.DailyLossLimit, cfg.Risk.MaxDrawdownLimit)

	instruments := cfg.Instruments()

	buffers := make(map[string]*feed.Buffer, len(cfg.Feeds))
	feeds := make(map[string]engine.SymbolFeed, len(cfg.Feeds))
	strategies := make(map[string]strategy.Source, len(cfg.Feeds))
	for _, fc := range cfg.Feeds {
		poll, backoff, maxLatency, err := fc.Durations()
		if err != nil {
			return err
		}

		src := feed.CSVSource{Path: fc.Path}
		buf := feed.NewBuffer(fc.Symbol, src, log,
			feed.WithPollInterval(poll), feed.WithErrorBackoff(backoff))
		buffers[fc.Symbol] = buf

		feeds[fc.Symbol] = engine.SymbolFeed{
			Snapshots: buf,
			Heartbeat: feed.Heartbeat{Symbol: fc.Symbol, Source: src, MaxLatency: maxLatency},
			Poller:    buf,
		}

		// Each symbol gets its own strategy instance; crossover state is
		// per-instrument.
		strat, err := strategy.ByName(cfg.Strategy.Name, strategy.EMACrossConfig{
			FastPeriod: cfg.Strategy.FastPeriod,
			SlowPeriod: cfg.Strategy.SlowPeriod,
			ATRPeriod:  cfg.Strategy.ATRPeriod,
			StopATR:    cfg.Strategy.StopATR,
			RewardRisk: cfg.Strategy.RewardRisk,
			AllowShort: cfg.Strategy.AllowShort,
		})
		if err != nil {
			return err
		}
		strategies[fc.Symbol] = strat
	}

	broker := paper.NewEngine(paper.Config{
		Store:       st,
		Instruments: instruments,
		Journal:     jnl,
		Notifier:    alert.LogNotifier{Log: log},
		Health:      breaker,
		Ticks:       bufferTicks{buffers: buffers, instruments: instruments},
		Log:         log,
	})

	gw := gateway.New(jnl, log, buildChecks(cfg)...)

	eng, err := engine.New(engine.Config{
		Instruments: instruments,
		Broker:      broker,
		Limits:      broker,
		Gateway:     gw,
		Feeds:       feeds,
		Strategies:  strategies,
		RiskPct:     cfg.Risk.RiskPercent,
		Log:         log,
	})
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		srv := metrics.Serve(cfg.Metrics.Addr)
		defer srv.Close()
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics endpoint up")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("config", runConfigPath).Float64("equity", acct.Equity).Msg("engine starting")
	err = eng.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("engine stopped")
		return nil
	}
	return err
}

func buildLogger(lc config.LogConfig) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if lc.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(lc.Level)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("log.level: %w", err)
		}
	}

	var log zerolog.Logger
	if lc.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger(), nil
}

func buildJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.EquityFile, jc.DecisionsFile)
	default:
		return journal.Nop{}, nil
	}
}

// buildChecks assembles the gateway gates. The external market monitors run
// from neutral static inputs in the simulator; live data sources are an
// integration concern, not part of the engine.
func buildChecks(cfg *config.Config) []gateway.Check {
	blackout := 30 * time.Minute
	if cfg.Gateway.CalendarBlackout != "" {
		if d, err := time.ParseDuration(cfg.Gateway.CalendarBlackout); err == nil {
			blackout = d
		}
	}
	return []gateway.Check{
		gateway.DutyConfirmation{},
		gateway.GlobalCues{ChangesPct: map[string]float64{"baseline": 0}},
		gateway.EconomicCalendar{Blackout: blackout},
		gateway.CurrencyMonitor{MaxChangePct: cfg.Gateway.MaxCurrencyMove},
		gateway.GeopoliticalRisk{},
		gateway.PivotCheck{},
		gateway.SignalConfluence{},
		gateway.RiskManagerCheck{MinRewardRisk: cfg.Risk.MinRewardRisk},
	}
}

// bufferTicks adapts the feed buffers to the broker's tick source.
type bufferTicks struct {
	buffers     map[string]*feed.Buffer
	instruments map[string]market.InstrumentMeta
}

func (b bufferTicks) GetTick(_ context.Context, symbol string) (market.Tick, error) {
	buf, ok := b.buffers[symbol]
	if !ok {
		return market.Tick{}, fmt.Errorf("get tick: unknown symbol %s", symbol)
	}
	snap, ok := buf.Latest()
	if !ok {
		return market.Tick{}, fmt.Errorf("get tick %s: no snapshot yet", symbol)
	}
	tick, ok := snap.Tick(b.instruments[symbol])
	if !ok {
		return market.Tick{}, fmt.Errorf("get tick %s: empty snapshot", symbol)
	}
	return tick, nil
}
