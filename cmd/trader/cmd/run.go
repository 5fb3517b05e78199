package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/broker/alpaca"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/broker/sim"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/config"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/engine"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/events"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/journal"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/logging"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/signals"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the execution engine",
	Long: `Run the execution engine against Alpaca.

The engine reconciles positions, evaluates exits before entries, submits
bracket orders and persists state every cycle. SIGINT drains the current
cycle before exiting.

Example:
  trader run -f config.yaml --signals proposals.json`,
	RunE: runRun,
}

var (
	runAnalyze     bool
	runSim         bool
	runSignalsPath string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runAnalyze, "analyze", false, "evaluate and log decisions without submitting orders")
	runCmd.Flags().BoolVar(&runSim, "sim", false, "use the in-memory sim broker instead of Alpaca")
	runCmd.Flags().StringVar(&runSignalsPath, "signals", "", "JSON file of trade proposals to enqueue at startup")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runAnalyze {
		cfg.Engine.Analyze = true
	}

	log, err := logging.New(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Sync()

	var brk broker.Broker
	var bars broker.BarSource
	if runSim {
		s := sim.New()
		brk, bars = s, s
	} else {
		creds, err := config.LoadCredentials()
		if err != nil {
			return err
		}
		client := alpaca.New(alpaca.Config{
			APIKey:    creds.APIKey,
			APISecret: creds.APISecret,
			BaseURL:   cfg.Alpaca.BaseURL,
		})
		brk, bars = client, client
	}

	provider := signals.NewCache(
		signals.NewAnalyzer(bars, log),
		cfg.Engine.CacheTTL.Std(),
	)

	// No live volatility index feed exists on this data plan; a configured
	// reading pins the sizing haircut, otherwise the neutral value applies.
	var vix signals.VIXSource
	if cfg.Engine.VIX > 0 {
		vix = signals.StaticVIX(cfg.Engine.VIX)
	}

	registry := strategies.NewDefaultRegistry()
	var strats []strategies.Strategy
	for _, name := range cfg.Engine.Strategies {
		s, err := registry.New(name, cfg.Strategy)
		if err != nil {
			return fmt.Errorf("strategy %q: %w", name, err)
		}
		strats = append(strats, s)
	}

	emitter := events.NewEmitter()
	emitter.Subscribe(events.LogHandler(log))

	jnl, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if jnl != nil {
		defer jnl.Close()
		emitter.Subscribe(journal.Handler(jnl))
	}

	eng, err := engine.New(engine.Config{
		CheckInterval: cfg.Engine.CheckInterval.Std(),
		MaxPositions:  cfg.Engine.MaxPositions,
		MaxRejects:    cfg.Engine.MaxRejects,
		Cooldown:      cfg.Engine.Cooldown.Std(),
		QueueCapacity: cfg.Engine.MaxSignals,
		SignalTTL:     cfg.Engine.SignalTTL.Std(),
		StatePath:     cfg.Engine.StatePath,
		Analyze:       cfg.Engine.Analyze,
	}, engine.Deps{
		Broker:     brk,
		Signals:    provider,
		VIX:        vix,
		Strategies: strats,
		Emitter:    emitter,
		Logger:     log,
		Journal:    jnl,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutdown requested, draining")
		eng.Stop()
	}()

	if runSignalsPath != "" {
		go enqueueSignals(eng, runSignalsPath, log)
	}

	err = eng.Start(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "sqlite":
		return journal.NewSQLite(cfg.DBPath)
	case "csv":
		return journal.NewCSV(cfg.TradesFile, cfg.EventsFile)
	default:
		return nil, nil
	}
}

// enqueueSignals loads a JSON array of proposals and feeds them to the
// running engine.
func enqueueSignals(eng *engine.Engine, path string, log *zap.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("read signals file", zap.Error(err))
		return
	}

	var proposals []market.PendingSignal
	if err := json.Unmarshal(data, &proposals); err != nil {
		log.Error("parse signals file", zap.Error(err))
		return
	}

	for _, p := range proposals {
		if err := eng.AddSignal(p); err != nil {
			log.Warn("signal not enqueued",
				zap.String("ticker", p.Ticker),
				zap.Error(err))
		}
	}
	log.Info("proposals enqueued", zap.Int("count", len(proposals)))
}
