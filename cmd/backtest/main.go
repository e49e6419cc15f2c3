// Command backtest replays stored candles through the same runtime the
// trader uses and prints the resulting decision trail.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/maxrule98/simple-bot/internal/config"
	"github.com/maxrule98/simple-bot/internal/events"
	"github.com/maxrule98/simple-bot/internal/feed"
	"github.com/maxrule98/simple-bot/internal/logging"
	"github.com/maxrule98/simple-bot/internal/runtime"
	"github.com/maxrule98/simple-bot/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "backtest:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		fromFlag  = flag.String("from", "", "range start, RFC3339 or YYYY-MM-DD (required)")
		untilFlag = flag.String("until", "", "range end, exclusive; empty means everything stored")
	)
	flag.Parse()

	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	log, err := logging.New(env.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	strat, err := config.LoadStrategy(env.StrategyPath)
	if err != nil {
		return err
	}

	from, err := parseTime(*fromFlag)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	var until time.Time
	if *untilFlag != "" {
		if until, err = parseTime(*untilFlag); err != nil {
			return fmt.Errorf("-until: %w", err)
		}
	}

	st, err := store.Open(env.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	exec := &runtime.PaperExecutor{
		FeeRate:     env.PaperFeeRate,
		SlippageBps: env.PaperSlippageBps,
	}
	rt, err := runtime.New(strat, exec, log)
	if err != nil {
		return err
	}

	tfs := strat.Timeframes()
	src := &feed.ReplayFeed{
		Store:      st,
		Instrument: strat.Instrument,
		Primary:    tfs[0],
		Aux:        tfs[1:],
		From:       from,
		Until:      until,
	}

	ctx := context.Background()
	queue := events.NewQueue(1024)
	errc := make(chan error, 1)
	go func() { errc <- src.Run(ctx, queue) }()

	if err := rt.Run(ctx, queue); err != nil {
		return err
	}
	if err := <-errc; err != nil {
		return err
	}

	report(rt, log)
	return nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("value is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func report(rt *runtime.Runtime, log *zap.Logger) {
	transitions := rt.Transitions()
	fmt.Printf("transitions: %d\n", len(transitions))
	for _, tr := range transitions {
		fmt.Printf("  %s  %-6s  %-28s  qty=%.8f  price=%.4f\n",
			tr.Time.Format(time.RFC3339), tr.Kind, tr.PositionID, tr.Quantity, tr.Price)
	}

	byType := map[string]int{}
	for _, s := range rt.Signals() {
		byType[string(s.Type)]++
	}
	fmt.Printf("decisions: %v\n", byType)
	log.Info("backtest finished", zap.Int("transitions", len(transitions)))
}
