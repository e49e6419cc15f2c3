// Command backfill downloads historical klines for every timeframe the
// strategy uses and stores them in the candle table, so cmd/backtest can
// replay them and cmd/trader can warm its buffers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/maxrule98/simple-bot/internal/config"
	"github.com/maxrule98/simple-bot/internal/feed"
	"github.com/maxrule98/simple-bot/internal/logging"
	"github.com/maxrule98/simple-bot/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "backfill:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		fromFlag  = flag.String("from", "", "range start, RFC3339 or YYYY-MM-DD (required)")
		untilFlag = flag.String("until", "", "range end, exclusive; empty means up to now")
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

	client := feed.NewKlineClient(env.BinanceRESTURL)
	ctx := context.Background()
	for _, tf := range strat.Timeframes() {
		bars, err := client.Klines(ctx, strat.Instrument, tf, from, until)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", tf, err)
		}
		if err := st.SaveBars(ctx, strat.Instrument, tf, bars); err != nil {
			return fmt.Errorf("save %s: %w", tf, err)
		}
		log.Info("timeframe backfilled",
			zap.String("instrument", strat.Instrument),
			zap.String("timeframe", string(tf)),
			zap.Int("bars", len(bars)))
	}
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
