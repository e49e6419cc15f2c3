// Command trader runs one strategy instance against a live or mock feed with
// paper execution, exposing the monitor API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/maxrule98/simple-bot/internal/config"
	"github.com/maxrule98/simple-bot/internal/events"
	"github.com/maxrule98/simple-bot/internal/feed"
	"github.com/maxrule98/simple-bot/internal/logging"
	"github.com/maxrule98/simple-bot/internal/monitor"
	"github.com/maxrule98/simple-bot/internal/runtime"
	"github.com/maxrule98/simple-bot/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "trader:", err)
		os.Exit(1)
	}
}

func run() error {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(env.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	metrics := monitor.NewMetrics()
	exec := &runtime.PaperExecutor{
		FeeRate:     env.PaperFeeRate,
		SlippageBps: env.PaperSlippageBps,
	}
	rt, err := runtime.New(strat, exec, log,
		runtime.WithAudit(st), runtime.WithMetrics(metrics))
	if err != nil {
		return err
	}

	if env.WarmupBars > 0 {
		for _, tf := range strat.Timeframes() {
			bars, err := st.LastBars(ctx, strat.Instrument, tf, env.WarmupBars)
			if err != nil {
				return fmt.Errorf("warmup %s: %w", tf, err)
			}
			if err := rt.Preload(tf, bars); err != nil {
				return fmt.Errorf("warmup %s: %w", tf, err)
			}
			log.Info("buffer warmed", zap.String("timeframe", string(tf)), zap.Int("bars", len(bars)))
		}
	}

	src, err := buildFeed(env, strat, log)
	if err != nil {
		return err
	}

	srv := monitor.NewServer(rt, metrics)
	go func() {
		if err := srv.Run(":" + env.Port); err != nil {
			log.Error("monitor server stopped", zap.Error(err))
		}
	}()

	queue := events.NewQueue(1024)
	go func() {
		if err := src.Run(ctx, queue); err != nil && ctx.Err() == nil {
			log.Error("feed stopped", zap.Error(err))
			stop()
		}
	}()

	log.Info("trader started",
		zap.String("strategy", strat.Name),
		zap.String("instrument", strat.Instrument),
		zap.String("feed", env.FeedSource))

	if err := rt.Run(ctx, queue); err != nil && err != context.Canceled {
		return err
	}
	log.Info("trader stopped")
	return nil
}

func buildFeed(env *config.Env, strat *config.StrategyConfig, log *zap.Logger) (feed.Feed, error) {
	tfs := strat.Timeframes()
	primary, aux := tfs[0], tfs[1:]

	switch env.FeedSource {
	case "mock":
		return &feed.MockFeed{
			Instrument: strat.Instrument,
			Primary:    primary,
			Aux:        aux,
			StartPrice: 100,
			Seed:       time.Now().UnixNano(),
			Interval:   time.Second,
		}, nil
	case "binance":
		return feed.NewBinanceFeed(
			env.BinanceWSURL, strat.Instrument, tfs, depthLevels(strat), log,
		), nil
	default:
		return nil, fmt.Errorf("unknown FEED_SOURCE %q (use mock or binance; replay lives in cmd/backtest)", env.FeedSource)
	}
}

// depthLevels mirrors the orderbook generator's configuration so the feed
// subscribes to exactly the depth it needs.
func depthLevels(strat *config.StrategyConfig) int {
	for _, g := range strat.Generators {
		if g.Kind == "orderbook" {
			switch {
			case g.DepthLevels <= 5:
				return 5
			case g.DepthLevels <= 10:
				return 10
			default:
				return 20
			}
		}
	}
	return 0
}
