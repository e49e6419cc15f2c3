package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/maxrule98/simple-bot/internal/events"
	"github.com/maxrule98/simple-bot/internal/market"
	"github.com/maxrule98/simple-bot/internal/store"
)

// ReplayFeed drives a runtime from stored candles. Auxiliary timeframes are
// resampled from the primary stream, so one recorded series backs the whole
// strategy. The queue closes when the range is exhausted.
type ReplayFeed struct {
	Store      *store.Store
	Instrument string
	Primary    market.Timeframe
	Aux        []market.Timeframe
	From       time.Time
	Until      time.Time
}

// Run implements Feed.
func (f *ReplayFeed) Run(ctx context.Context, queue *events.Queue) error {
	bars, err := f.Store.LoadBars(ctx, f.Instrument, f.Primary, f.From, f.Until, 0)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("replay: no stored candles for %s %s in range", f.Instrument, f.Primary)
	}

	resamplers := make(map[market.Timeframe]*Resampler, len(f.Aux))
	for _, tf := range f.Aux {
		resamplers[tf] = NewResampler(tf)
	}

	for _, bar := range bars {
		// Auxiliary updates go first so the primary boundary sees them.
		for _, tf := range f.Aux {
			ev := events.BarEvent{
				Instrument: f.Instrument,
				Timeframe:  tf,
				Bar:        resamplers[tf].Push(bar),
			}
			if err := queue.Push(ctx, ev); err != nil {
				return err
			}
		}
		ev := events.BarEvent{
			Instrument: f.Instrument,
			Timeframe:  f.Primary,
			Bar:        bar,
			Final:      true,
		}
		if err := queue.Push(ctx, ev); err != nil {
			return err
		}
	}
	queue.Close()
	return nil
}
