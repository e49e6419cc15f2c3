package feed

import (
	"context"
	"math/rand"
	"time"

	"github.com/maxrule98/simple-bot/internal/events"
	"github.com/maxrule98/simple-bot/internal/market"
)

// MockFeed emits a seeded random-walk price series as closed bars on the
// primary timeframe, resampled into the auxiliary ones. The same seed always
// produces the same bar sequence, so paper runs are reproducible.
type MockFeed struct {
	Instrument string
	Primary    market.Timeframe
	Aux        []market.Timeframe
	StartPrice float64
	Seed       int64
	// Bars bounds the run; 0 means run until the context is cancelled.
	Bars int
	// Interval is the real-time delay between bars; 0 emits as fast as
	// the consumer drains.
	Interval time.Duration
}

// Run implements Feed. A bounded mock closes the queue when done.
func (f *MockFeed) Run(ctx context.Context, queue *events.Queue) error {
	rng := rand.New(rand.NewSource(f.Seed))
	price := f.StartPrice
	if price <= 0 {
		price = 100
	}

	resamplers := make(map[market.Timeframe]*Resampler, len(f.Aux))
	for _, tf := range f.Aux {
		resamplers[tf] = NewResampler(tf)
	}

	openTime := f.Primary.Truncate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	for i := 0; f.Bars == 0 || i < f.Bars; i++ {
		open := price
		high, low := open, open
		for tick := 0; tick < 4; tick++ {
			price *= 1 + (rng.Float64()-0.5)*0.004
			if price > high {
				high = price
			}
			if price < low {
				low = price
			}
		}
		bar := market.Bar{
			OpenTime: openTime,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    price,
			Volume:   1 + rng.Float64()*10,
		}

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

		openTime = openTime.Add(f.Primary.Duration())
		if f.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.Interval):
			}
		}
	}
	queue.Close()
	return nil
}
