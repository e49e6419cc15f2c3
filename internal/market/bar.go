// Package market holds the core market-data types: OHLCV bars, timeframes,
// depth snapshots, and the per-timeframe candle buffer.
package market

import (
	"errors"
	"fmt"
	"time"
)

// Timeframe identifies a candle interval such as "1m" or "4h".
type Timeframe string

var timeframeDurations = map[Timeframe]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseTimeframe validates an interval string.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// Duration returns the bucket length of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// Truncate aligns t down to the start of its bucket for this timeframe.
func (tf Timeframe) Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(tf.Duration())
}

// Bar is a single OHLCV observation for one timeframe bucket.
type Bar struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Merge folds a finer-grained bar into b, widening high/low and replacing the
// close. Used when resampling a base stream into auxiliary timeframes.
func (b *Bar) Merge(other Bar) {
	if other.High > b.High {
		b.High = other.High
	}
	if other.Low < b.Low {
		b.Low = other.Low
	}
	b.Close = other.Close
	b.Volume += other.Volume
}

// DepthLevel is one price level of an order book side.
type DepthLevel struct {
	Price float64
	Qty   float64
}

// DepthSnapshot is a point-in-time view of top-of-book depth.
type DepthSnapshot struct {
	Bids []DepthLevel // best bid first
	Asks []DepthLevel // best ask first
	Time time.Time
}

var errEmptyDepth = errors.New("depth snapshot has no levels")

// Validate rejects malformed snapshots (empty book, non-positive quantities).
func (d DepthSnapshot) Validate() error {
	if len(d.Bids) == 0 && len(d.Asks) == 0 {
		return errEmptyDepth
	}
	for _, lvl := range append(append([]DepthLevel{}, d.Bids...), d.Asks...) {
		if lvl.Price <= 0 || lvl.Qty < 0 {
			return fmt.Errorf("bad depth level price=%v qty=%v", lvl.Price, lvl.Qty)
		}
	}
	return nil
}
