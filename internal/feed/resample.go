package feed

import (
	"github.com/maxrule98/simple-bot/internal/market"
)

// Resampler folds base-timeframe bars into one coarser timeframe, so a
// single recorded stream can drive multi-timeframe strategies. Feed a base
// bar in, get the current (possibly still accumulating) bucket bar back.
type Resampler struct {
	tf  market.Timeframe
	cur market.Bar
	has bool
}

// NewResampler builds a resampler for the target timeframe.
func NewResampler(tf market.Timeframe) *Resampler {
	return &Resampler{tf: tf}
}

// Push merges a closed base bar into the current bucket and returns the
// bucket's bar. Callers emit it as a forming update; the candle buffer
// replaces it in place until the bucket rolls over.
func (r *Resampler) Push(base market.Bar) market.Bar {
	bucket := r.tf.Truncate(base.OpenTime)
	if !r.has || bucket.After(r.cur.OpenTime) {
		r.cur = market.Bar{
			OpenTime: bucket,
			Open:     base.Open,
			High:     base.High,
			Low:      base.Low,
			Close:    base.Close,
			Volume:   base.Volume,
		}
		r.has = true
	} else {
		r.cur.Merge(base)
	}
	return r.cur
}
