// Package features computes named indicator values from candle buffers and
// publishes them as immutable per-tick feature sets.
package features

// Indicator helpers are pure functions over close-price series, oldest first.
// Each returns ok=false when the series is too short, which surfaces as a
// null feature upstream.

// SMA is the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), true
}

// EMA is the exponential moving average seeded with an SMA of the first
// period values.
func EMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	seed, _ := SMA(values[:period], period)
	k := 2.0 / float64(period+1)
	ema := seed
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
	}
	return ema, true
}

// RSI computes a Relative Strength Index over the last period changes,
// without Wilder smoothing.
func RSI(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period+1 {
		return 0, false
	}
	gain, loss := 0.0, 0.0
	for i := len(values) - period; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	if loss == 0 {
		return 100, true
	}
	rs := gain / loss
	return 100 - (100 / (1 + rs)), true
}

// ROC is the percent rate of change over period bars.
func ROC(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period+1 {
		return 0, false
	}
	prev := values[len(values)-1-period]
	if prev == 0 {
		return 0, false
	}
	return (values[len(values)-1]/prev - 1) * 100, true
}
