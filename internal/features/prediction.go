package features

import "math"

// Predict extrapolates a point price prediction horizon bars ahead from
// recent momentum and a least-squares trend slope, damped by volatility and
// clamped to a ±10% move. It is the in-process stand-in for an external
// model: downstream code consumes the result as just another named feature.
func Predict(values []float64, lookback, horizon int) (float64, bool) {
	if lookback <= 1 || horizon <= 0 || len(values) < lookback+5 {
		return 0, false
	}
	recent := values[len(values)-lookback:]
	current := recent[len(recent)-1]

	momentum, volatility := returnsStats(recent)
	slope := trendSlope(recent)

	damp := 1 - volatility*0.5
	if damp < 0 {
		damp = 0
	}
	predicted := current + (current*momentum*float64(horizon)+slope*float64(horizon))*damp

	maxMove := current * 0.10
	if predicted > current+maxMove {
		predicted = current + maxMove
	}
	if predicted < current-maxMove {
		predicted = current - maxMove
	}
	return predicted, true
}

// PredictProb scores how consistently recent returns agree with the trend
// direction, in [0,1]. Used as the model-confidence feature.
func PredictProb(values []float64, lookback int) (float64, bool) {
	if lookback <= 1 || len(values) < lookback+1 {
		return 0, false
	}
	recent := values[len(values)-lookback-1:]
	up, total := 0, 0
	for i := 1; i < len(recent); i++ {
		if recent[i] == recent[i-1] {
			continue
		}
		total++
		if recent[i] > recent[i-1] {
			up++
		}
	}
	if total == 0 {
		return 0.5, true
	}
	frac := float64(up) / float64(total)
	// Agreement with the dominant direction, mapped so 50/50 -> 0.5 and
	// unanimous moves -> 1.0.
	return 0.5 + math.Abs(frac-0.5), true
}

func returnsStats(values []float64) (mean, stddev float64) {
	var rets []float64
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		rets = append(rets, values[i]/values[i-1]-1)
	}
	if len(rets) == 0 {
		return 0, 0
	}
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	for _, r := range rets {
		stddev += (r - mean) * (r - mean)
	}
	stddev = math.Sqrt(stddev / float64(len(rets)))
	return mean, stddev
}

func trendSlope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
