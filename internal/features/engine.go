package features

import (
	"fmt"

	"github.com/maxrule98/simple-bot/internal/market"
)

// FeatureSet maps {NAME}_{TIMEFRAME} to the latest computed value. A missing
// key means the feature is null (insufficient history); conditions referencing
// it fail closed. A set is built whole and never mutated after Compute
// returns, so a tick either sees the complete refresh or the previous one.
type FeatureSet map[string]float64

// Lookup returns a feature value and whether it is present.
func (fs FeatureSet) Lookup(name string) (float64, bool) {
	v, ok := fs[name]
	return v, ok
}

// Indicator kinds resolvable from configuration.
const (
	KindSMA      = "SMA"
	KindEMA      = "EMA"
	KindRSI      = "RSI"
	KindROC      = "ROC"
	KindPred     = "PRED"
	KindPredProb = "PRED_PROB"
)

// IndicatorSpec declares one indicator computed on one timeframe.
type IndicatorSpec struct {
	Name     string // published name, e.g. "RSI"
	Kind     string
	Period   int
	Lookback int // PRED/PRED_PROB only
	Horizon  int // PRED only
}

// minHistory is the number of bars the indicator needs before it publishes.
func (s IndicatorSpec) minHistory() int {
	switch s.Kind {
	case KindSMA, KindEMA:
		return s.Period
	case KindRSI, KindROC:
		return s.Period + 1
	case KindPred:
		return s.Lookback + 5
	case KindPredProb:
		return s.Lookback + 1
	default:
		return 0
	}
}

// Validate rejects malformed specs at config load.
func (s IndicatorSpec) Validate() error {
	switch s.Kind {
	case KindSMA, KindEMA, KindRSI, KindROC:
		if s.Period <= 0 {
			return fmt.Errorf("indicator %s: period must be positive", s.Name)
		}
	case KindPred:
		if s.Lookback <= 1 || s.Horizon <= 0 {
			return fmt.Errorf("indicator %s: lookback and horizon must be positive", s.Name)
		}
	case KindPredProb:
		if s.Lookback <= 1 {
			return fmt.Errorf("indicator %s: lookback must be > 1", s.Name)
		}
	default:
		return fmt.Errorf("indicator %s: unknown kind %q", s.Name, s.Kind)
	}
	if s.Name == "" {
		return fmt.Errorf("indicator of kind %s has no name", s.Kind)
	}
	return nil
}

func (s IndicatorSpec) compute(closes []float64) (float64, bool) {
	switch s.Kind {
	case KindSMA:
		return SMA(closes, s.Period)
	case KindEMA:
		return EMA(closes, s.Period)
	case KindRSI:
		return RSI(closes, s.Period)
	case KindROC:
		return ROC(closes, s.Period)
	case KindPred:
		return Predict(closes, s.Lookback, s.Horizon)
	case KindPredProb:
		return PredictProb(closes, s.Lookback)
	default:
		return 0, false
	}
}

// TimeframeSpec groups the indicators computed against one timeframe buffer.
type TimeframeSpec struct {
	Timeframe  market.Timeframe
	Indicators []IndicatorSpec
}

// Engine recomputes all configured features in one pass. Computation is pure:
// only bars already in the buffers are read, so an indicator at time T never
// sees data past T.
type Engine struct {
	specs []TimeframeSpec
	// aliasTF is set when exactly one timeframe is configured; bare names
	// are then published alongside suffixed ones so single-timeframe rule
	// expressions keep working.
	aliasTF market.Timeframe
	window  int
}

// NewEngine validates the specs and builds an engine.
func NewEngine(specs []TimeframeSpec) (*Engine, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no feature specs configured")
	}
	window := 0
	seen := map[string]bool{}
	for _, tfs := range specs {
		for _, ind := range tfs.Indicators {
			if err := ind.Validate(); err != nil {
				return nil, err
			}
			key := ind.Name + "_" + string(tfs.Timeframe)
			if seen[key] {
				return nil, fmt.Errorf("duplicate feature %s", key)
			}
			seen[key] = true
			if mh := ind.minHistory(); mh > window {
				window = mh
			}
		}
	}
	e := &Engine{specs: specs, window: window + 1}
	if len(specs) == 1 {
		e.aliasTF = specs[0].Timeframe
	}
	return e, nil
}

// Compute builds a fresh FeatureSet from the buffers. Features whose buffer
// lacks history stay absent. PRICE and VOLUME of the newest bar are always
// published per timeframe.
func (e *Engine) Compute(buffers map[market.Timeframe]*market.Buffer) FeatureSet {
	fs := make(FeatureSet)
	for _, tfs := range e.specs {
		buf, ok := buffers[tfs.Timeframe]
		if !ok {
			continue
		}
		suffix := "_" + string(tfs.Timeframe)
		if last, ok := buf.Last(); ok {
			fs["PRICE"+suffix] = last.Close
			fs["VOLUME"+suffix] = last.Volume
		}
		closes := buf.Closes(e.window)
		for _, ind := range tfs.Indicators {
			if v, ok := ind.compute(closes); ok {
				fs[ind.Name+suffix] = v
			}
		}
		if tfs.Timeframe == e.aliasTF {
			suffixed := make([]string, 0, len(fs))
			for k := range fs {
				if len(k) > len(suffix) && k[len(k)-len(suffix):] == suffix {
					suffixed = append(suffixed, k)
				}
			}
			for _, k := range suffixed {
				fs[k[:len(k)-len(suffix)]] = fs[k]
			}
		}
	}
	return fs
}
