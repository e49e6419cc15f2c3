// Package aggregate combines signals from multiple generators into at most
// one actionable decision.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/maxrule98/simple-bot/internal/signal"
)

// Policy selects how concurrent signals are combined.
type Policy string

const (
	// PolicyVoting picks the majority signal type; ties yield no decision.
	PolicyVoting Policy = "voting"
	// PolicyWeighted sums confidence per type normalized by total signal
	// count; the heaviest type wins only above the configured threshold.
	PolicyWeighted Policy = "weighted"
	// PolicyUnanimous requires every signal to agree on the type.
	PolicyUnanimous Policy = "unanimous"
	// PolicyThreshold passes through the first signal, in registration
	// order, whose confidence exceeds the cutoff.
	PolicyThreshold Policy = "threshold"
)

// Aggregator applies one policy to the signals produced in a single tick.
type Aggregator struct {
	policy    Policy
	threshold float64
}

// New validates the policy name and threshold at load time.
func New(policy Policy, threshold float64) (*Aggregator, error) {
	switch policy {
	case PolicyVoting, PolicyWeighted, PolicyUnanimous, PolicyThreshold:
	default:
		return nil, fmt.Errorf("aggregate: unknown policy %q", policy)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("aggregate: threshold %v outside [0,1]", threshold)
	}
	return &Aggregator{policy: policy, threshold: threshold}, nil
}

// Aggregate reduces the input to a single decision, or nil when no policy
// condition is met. The result's type is always one present in the input.
func (a *Aggregator) Aggregate(signals []signal.Signal) *signal.Signal {
	if len(signals) == 0 {
		return nil
	}
	switch a.policy {
	case PolicyVoting:
		return a.voting(signals)
	case PolicyWeighted:
		return a.weighted(signals)
	case PolicyUnanimous:
		return a.unanimous(signals)
	case PolicyThreshold:
		return a.passThreshold(signals)
	}
	return nil
}

func (a *Aggregator) voting(signals []signal.Signal) *signal.Signal {
	counts := map[signal.Type]int{}
	for _, s := range signals {
		counts[s.Type]++
	}
	var winner signal.Type
	best, tie := 0, false
	for _, typ := range orderedTypes(counts) {
		switch n := counts[typ]; {
		case n > best:
			winner, best, tie = typ, n, false
		case n == best:
			tie = true
		}
	}
	if tie {
		return nil
	}
	return a.decide(winner, signals, fmt.Sprintf("majority vote %d/%d", best, len(signals)))
}

func (a *Aggregator) weighted(signals []signal.Signal) *signal.Signal {
	weights := map[signal.Type]float64{}
	for _, s := range signals {
		weights[s.Type] += s.Confidence
	}
	total := float64(len(signals))
	var winner signal.Type
	best := 0.0
	for _, typ := range orderedTypes(weights) {
		if w := weights[typ] / total; w > best {
			winner, best = typ, w
		}
	}
	if best <= a.threshold {
		return nil
	}
	return a.decide(winner, signals, fmt.Sprintf("weighted confidence %.3f > %.3f", best, a.threshold))
}

func (a *Aggregator) unanimous(signals []signal.Signal) *signal.Signal {
	typ := signals[0].Type
	for _, s := range signals[1:] {
		if s.Type != typ {
			return nil
		}
	}
	return a.decide(typ, signals, fmt.Sprintf("unanimous across %d signals", len(signals)))
}

func (a *Aggregator) passThreshold(signals []signal.Signal) *signal.Signal {
	for _, s := range signals {
		if s.Confidence > a.threshold {
			out := s
			out.Metadata = cloneWith(s.Metadata, "policy", string(a.policy))
			return &out
		}
	}
	return nil
}

// decide builds the result from the signals of the winning type: confidence
// is their mean, the source is the first contributor's, and all contributing
// sources are recorded in metadata.
func (a *Aggregator) decide(typ signal.Type, signals []signal.Signal, reason string) *signal.Signal {
	var sum float64
	var n int
	var sources []string
	var source signal.Source
	var when time.Time
	for _, s := range signals {
		if s.Type != typ {
			continue
		}
		if n == 0 {
			source = s.Source
			when = s.Time
		}
		sum += s.Confidence
		n++
		sources = append(sources, string(s.Source))
		if s.Time.After(when) {
			when = s.Time
		}
	}
	return &signal.Signal{
		Type:       typ,
		Source:     source,
		Confidence: sum / float64(n),
		Reason:     reason,
		Time:       when,
		Metadata: map[string]string{
			"policy":  string(a.policy),
			"sources": strings.Join(sources, ","),
		},
	}
}

// orderedTypes iterates map keys deterministically so ties and equal weights
// resolve the same way on every run.
func orderedTypes[V any](m map[signal.Type]V) []signal.Type {
	keys := make([]signal.Type, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func cloneWith(m map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for key, val := range m {
		out[key] = val
	}
	out[k] = v
	return out
}
