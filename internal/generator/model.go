package generator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/maxrule98/simple-bot/internal/signal"
)

func init() {
	Register("model", newModel)
}

// Model consumes a precomputed prediction feature and proposes an entry when
// the predicted move exceeds the configured magnitude. The prediction is just
// another named feature; no model is trained or loaded here.
type Model struct {
	predFeature string
	probFeature string
	minMovePct  float64
	log         *zap.Logger
}

func newModel(p Params, log *zap.Logger) (Generator, error) {
	if p.PredFeature == "" {
		return nil, fmt.Errorf("model generator: pred_feature is required")
	}
	if p.MinMovePct <= 0 {
		return nil, fmt.Errorf("model generator: min_move_pct %v must be positive", p.MinMovePct)
	}
	return &Model{
		predFeature: p.PredFeature,
		probFeature: p.ProbFeature,
		minMovePct:  p.MinMovePct,
		log:         log,
	}, nil
}

func (m *Model) Kind() string { return "model" }

func (m *Model) Generate(ctx Context) []signal.Signal {
	if ctx.Position != nil || ctx.Price <= 0 {
		return nil
	}
	pred, ok := ctx.Features.Lookup(m.predFeature)
	if !ok {
		return nil
	}
	movePct := (pred/ctx.Price - 1) * 100

	var typ signal.Type
	switch {
	case movePct >= m.minMovePct:
		typ = signal.Buy
	case movePct <= -m.minMovePct:
		typ = signal.Sell
	default:
		return nil
	}

	conf := 0.5
	if m.probFeature != "" {
		if p, ok := ctx.Features.Lookup(m.probFeature); ok {
			conf = p
		}
	}
	return []signal.Signal{{
		Type:       typ,
		Source:     signal.SourceModel,
		Confidence: conf,
		Reason:     fmt.Sprintf("predicted move %.2f%% exceeds %.2f%%", movePct, m.minMovePct),
		Time:       ctx.Time,
	}}
}
