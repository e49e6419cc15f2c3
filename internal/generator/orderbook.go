package generator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/maxrule98/simple-bot/internal/market"
	"github.com/maxrule98/simple-bot/internal/signal"
)

func init() {
	Register("orderbook", newOrderbook)
}

// Orderbook measures bid/ask volume imbalance over the top depth levels.
// Bid dominance above the threshold proposes BUY, ask dominance SELL.
type Orderbook struct {
	levels    int
	threshold float64
}

func newOrderbook(p Params, log *zap.Logger) (Generator, error) {
	if p.DepthLevels <= 0 {
		return nil, fmt.Errorf("orderbook generator: depth_levels %d must be positive", p.DepthLevels)
	}
	if p.ImbalanceThreshold <= 1 {
		return nil, fmt.Errorf("orderbook generator: imbalance_threshold %v must exceed 1", p.ImbalanceThreshold)
	}
	return &Orderbook{levels: p.DepthLevels, threshold: p.ImbalanceThreshold}, nil
}

func (o *Orderbook) Kind() string { return "orderbook" }

func (o *Orderbook) Generate(ctx Context) []signal.Signal {
	if ctx.Position != nil || ctx.Depth == nil {
		return nil
	}
	bid := sumDepth(ctx.Depth.Bids, o.levels)
	ask := sumDepth(ctx.Depth.Asks, o.levels)
	if bid == 0 || ask == 0 {
		return nil
	}

	var typ signal.Type
	var dominance float64
	switch ratio := bid / ask; {
	case ratio >= o.threshold:
		typ, dominance = signal.Buy, ratio
	case ratio <= 1/o.threshold:
		typ, dominance = signal.Sell, 1/ratio
	default:
		return nil
	}

	// Confidence grows with dominance past the threshold and caps at 1
	// when one side carries twice the threshold ratio.
	conf := dominance / (2 * o.threshold)
	if conf > 1 {
		conf = 1
	}
	return []signal.Signal{{
		Type:       typ,
		Source:     signal.SourceOrderbook,
		Confidence: conf,
		Reason:     fmt.Sprintf("depth imbalance %.2f over top %d levels", dominance, o.levels),
		Time:       ctx.Time,
	}}
}

func sumDepth(levels []market.DepthLevel, n int) float64 {
	total := 0.0
	for i, l := range levels {
		if i >= n {
			break
		}
		total += l.Qty
	}
	return total
}
