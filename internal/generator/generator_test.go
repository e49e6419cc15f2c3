package generator

import (
	"testing"
	"time"

	"github.com/maxrule98/simple-bot/internal/features"
	"github.com/maxrule98/simple-bot/internal/market"
	"github.com/maxrule98/simple-bot/internal/position"
	"github.com/maxrule98/simple-bot/internal/signal"
)

func ctxWith(fs features.FeatureSet, price float64) Context {
	return Context{
		Instrument: "BTC/USDT",
		Time:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Price:      price,
		Features:   fs,
		Lookup: func(name string, offset int) (float64, bool) {
			if offset != 0 {
				return 0, false
			}
			v, ok := fs[name]
			return v, ok
		},
	}
}

func TestTechnicalEntryAndConfidence(t *testing.T) {
	gen, err := New("technical", Params{
		EntryLong:      "RSI < 30",
		ExitLong:       "RSI > 70",
		BaseConfidence: 0.5,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	out := gen.Generate(ctxWith(features.FeatureSet{"RSI": 25}, 100))
	if len(out) != 1 || out[0].Type != signal.Buy {
		t.Fatalf("out=%v, want one BUY", out)
	}
	mild := out[0].Confidence

	out = gen.Generate(ctxWith(features.FeatureSet{"RSI": 5}, 100))
	deep := out[0].Confidence
	if deep <= mild {
		t.Fatalf("confidence not monotonic in excess: deep=%v mild=%v", deep, mild)
	}
	if deep > 1 {
		t.Fatalf("confidence %v exceeds cap", deep)
	}

	if out = gen.Generate(ctxWith(features.FeatureSet{"RSI": 50}, 100)); len(out) != 0 {
		t.Fatalf("rule not satisfied but got %v", out)
	}
	// Missing feature fails closed to no signal.
	if out = gen.Generate(ctxWith(features.FeatureSet{}, 100)); len(out) != 0 {
		t.Fatalf("missing feature produced %v", out)
	}
}

func TestTechnicalExitRule(t *testing.T) {
	gen, _ := New("technical", Params{EntryLong: "RSI < 30", ExitLong: "RSI > 70"}, nil)
	ctx := ctxWith(features.FeatureSet{"RSI": 75}, 100)
	ctx.Position, _ = position.New("p", "BTC/USDT", position.Long, 95, 1, time.Unix(0, 0))

	out := gen.Generate(ctx)
	if len(out) != 1 || out[0].Type != signal.Close {
		t.Fatalf("out=%v, want CLOSE", out)
	}
	// No entry proposals while a position is open.
	ctx.Features["RSI"] = 25
	if out = gen.Generate(ctx); len(out) != 0 {
		t.Fatalf("entry emitted with open position: %v", out)
	}
}

func TestTechnicalRejectsBadExpression(t *testing.T) {
	if _, err := New("technical", Params{EntryLong: "RSI <"}, nil); err == nil {
		t.Fatal("malformed expression accepted")
	}
	if _, err := New("technical", Params{}, nil); err == nil {
		t.Fatal("empty rule set accepted")
	}
}

func TestModelGenerator(t *testing.T) {
	gen, err := New("model", Params{PredFeature: "PRED", ProbFeature: "PRED_PROB", MinMovePct: 1.0}, nil)
	if err != nil {
		t.Fatal(err)
	}

	// +2% predicted move with probability 0.8.
	fs := features.FeatureSet{"PRED": 102, "PRED_PROB": 0.8}
	out := gen.Generate(ctxWith(fs, 100))
	if len(out) != 1 || out[0].Type != signal.Buy || out[0].Confidence != 0.8 {
		t.Fatalf("out=%v, want BUY conf 0.8", out)
	}

	// -2% predicted move.
	out = gen.Generate(ctxWith(features.FeatureSet{"PRED": 98, "PRED_PROB": 0.7}, 100))
	if len(out) != 1 || out[0].Type != signal.Sell {
		t.Fatalf("out=%v, want SELL", out)
	}

	// Below magnitude: silent.
	if out = gen.Generate(ctxWith(features.FeatureSet{"PRED": 100.5}, 100)); len(out) != 0 {
		t.Fatalf("sub-threshold move produced %v", out)
	}
	// Missing prediction: silent.
	if out = gen.Generate(ctxWith(features.FeatureSet{}, 100)); len(out) != 0 {
		t.Fatalf("missing prediction produced %v", out)
	}
}

func TestOrderbookImbalance(t *testing.T) {
	gen, err := New("orderbook", Params{DepthLevels: 2, ImbalanceThreshold: 1.5}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := ctxWith(features.FeatureSet{}, 100)
	ctx.Depth = &market.DepthSnapshot{
		Bids: []market.DepthLevel{{Price: 99.9, Qty: 6}, {Price: 99.8, Qty: 6}, {Price: 99.7, Qty: 100}},
		Asks: []market.DepthLevel{{Price: 100.1, Qty: 3}, {Price: 100.2, Qty: 3}},
	}

	// Only top 2 levels count: 12 vs 6 bid dominance = 2.0 >= 1.5.
	out := gen.Generate(ctx)
	if len(out) != 1 || out[0].Type != signal.Buy {
		t.Fatalf("out=%v, want BUY", out)
	}
	if out[0].Confidence <= 0 || out[0].Confidence > 1 {
		t.Fatalf("confidence %v outside (0,1]", out[0].Confidence)
	}

	// Mirror for ask dominance.
	ctx.Depth.Bids, ctx.Depth.Asks = ctx.Depth.Asks, ctx.Depth.Bids
	out = gen.Generate(ctx)
	if len(out) != 1 || out[0].Type != signal.Sell {
		t.Fatalf("out=%v, want SELL", out)
	}

	// Balanced book: silent.
	ctx.Depth = &market.DepthSnapshot{
		Bids: []market.DepthLevel{{Price: 99.9, Qty: 5}},
		Asks: []market.DepthLevel{{Price: 100.1, Qty: 5}},
	}
	if out = gen.Generate(ctx); len(out) != 0 {
		t.Fatalf("balanced book produced %v", out)
	}
	// No snapshot: silent.
	ctx.Depth = nil
	if out = gen.Generate(ctx); len(out) != 0 {
		t.Fatalf("nil depth produced %v", out)
	}
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	if _, err := New("astrology", Params{}, nil); err == nil {
		t.Fatal("unknown kind accepted")
	}
}
