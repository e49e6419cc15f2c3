package exits

import (
	"math"
	"testing"
	"time"

	"github.com/maxrule98/simple-bot/internal/position"
	"github.com/maxrule98/simple-bot/internal/signal"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func ladderConfig() Config {
	return Config{
		StopLossPct: 10,
		Ladder: []Level{
			{TriggerPct: 2, CloseFraction: 0.33},
			{TriggerPct: 4, CloseFraction: 0.33},
			{TriggerPct: 6, CloseFraction: 0.34},
		},
	}
}

func TestLadderFiresEachLevelOnceAndSumsToOriginal(t *testing.T) {
	m, err := New(ladderConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := position.New("p", "BTC/USDT", position.Long, 100, 1.0, t0)

	var closed float64
	var types []signal.Type
	for i, price := range []float64{100, 102, 104, 106} {
		now := t0.Add(time.Duration(i) * time.Minute)
		s := m.Evaluate(p, price, now)
		if price == 100 {
			if s != nil {
				t.Fatalf("exit at entry price: %v", s)
			}
			continue
		}
		if s == nil {
			t.Fatalf("no exit at price %v", price)
		}
		types = append(types, s.Type)
		qty := s.CloseFraction * p.OriginalQty
		if s.Type == signal.Close {
			qty = p.RemainingQty
		}
		closed += qty
		p.MarkLevel(s.Metadata[MetaLevel])
		p.ApplyFill(qty)
	}

	if math.Abs(closed-1.0) > 1e-9 {
		t.Fatalf("closed %v of original 1.0", closed)
	}
	want := []signal.Type{signal.PartialClose, signal.PartialClose, signal.Close}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestLadderLevelDoesNotRefireOnOscillation(t *testing.T) {
	m, _ := New(ladderConfig(), nil)
	p, _ := position.New("p", "BTC/USDT", position.Long, 100, 1.0, t0)

	s := m.Evaluate(p, 102.5, t0.Add(time.Minute))
	if s == nil || s.Type != signal.PartialClose {
		t.Fatalf("first trigger: %v", s)
	}
	p.MarkLevel(s.Metadata[MetaLevel])
	p.ApplyFill(0.33)

	// Dip below the trigger and climb back above it: tp1 stays fired.
	if s := m.Evaluate(p, 101, t0.Add(2*time.Minute)); s != nil {
		t.Fatalf("refire below trigger: %v", s)
	}
	if s := m.Evaluate(p, 103, t0.Add(3*time.Minute)); s != nil {
		t.Fatalf("tp1 refired: %v", s)
	}
}

func TestLadderLevelRearmsUntilMarked(t *testing.T) {
	m, _ := New(ladderConfig(), nil)
	p, _ := position.New("p", "BTC/USDT", position.Long, 100, 1.0, t0)

	// The order for tp1 was rejected, so the level is never marked and the
	// same rung fires again on the next tick at the same price.
	first := m.Evaluate(p, 102, t0.Add(time.Minute))
	if first == nil || first.Metadata[MetaLevel] != "tp1" {
		t.Fatalf("first trigger: %v", first)
	}
	again := m.Evaluate(p, 102, t0.Add(2*time.Minute))
	if again == nil || again.Metadata[MetaLevel] != "tp1" {
		t.Fatalf("unmarked level did not rearm: %v", again)
	}
	if again.CloseFraction != 0.33 {
		t.Fatalf("rearmed fraction %v", again.CloseFraction)
	}
}

func TestStopLossPreemptsEverything(t *testing.T) {
	cfg := ladderConfig()
	cfg.StopLossPct = 5
	cfg.TrailingStopPct = 1
	m, _ := New(cfg, nil)
	p, _ := position.New("p", "BTC/USDT", position.Long, 100, 1.0, t0)

	// Run up so the trailing condition will also be satisfied on the crash.
	if s := m.Evaluate(p, 101, t0.Add(time.Minute)); s != nil {
		t.Fatalf("unexpected exit on run-up: %v", s)
	}
	s := m.Evaluate(p, 94, t0.Add(2*time.Minute))
	if s == nil || s.Type != signal.Close || s.Confidence != 1.0 {
		t.Fatalf("stop loss signal: %v", s)
	}
	if s.Metadata["exit"] != "stop_loss" {
		t.Fatalf("exit kind %q, want stop_loss", s.Metadata["exit"])
	}
}

func TestTrailingStopUsesMonotonicExtreme(t *testing.T) {
	m, _ := New(Config{TrailingStopPct: 1}, nil)
	p, _ := position.New("p", "BTC/USDT", position.Long, 100, 1.0, t0)

	if s := m.Evaluate(p, 110, t0.Add(time.Minute)); s != nil {
		t.Fatalf("exit at new high: %v", s)
	}
	if p.HighestSinceEntry != 110 {
		t.Fatalf("high=%v", p.HighestSinceEntry)
	}

	// 108 < 110 * 0.99.
	s := m.Evaluate(p, 108, t0.Add(2*time.Minute))
	if s == nil || s.Type != signal.Close || s.Metadata["exit"] != "trailing_stop" {
		t.Fatalf("trailing signal: %v", s)
	}
	if p.HighestSinceEntry != 110 {
		t.Fatalf("extreme moved backward: %v", p.HighestSinceEntry)
	}
}

func TestTrailingStopShortSide(t *testing.T) {
	m, _ := New(Config{TrailingStopPct: 1}, nil)
	p, _ := position.New("p", "BTC/USDT", position.Short, 100, 1.0, t0)

	if s := m.Evaluate(p, 90, t0.Add(time.Minute)); s != nil {
		t.Fatalf("exit at new low: %v", s)
	}
	s := m.Evaluate(p, 91.5, t0.Add(2*time.Minute))
	if s == nil || s.Type != signal.Close {
		t.Fatalf("short trailing signal: %v", s)
	}
}

func TestTimeExit(t *testing.T) {
	cfg := Config{MaxHold: Duration(time.Hour), TimeExitConfidence: 0.4}
	m, _ := New(cfg, nil)
	p, _ := position.New("p", "BTC/USDT", position.Long, 100, 1.0, t0)

	if s := m.Evaluate(p, 100, t0.Add(30*time.Minute)); s != nil {
		t.Fatalf("early time exit: %v", s)
	}
	s := m.Evaluate(p, 100, t0.Add(2*time.Hour))
	if s == nil || s.Type != signal.Close || s.Confidence != 0.4 {
		t.Fatalf("time exit signal: %v", s)
	}

	// In profit with the override flag set, the time exit stands down.
	cfg.IgnoreTimeExitInProfit = true
	m, _ = New(cfg, nil)
	p2, _ := position.New("p2", "BTC/USDT", position.Long, 100, 1.0, t0)
	if s := m.Evaluate(p2, 105, t0.Add(2*time.Hour)); s != nil {
		t.Fatalf("time exit fired in profit despite override: %v", s)
	}
}

func TestTimeExitSkippedAfterTakeProfit(t *testing.T) {
	cfg := ladderConfig()
	cfg.MaxHold = Duration(time.Hour)
	m, _ := New(cfg, nil)
	p, _ := position.New("p", "BTC/USDT", position.Long, 100, 1.0, t0)

	s := m.Evaluate(p, 102.5, t0.Add(time.Minute))
	if s == nil {
		t.Fatal("tp1 did not fire")
	}
	p.MarkLevel(s.Metadata[MetaLevel])
	p.ApplyFill(0.33)
	if s := m.Evaluate(p, 101, t0.Add(3*time.Hour)); s != nil {
		t.Fatalf("time exit after banked take profit: %v", s)
	}
}

func TestConfigValidation(t *testing.T) {
	bad := []Config{
		{Ladder: []Level{{TriggerPct: 2, CloseFraction: 0.6}, {TriggerPct: 4, CloseFraction: 0.6}}},
		{Ladder: []Level{{TriggerPct: 4, CloseFraction: 0.3}, {TriggerPct: 2, CloseFraction: 0.3}}},
		{Ladder: []Level{{TriggerPct: 2, CloseFraction: 1.5}}},
		{Ladder: []Level{{TriggerPct: 0, CloseFraction: 0.5}}},
		{StopLossPct: -1},
		{TimeExitConfidence: 2},
	}
	for i, cfg := range bad {
		if _, err := New(cfg, nil); err == nil {
			t.Fatalf("case %d: invalid exit config accepted", i)
		}
	}
	if _, err := New(ladderConfig(), nil); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
