package position

import (
	"math"
	"testing"
	"time"
)

func TestExtremesAreMonotonic(t *testing.T) {
	p, err := New("p1", "BTC/USDT", Long, 100, 1, time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	prices := []float64{101, 99, 105, 95, 104, 96}
	for _, px := range prices {
		p.ObservePrice(px)
	}
	if p.HighestSinceEntry != 105 {
		t.Fatalf("high=%v, want 105", p.HighestSinceEntry)
	}
	if p.LowestSinceEntry != 95 {
		t.Fatalf("low=%v, want 95", p.LowestSinceEntry)
	}
}

func TestPnLPctSideAdjusted(t *testing.T) {
	long, _ := New("l", "BTC/USDT", Long, 100, 1, time.Unix(0, 0))
	short, _ := New("s", "BTC/USDT", Short, 100, 1, time.Unix(0, 0))

	if got := long.PnLPct(110); math.Abs(got-10) > 1e-9 {
		t.Fatalf("long pnl=%v, want 10", got)
	}
	if got := short.PnLPct(110); got >= 0 {
		t.Fatalf("short pnl=%v, want negative when price rises", got)
	}
	if got := short.PnLPct(90); math.Abs(got-100.0/9.0) > 1e-9 {
		t.Fatalf("short pnl=%v", got)
	}
}

func TestApplyFillReducesAndCloses(t *testing.T) {
	p, _ := New("p", "ETH/USDT", Long, 2000, 3, time.Unix(0, 0))
	if closed := p.ApplyFill(1); closed {
		t.Fatal("closed after partial fill")
	}
	if p.RemainingQty != 2 {
		t.Fatalf("remaining=%v, want 2", p.RemainingQty)
	}
	if p.OriginalQty != 3 {
		t.Fatalf("original quantity changed: %v", p.OriginalQty)
	}
	if closed := p.ApplyFill(2); !closed {
		t.Fatal("not closed at zero remaining")
	}
}

func TestLevelFiresOnce(t *testing.T) {
	p, _ := New("p", "ETH/USDT", Long, 2000, 3, time.Unix(0, 0))
	if p.LevelFired("tp1") {
		t.Fatal("level fired before marking")
	}
	p.MarkLevel("tp1")
	if !p.LevelFired("tp1") || !p.AnyLevelFired() {
		t.Fatal("marked level not reported")
	}
}

func TestNewRejectsBadInputs(t *testing.T) {
	if _, err := New("p", "X", Long, 0, 1, time.Unix(0, 0)); err == nil {
		t.Fatal("zero price accepted")
	}
	if _, err := New("p", "X", Long, 100, -1, time.Unix(0, 0)); err == nil {
		t.Fatal("negative quantity accepted")
	}
	if _, err := New("p", "X", "SIDEWAYS", 100, 1, time.Unix(0, 0)); err == nil {
		t.Fatal("unknown side accepted")
	}
}
