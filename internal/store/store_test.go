package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/maxrule98/simple-bot/internal/market"
	"github.com/maxrule98/simple-bot/internal/runtime"
	"github.com/maxrule98/simple-bot/internal/signal"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordSignalAndTransition(t *testing.T) {
	s := openTemp(t)
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := s.RecordSignal("BTC/USDT", signal.Signal{
		Type: signal.Buy, Source: signal.SourceTechnical,
		Confidence: 0.7, Reason: "rule satisfied", Time: when,
	})
	if err != nil {
		t.Fatal(err)
	}
	err = s.RecordTransition("BTC/USDT", runtime.Transition{
		PositionID: "BTC/USDT-1714564800000", Kind: runtime.TransitionOpen,
		Quantity: 0.01, Price: 64000, Time: when,
	})
	if err != nil {
		t.Fatal(err)
	}

	var n int
	if err := s.DB.QueryRow("SELECT COUNT(*) FROM signals").Scan(&n); err != nil || n != 1 {
		t.Fatalf("signals count=%d err=%v", n, err)
	}
	if err := s.DB.QueryRow("SELECT COUNT(*) FROM position_transitions").Scan(&n); err != nil || n != 1 {
		t.Fatalf("transitions count=%d err=%v", n, err)
	}
}

func TestSaveAndLoadBarsRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	var bars []market.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, market.Bar{
			OpenTime: start.Add(time.Duration(i) * time.Minute),
			Open:     100 + float64(i), High: 101 + float64(i),
			Low: 99 + float64(i), Close: 100.5 + float64(i), Volume: 10,
		})
	}
	if err := s.SaveBars(ctx, "BTC/USDT", "1m", bars); err != nil {
		t.Fatal(err)
	}
	// Overlapping save is an upsert, not an error.
	if err := s.SaveBars(ctx, "BTC/USDT", "1m", bars[2:]); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadBars(ctx, "BTC/USDT", "1m", start, time.Time{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("loaded %d bars, want 5", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].OpenTime.After(got[i-1].OpenTime) {
			t.Fatalf("bars not ascending at %d", i)
		}
	}
	if got[0].Close != 100.5 {
		t.Fatalf("close=%v", got[0].Close)
	}

	bounded, err := s.LoadBars(ctx, "BTC/USDT", "1m", start.Add(time.Minute), start.Add(3*time.Minute), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(bounded) != 2 {
		t.Fatalf("bounded load: %d bars, want 2", len(bounded))
	}
}

func TestLastBarsChronological(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	var bars []market.Bar
	for i := 0; i < 10; i++ {
		bars = append(bars, market.Bar{
			OpenTime: start.Add(time.Duration(i) * time.Minute),
			Open:     1, High: 1, Low: 1, Close: float64(i), Volume: 1,
		})
	}
	if err := s.SaveBars(ctx, "ETH/USDT", "1m", bars); err != nil {
		t.Fatal(err)
	}

	got, err := s.LastBars(ctx, "ETH/USDT", "1m", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Close != 7 || got[2].Close != 9 {
		t.Fatalf("last bars: %+v", got)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("empty path accepted")
	}
}
