package events

import (
	"context"
	"testing"
	"time"

	"github.com/maxrule98/simple-bot/internal/market"
)

func TestQueuePreservesOrder(t *testing.T) {
	q := NewQueue(8)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e := BarEvent{
			Instrument: "BTC/USDT",
			Timeframe:  "1m",
			Bar:        market.Bar{OpenTime: start.Add(time.Duration(i) * time.Minute)},
			Final:      true,
		}
		if err := q.Push(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}
	q.Close()

	i := 0
	for e := range q.Events() {
		bar := e.(BarEvent)
		if got := bar.Bar.OpenTime; !got.Equal(start.Add(time.Duration(i) * time.Minute)) {
			t.Fatalf("event %d out of order: %v", i, got)
		}
		i++
	}
	if i != 5 {
		t.Fatalf("drained %d events, want 5", i)
	}
}

func TestPushBlocksUntilCancelled(t *testing.T) {
	q := NewQueue(1)
	if err := q.Push(context.Background(), DepthEvent{}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Push(ctx, DepthEvent{}); err == nil {
		t.Fatal("push into full queue returned before cancellation")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	q.Close()
	if _, open := <-q.Events(); open {
		t.Fatal("channel still open after close")
	}
}
