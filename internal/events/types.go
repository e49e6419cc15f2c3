package events

import (
	"github.com/maxrule98/simple-bot/internal/market"
)

// Event is one item on a strategy instance's input queue. Concrete types are
// the closed set below; the runtime type-switches on them.
type Event interface {
	event()
}

// BarEvent carries one candle update from a feed. Final marks a closed bar;
// a non-final bar is a forming-candle update for the same open time.
type BarEvent struct {
	Instrument string
	Timeframe  market.Timeframe
	Bar        market.Bar
	Final      bool
}

// DepthEvent carries an order book snapshot.
type DepthEvent struct {
	Instrument string
	Depth      market.DepthSnapshot
}

func (BarEvent) event()   {}
func (DepthEvent) event() {}
