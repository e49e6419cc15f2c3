// Package position tracks the single open position of a strategy instance.
package position

import (
	"fmt"
	"time"
)

// Side of a position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Position is mutable state owned by the runtime goroutine. It is created
// from an entry fill confirmation, reduced only by exit fill confirmations,
// and destroyed when the remaining quantity reaches zero.
type Position struct {
	ID         string
	Instrument string
	Side       Side
	EntryPrice float64
	EntryTime  time.Time

	OriginalQty  float64
	RemainingQty float64

	// Price extremes since entry, used by the trailing stop. Monotonic:
	// the high never decreases, the low never increases.
	HighestSinceEntry float64
	LowestSinceEntry  float64

	// Exit-ladder levels that already fired, keyed by level identifier.
	LevelsTriggered map[string]bool
}

// New opens a position at the confirmed fill price.
func New(id, instrument string, side Side, entryPrice, qty float64, entryTime time.Time) (*Position, error) {
	if entryPrice <= 0 || qty <= 0 {
		return nil, fmt.Errorf("open position: price=%v qty=%v must be positive", entryPrice, qty)
	}
	if side != Long && side != Short {
		return nil, fmt.Errorf("open position: unknown side %q", side)
	}
	return &Position{
		ID:                id,
		Instrument:        instrument,
		Side:              side,
		EntryPrice:        entryPrice,
		EntryTime:         entryTime,
		OriginalQty:       qty,
		RemainingQty:      qty,
		HighestSinceEntry: entryPrice,
		LowestSinceEntry:  entryPrice,
		LevelsTriggered:   make(map[string]bool),
	}, nil
}

// ObservePrice widens the tracked extremes. It never narrows them.
func (p *Position) ObservePrice(price float64) {
	if price > p.HighestSinceEntry {
		p.HighestSinceEntry = price
	}
	if price < p.LowestSinceEntry {
		p.LowestSinceEntry = price
	}
}

// PnLPct is the unrealized return in percent relative to entry, positive when
// the position is in profit, for either side.
func (p *Position) PnLPct(price float64) float64 {
	if p.Side == Short {
		return (p.EntryPrice/price - 1) * 100
	}
	return (price/p.EntryPrice - 1) * 100
}

// MarkLevel records that an exit-ladder level fired.
func (p *Position) MarkLevel(level string) { p.LevelsTriggered[level] = true }

// LevelFired reports whether a ladder level already fired.
func (p *Position) LevelFired(level string) bool { return p.LevelsTriggered[level] }

// AnyLevelFired reports whether any take-profit level fired since entry.
func (p *Position) AnyLevelFired() bool { return len(p.LevelsTriggered) > 0 }

// ApplyFill reduces the remaining quantity by a confirmed exit fill and
// reports whether the position is now fully closed. Overfills clamp to zero.
func (p *Position) ApplyFill(qty float64) bool {
	p.RemainingQty -= qty
	if p.RemainingQty < 1e-12 {
		p.RemainingQty = 0
	}
	return p.RemainingQty == 0
}

// HeldFor is the holding duration as of the given bar time.
func (p *Position) HeldFor(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}
