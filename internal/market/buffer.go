package market

import (
	"errors"
	"fmt"
)

// ErrOutOfOrder marks a bar older than (or duplicating) already-closed
// history. Callers log and discard; the bar is never applied.
var ErrOutOfOrder = errors.New("bar open_time not after last closed bar")

// Buffer is a bounded, time-ordered candle sequence for one
// (instrument, timeframe) pair. It is owned by a single runtime goroutine
// and is not safe for concurrent mutation.
type Buffer struct {
	instrument string
	timeframe  Timeframe
	retain     int
	bars       []Bar
}

// NewBuffer creates a buffer retaining at most retain bars.
func NewBuffer(instrument string, tf Timeframe, retain int) *Buffer {
	if retain <= 0 {
		retain = 500
	}
	return &Buffer{
		instrument: instrument,
		timeframe:  tf,
		retain:     retain,
		bars:       make([]Bar, 0, retain),
	}
}

func (b *Buffer) Instrument() string   { return b.instrument }
func (b *Buffer) Timeframe() Timeframe { return b.timeframe }
func (b *Buffer) Len() int             { return len(b.bars) }

// AppendOrUpdate applies a bar. A bar whose OpenTime equals the newest stored
// bar replaces it in place (forming-candle update); a strictly newer OpenTime
// appends and may evict the oldest bar. Anything else is rejected with
// ErrOutOfOrder. It reports whether a new bar was appended.
func (b *Buffer) AppendOrUpdate(bar Bar) (bool, error) {
	n := len(b.bars)
	if n > 0 {
		last := b.bars[n-1].OpenTime
		if bar.OpenTime.Equal(last) {
			b.bars[n-1] = bar
			return false, nil
		}
		if !bar.OpenTime.After(last) {
			return false, fmt.Errorf("%w: got %s, last %s",
				ErrOutOfOrder, bar.OpenTime.UTC().Format("2006-01-02T15:04:05Z"), last.UTC().Format("2006-01-02T15:04:05Z"))
		}
	}
	b.bars = append(b.bars, bar)
	if len(b.bars) > b.retain {
		// Shift rather than reslice so the backing array does not pin
		// evicted history forever.
		copy(b.bars, b.bars[1:])
		b.bars = b.bars[:b.retain]
	}
	return true, nil
}

// Window returns a copy of the last n bars, oldest first. n larger than the
// buffer returns everything.
func (b *Buffer) Window(n int) []Bar {
	if n <= 0 || len(b.bars) == 0 {
		return nil
	}
	if n > len(b.bars) {
		n = len(b.bars)
	}
	out := make([]Bar, n)
	copy(out, b.bars[len(b.bars)-n:])
	return out
}

// Last returns the newest bar and whether one exists.
func (b *Buffer) Last() (Bar, bool) {
	if len(b.bars) == 0 {
		return Bar{}, false
	}
	return b.bars[len(b.bars)-1], true
}

// Closes returns the close prices of the last n bars, oldest first.
func (b *Buffer) Closes(n int) []float64 {
	w := b.Window(n)
	out := make([]float64, len(w))
	for i, bar := range w {
		out[i] = bar.Close
	}
	return out
}
