// Package signal defines the typed, confidence-scored trading recommendation
// exchanged between generators, the aggregator, the exit manager, and the
// runtime.
package signal

import (
	"fmt"
	"time"
)

// Type enumerates signal actions.
type Type string

const (
	Buy          Type = "BUY"
	Sell         Type = "SELL"
	Close        Type = "CLOSE"
	PartialClose Type = "PARTIAL_CLOSE"
	Hold         Type = "HOLD"
)

// Source enumerates where a signal came from.
type Source string

const (
	SourceTechnical Source = "TECHNICAL"
	SourceModel     Source = "MODEL"
	SourceOrderbook Source = "ORDERBOOK"
	SourceRisk      Source = "RISK"
)

// Signal is a single trading recommendation. Treated as immutable once built;
// everything downstream receives it by value.
type Signal struct {
	Type       Type
	Source     Source
	Confidence float64 // 0..1
	Reason     string
	// CloseFraction is set only for PARTIAL_CLOSE and is expressed against
	// the original position quantity, in (0,1].
	CloseFraction float64
	Metadata      map[string]string
	Time          time.Time // decision time, taken from the driving bar
}

// Validate enforces the structural invariants of a signal.
func (s Signal) Validate() error {
	switch s.Type {
	case Buy, Sell, Close, PartialClose, Hold:
	default:
		return fmt.Errorf("unknown signal type %q", s.Type)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", s.Confidence)
	}
	if s.Type == PartialClose {
		if s.CloseFraction <= 0 || s.CloseFraction > 1 {
			return fmt.Errorf("close fraction %v outside (0,1]", s.CloseFraction)
		}
	} else if s.CloseFraction != 0 {
		return fmt.Errorf("close fraction set on %s signal", s.Type)
	}
	return nil
}

// IsExit reports whether the signal reduces or closes a position.
func (s Signal) IsExit() bool {
	return s.Type == Close || s.Type == PartialClose
}

func (s Signal) String() string {
	if s.Type == PartialClose {
		return fmt.Sprintf("%s %.0f%% conf=%.2f src=%s (%s)",
			s.Type, s.CloseFraction*100, s.Confidence, s.Source, s.Reason)
	}
	return fmt.Sprintf("%s conf=%.2f src=%s (%s)", s.Type, s.Confidence, s.Source, s.Reason)
}
