// Package exits implements the per-position exit state machine: stop-loss,
// tiered take-profit ladder, trailing stop, and time-based exit, evaluated in
// that priority order on every decision tick.
package exits

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/maxrule98/simple-bot/internal/position"
	"github.com/maxrule98/simple-bot/internal/signal"
)

// MetaLevel keys the ladder level id in take-profit signal metadata. The
// consumer marks the level on the position after the exit order fills.
const MetaLevel = "level"

// Duration decodes YAML scalars like "4h" or "30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Level is one rung of the take-profit ladder. CloseFraction is expressed
// against the original position quantity, so a fully fired ladder closes at
// most 100% regardless of firing order.
type Level struct {
	TriggerPct    float64 `yaml:"trigger_pct"`
	CloseFraction float64 `yaml:"close_fraction"`
}

// Config is the declarative exit definition of a strategy.
type Config struct {
	StopLossPct     float64 `yaml:"stop_loss_pct"`
	Ladder          []Level `yaml:"take_profit_ladder"`
	TrailingStopPct float64 `yaml:"trailing_stop_pct"`

	MaxHold                Duration `yaml:"max_hold"`
	IgnoreTimeExitInProfit bool     `yaml:"ignore_time_exit_in_profit"`
	TimeExitConfidence     float64  `yaml:"time_exit_confidence"`
}

// Validate enforces the ladder invariants at load time. A ladder summing
// past 100% or with non-ascending triggers is a configuration defect and
// must never reach the runtime.
func (c Config) Validate() error {
	if c.StopLossPct < 0 || c.TrailingStopPct < 0 || c.MaxHold < 0 {
		return fmt.Errorf("exit config: negative threshold")
	}
	if c.TimeExitConfidence < 0 || c.TimeExitConfidence > 1 {
		return fmt.Errorf("exit config: time_exit_confidence %v outside [0,1]", c.TimeExitConfidence)
	}
	sum := 0.0
	prev := 0.0
	for i, lvl := range c.Ladder {
		if lvl.TriggerPct <= prev {
			return fmt.Errorf("exit config: ladder level %d trigger %v%% not ascending", i, lvl.TriggerPct)
		}
		if lvl.CloseFraction <= 0 || lvl.CloseFraction > 1 {
			return fmt.Errorf("exit config: ladder level %d fraction %v outside (0,1]", i, lvl.CloseFraction)
		}
		sum += lvl.CloseFraction
		prev = lvl.TriggerPct
	}
	if sum > 1+1e-9 {
		return fmt.Errorf("exit config: ladder fractions sum to %v, above 1", sum)
	}
	return nil
}

// Manager evaluates exit rules for the open position. It owns the only
// writes to position extremes. Fired-level bookkeeping belongs to the
// caller: a ladder level carries its id in the signal metadata and must be
// marked only once the resulting order fills, so a rejected order leaves
// the level armed for the next tick.
type Manager struct {
	cfg Config
	log *zap.Logger
}

// New validates the config and builds a manager.
func New(cfg Config, log *zap.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TimeExitConfidence == 0 {
		cfg.TimeExitConfidence = 0.4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{cfg: cfg, log: log}, nil
}

// Evaluate runs one exit pass at the given price and bar time. It returns at
// most one signal; stop-loss preempts the ladder, the ladder preempts the
// trailing stop, and the time exit runs last.
func (m *Manager) Evaluate(p *position.Position, price float64, now time.Time) *signal.Signal {
	if p == nil || price <= 0 {
		return nil
	}
	p.ObservePrice(price)
	pnl := p.PnLPct(price)

	if s := m.stopLoss(pnl, now); s != nil {
		return s
	}
	if s := m.takeProfit(p, pnl, now); s != nil {
		return s
	}
	if s := m.trailing(p, price, now); s != nil {
		return s
	}
	return m.timeExit(p, pnl, now)
}

func (m *Manager) stopLoss(pnl float64, now time.Time) *signal.Signal {
	if m.cfg.StopLossPct == 0 || pnl > -m.cfg.StopLossPct {
		return nil
	}
	return &signal.Signal{
		Type:       signal.Close,
		Source:     signal.SourceRisk,
		Confidence: 1.0,
		Reason:     fmt.Sprintf("stop loss: pnl %.2f%% breached -%.2f%%", pnl, m.cfg.StopLossPct),
		Time:       now,
		Metadata:   map[string]string{"exit": "stop_loss"},
	}
}

func (m *Manager) takeProfit(p *position.Position, pnl float64, now time.Time) *signal.Signal {
	for i, lvl := range m.cfg.Ladder {
		id := fmt.Sprintf("tp%d", i+1)
		if p.LevelFired(id) || pnl < lvl.TriggerPct {
			continue
		}
		closeQty := lvl.CloseFraction * p.OriginalQty
		remaining := p.RemainingQty - closeQty

		typ := signal.PartialClose
		frac := lvl.CloseFraction
		if remaining <= 1e-9 {
			typ = signal.Close
			frac = 0
		}
		s := &signal.Signal{
			Type:          typ,
			Source:        signal.SourceRisk,
			Confidence:    0.9,
			Reason:        fmt.Sprintf("take profit %s: pnl %.2f%% reached %.2f%%", id, pnl, lvl.TriggerPct),
			CloseFraction: frac,
			Time:          now,
			Metadata:      map[string]string{"exit": "take_profit", MetaLevel: id},
		}
		return s
	}
	return nil
}

func (m *Manager) trailing(p *position.Position, price float64, now time.Time) *signal.Signal {
	if m.cfg.TrailingStopPct == 0 {
		return nil
	}
	retrace := m.cfg.TrailingStopPct / 100
	var hit bool
	var extreme float64
	if p.Side == position.Long {
		extreme = p.HighestSinceEntry
		hit = price < extreme*(1-retrace)
	} else {
		extreme = p.LowestSinceEntry
		hit = price > extreme*(1+retrace)
	}
	if !hit {
		return nil
	}
	return &signal.Signal{
		Type:       signal.Close,
		Source:     signal.SourceRisk,
		Confidence: 0.9,
		Reason:     fmt.Sprintf("trailing stop: price %.4f retraced %.2f%% from %.4f", price, m.cfg.TrailingStopPct, extreme),
		Time:       now,
		Metadata:   map[string]string{"exit": "trailing_stop"},
	}
}

func (m *Manager) timeExit(p *position.Position, pnl float64, now time.Time) *signal.Signal {
	if m.cfg.MaxHold == 0 || p.HeldFor(now) < time.Duration(m.cfg.MaxHold) {
		return nil
	}
	// A position that already banked a take-profit level is left to the
	// ladder and trailing stop.
	if p.AnyLevelFired() {
		return nil
	}
	if m.cfg.IgnoreTimeExitInProfit && pnl > 0 {
		return nil
	}
	return &signal.Signal{
		Type:       signal.Close,
		Source:     signal.SourceRisk,
		Confidence: m.cfg.TimeExitConfidence,
		Reason:     fmt.Sprintf("max hold exceeded: held %s, pnl %.2f%%", p.HeldFor(now), pnl),
		Time:       now,
		Metadata:   map[string]string{"exit": "time"},
	}
}
