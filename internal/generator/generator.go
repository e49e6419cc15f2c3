// Package generator hosts the pluggable signal sources: rule-based technical
// analysis, model predictions, and order-book imbalance. Generators read the
// tick context and emit zero or more signals; they never mutate shared state.
package generator

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/maxrule98/simple-bot/internal/features"
	"github.com/maxrule98/simple-bot/internal/market"
	"github.com/maxrule98/simple-bot/internal/position"
	"github.com/maxrule98/simple-bot/internal/rules"
	"github.com/maxrule98/simple-bot/internal/signal"
)

// Context is the read-only view of one decision tick.
type Context struct {
	Instrument string
	Time       time.Time
	Price      float64
	Features   features.FeatureSet
	// Lookup resolves feature names with bar offsets against recorded
	// feature history, so rule expressions can reference values N bars ago.
	Lookup   rules.Lookup
	Window   []market.Bar
	Depth    *market.DepthSnapshot
	Position *position.Position
}

// Generator produces signals for one tick.
type Generator interface {
	Kind() string
	Generate(ctx Context) []signal.Signal
}

// Params carries the per-generator configuration. Kinds read only the fields
// they document; unknown fields are ignored.
type Params struct {
	// technical
	EntryLong      string
	EntryShort     string
	ExitLong       string
	ExitShort      string
	BaseConfidence float64

	// model
	PredFeature string
	ProbFeature string
	MinMovePct  float64

	// orderbook
	DepthLevels        int
	ImbalanceThreshold float64
}

// Factory builds a generator from its declarative parameters.
type Factory func(p Params, log *zap.Logger) (Generator, error)

var factories = map[string]Factory{}

// Register adds a generator kind to the registry. Called from init; a
// duplicate kind is a programming error.
func Register(kind string, f Factory) {
	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("generator: kind %q registered twice", kind))
	}
	factories[kind] = f
}

// New resolves a kind name at config-load time.
func New(kind string, p Params, log *zap.Logger) (Generator, error) {
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("generator: unknown kind %q (have %v)", kind, Kinds())
	}
	if log == nil {
		log = zap.NewNop()
	}
	return f(p, log)
}

// Kinds lists the registered generator kinds, sorted.
func Kinds() []string {
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
