package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/maxrule98/simple-bot/internal/aggregate"
	"github.com/maxrule98/simple-bot/internal/exits"
	"github.com/maxrule98/simple-bot/internal/features"
	"github.com/maxrule98/simple-bot/internal/generator"
	"github.com/maxrule98/simple-bot/internal/market"
)

// StrategyConfig is the declarative strategy document as it appears in YAML.
type StrategyConfig struct {
	Name             string   `yaml:"name"`
	Instrument       string   `yaml:"instrument"`
	PrimaryTimeframe string   `yaml:"primary_timeframe"`
	AuxTimeframes    []string `yaml:"aux_timeframes"`
	Retention        int      `yaml:"retention"`

	Features []FeatureBlock `yaml:"features"`

	Generators []GeneratorConfig `yaml:"generators"`

	Aggregation AggregationConfig `yaml:"aggregation"`

	Exits exits.Config `yaml:"exits"`

	Order OrderConfig `yaml:"order"`
}

// FeatureBlock lists the indicators computed on one timeframe.
type FeatureBlock struct {
	Timeframe  string            `yaml:"timeframe"`
	Indicators []IndicatorConfig `yaml:"indicators"`
}

// IndicatorConfig is one indicator declaration.
type IndicatorConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Period   int    `yaml:"period"`
	Lookback int    `yaml:"lookback"`
	Horizon  int    `yaml:"horizon"`
}

// GeneratorConfig selects and parameterizes one signal generator.
type GeneratorConfig struct {
	Kind string `yaml:"kind"`

	EntryLong      string  `yaml:"entry_long"`
	EntryShort     string  `yaml:"entry_short"`
	ExitLong       string  `yaml:"exit_long"`
	ExitShort      string  `yaml:"exit_short"`
	BaseConfidence float64 `yaml:"base_confidence"`

	PredFeature string  `yaml:"pred_feature"`
	ProbFeature string  `yaml:"prob_feature"`
	MinMovePct  float64 `yaml:"min_move_pct"`

	DepthLevels        int     `yaml:"depth_levels"`
	ImbalanceThreshold float64 `yaml:"imbalance_threshold"`
}

// Params maps the document fields onto generator parameters.
func (g GeneratorConfig) Params() generator.Params {
	return generator.Params{
		EntryLong:          g.EntryLong,
		EntryShort:         g.EntryShort,
		ExitLong:           g.ExitLong,
		ExitShort:          g.ExitShort,
		BaseConfidence:     g.BaseConfidence,
		PredFeature:        g.PredFeature,
		ProbFeature:        g.ProbFeature,
		MinMovePct:         g.MinMovePct,
		DepthLevels:        g.DepthLevels,
		ImbalanceThreshold: g.ImbalanceThreshold,
	}
}

// AggregationConfig selects the signal combination policy.
type AggregationConfig struct {
	Policy    string  `yaml:"policy"`
	Threshold float64 `yaml:"threshold"`
}

// OrderConfig sizes entries.
type OrderConfig struct {
	Quantity float64 `yaml:"quantity"`
}

// LoadStrategy reads and validates a strategy document. Any malformed
// expression, ladder, or indicator spec is an error here, never at runtime.
func LoadStrategy(path string) (*StrategyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy config: %w", err)
	}
	return ParseStrategy(data)
}

// ParseStrategy unmarshals and validates a strategy document.
func ParseStrategy(data []byte) (*StrategyConfig, error) {
	var cfg StrategyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse strategy config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate cross-checks the document. Expression parsing is exercised later
// by generator construction; everything structural is checked here.
func (c *StrategyConfig) Validate() error {
	if c.Instrument == "" {
		return fmt.Errorf("strategy config: instrument is required")
	}
	if _, err := market.ParseTimeframe(c.PrimaryTimeframe); err != nil {
		return fmt.Errorf("strategy config: primary timeframe: %w", err)
	}
	seen := map[string]bool{c.PrimaryTimeframe: true}
	for _, tf := range c.AuxTimeframes {
		if _, err := market.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("strategy config: aux timeframe: %w", err)
		}
		if seen[tf] {
			return fmt.Errorf("strategy config: timeframe %s listed twice", tf)
		}
		seen[tf] = true
	}
	if c.Retention < 0 {
		return fmt.Errorf("strategy config: retention %d is negative", c.Retention)
	}
	if len(c.Features) == 0 {
		return fmt.Errorf("strategy config: no features configured")
	}
	for _, block := range c.Features {
		if !seen[block.Timeframe] {
			return fmt.Errorf("strategy config: feature timeframe %s not among configured timeframes", block.Timeframe)
		}
	}
	if len(c.Generators) == 0 {
		return fmt.Errorf("strategy config: no generators configured")
	}
	if c.Order.Quantity <= 0 {
		return fmt.Errorf("strategy config: order quantity %v must be positive", c.Order.Quantity)
	}
	if err := c.Exits.Validate(); err != nil {
		return err
	}
	return nil
}

// Timeframes returns the primary timeframe followed by the auxiliaries.
func (c *StrategyConfig) Timeframes() []market.Timeframe {
	out := []market.Timeframe{market.Timeframe(c.PrimaryTimeframe)}
	for _, tf := range c.AuxTimeframes {
		out = append(out, market.Timeframe(tf))
	}
	return out
}

// FeatureSpecs converts the document's feature blocks into engine specs.
func (c *StrategyConfig) FeatureSpecs() ([]features.TimeframeSpec, error) {
	var out []features.TimeframeSpec
	for _, block := range c.Features {
		spec := features.TimeframeSpec{Timeframe: market.Timeframe(block.Timeframe)}
		for _, ind := range block.Indicators {
			spec.Indicators = append(spec.Indicators, features.IndicatorSpec{
				Name:     ind.Name,
				Kind:     strings.ToUpper(ind.Kind),
				Period:   ind.Period,
				Lookback: ind.Lookback,
				Horizon:  ind.Horizon,
			})
		}
		out = append(out, spec)
	}
	return out, nil
}

// Aggregator builds the configured aggregation policy.
func (c *StrategyConfig) Aggregator() (*aggregate.Aggregator, error) {
	return aggregate.New(aggregate.Policy(c.Aggregation.Policy), c.Aggregation.Threshold)
}
