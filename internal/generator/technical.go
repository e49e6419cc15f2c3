package generator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/maxrule98/simple-bot/internal/position"
	"github.com/maxrule98/simple-bot/internal/rules"
	"github.com/maxrule98/simple-bot/internal/signal"
)

func init() {
	Register("technical", newTechnical)
}

// Technical evaluates declarative entry and exit rule expressions. With no
// open position it proposes entries; with one open it checks the matching
// exit rule and proposes a rule-based CLOSE.
type Technical struct {
	entryLong  rules.Expr
	entryShort rules.Expr
	exitLong   rules.Expr
	exitShort  rules.Expr
	base       float64
	eval       *rules.Evaluator
}

func newTechnical(p Params, log *zap.Logger) (Generator, error) {
	t := &Technical{
		base: p.BaseConfidence,
		eval: rules.NewEvaluator(log),
	}
	if t.base <= 0 || t.base > 1 {
		t.base = 0.5
	}
	exprs := []struct {
		name string
		src  string
		dst  *rules.Expr
	}{
		{"entry_long", p.EntryLong, &t.entryLong},
		{"entry_short", p.EntryShort, &t.entryShort},
		{"exit_long", p.ExitLong, &t.exitLong},
		{"exit_short", p.ExitShort, &t.exitShort},
	}
	any := false
	for _, e := range exprs {
		if e.src == "" {
			continue
		}
		expr, err := rules.Parse(e.src)
		if err != nil {
			return nil, fmt.Errorf("technical generator: %s: %w", e.name, err)
		}
		*e.dst = expr
		any = true
	}
	if !any {
		return nil, fmt.Errorf("technical generator: no rule expressions configured")
	}
	return t, nil
}

func (t *Technical) Kind() string { return "technical" }

func (t *Technical) Generate(ctx Context) []signal.Signal {
	if ctx.Position != nil {
		return t.exitSignals(ctx)
	}
	var out []signal.Signal
	if t.entryLong != nil && t.eval.Eval(t.entryLong, ctx.Lookup) {
		out = append(out, t.entry(ctx, signal.Buy, t.entryLong))
	}
	if t.entryShort != nil && t.eval.Eval(t.entryShort, ctx.Lookup) {
		out = append(out, t.entry(ctx, signal.Sell, t.entryShort))
	}
	return out
}

func (t *Technical) entry(ctx Context, typ signal.Type, expr rules.Expr) signal.Signal {
	conf := t.base + (1-t.base)*t.eval.Margin(expr, ctx.Lookup)
	if conf > 1 {
		conf = 1
	}
	return signal.Signal{
		Type:       typ,
		Source:     signal.SourceTechnical,
		Confidence: conf,
		Reason:     fmt.Sprintf("rule %s satisfied", expr),
		Time:       ctx.Time,
	}
}

func (t *Technical) exitSignals(ctx Context) []signal.Signal {
	expr := t.exitLong
	if ctx.Position.Side == position.Short {
		expr = t.exitShort
	}
	if expr == nil || !t.eval.Eval(expr, ctx.Lookup) {
		return nil
	}
	return []signal.Signal{{
		Type:       signal.Close,
		Source:     signal.SourceTechnical,
		Confidence: t.base + (1-t.base)*t.eval.Margin(expr, ctx.Lookup),
		Reason:     fmt.Sprintf("exit rule %s satisfied", expr),
		Time:       ctx.Time,
	}}
}
