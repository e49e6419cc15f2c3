package rules

import (
	"go.uber.org/zap"
)

// Lookup resolves an identifier at a bar offset (0 = current bar). ok=false
// means the value is null; the enclosing comparison then evaluates to false.
type Lookup func(name string, offset int) (float64, bool)

// Evaluator evaluates parsed expressions. Missing identifiers fail closed:
// the comparison is false, never an error, and the first occurrence of each
// missing identifier is logged so configuration bugs stay visible.
type Evaluator struct {
	log    *zap.Logger
	warned map[string]bool
}

// NewEvaluator builds an evaluator; a nil logger disables warnings.
func NewEvaluator(log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{log: log, warned: make(map[string]bool)}
}

// Eval evaluates an expression against scalar feature values.
func (ev *Evaluator) Eval(e Expr, lookup Lookup) bool {
	return ev.evalNode(e, lookup)
}

// EvalSeries evaluates the same expression element-wise over series of
// length n, for backtesting a full history in one pass. Offsets shift within
// the series; positions before the first available value are null.
func (ev *Evaluator) EvalSeries(e Expr, series func(name string) ([]float64, bool), n int) []bool {
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		idx := i
		lookup := func(name string, offset int) (float64, bool) {
			s, ok := series(name)
			if !ok {
				return 0, false
			}
			j := idx - offset
			if j < 0 || j >= len(s) {
				return 0, false
			}
			return s[j], true
		}
		out[i] = ev.evalNode(e, lookup)
	}
	return out
}

func (ev *Evaluator) evalNode(e Expr, lookup Lookup) bool {
	switch n := e.(type) {
	case *logicNode:
		if n.op == "AND" {
			return ev.evalNode(n.left, lookup) && ev.evalNode(n.right, lookup)
		}
		return ev.evalNode(n.left, lookup) || ev.evalNode(n.right, lookup)
	case *compareNode:
		left, ok := ev.resolve(n.left, lookup)
		if !ok {
			return false
		}
		right, ok := ev.resolve(n.right, lookup)
		if !ok {
			return false
		}
		switch n.op {
		case "<":
			return left < right
		case ">":
			return left > right
		case "<=":
			return left <= right
		case ">=":
			return left >= right
		case "==":
			return left == right
		case "!=":
			return left != right
		}
	}
	return false
}

func (ev *Evaluator) resolve(o operand, lookup Lookup) (float64, bool) {
	if o.literal {
		return o.value, true
	}
	v, ok := lookup(o.name, o.offset)
	if !ok && !ev.warned[o.name] {
		ev.warned[o.name] = true
		ev.log.Warn("condition references missing feature; comparison fails closed",
			zap.String("identifier", o.name))
	}
	return v, ok
}
