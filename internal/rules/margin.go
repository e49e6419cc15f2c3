package rules

import "math"

// Margin reports how strongly a satisfied expression holds, in [0,1].
// Comparisons contribute their relative excess over the compared value,
// AND takes the weakest branch, OR the strongest. An unsatisfied or
// unresolvable expression has margin 0. Monotonic: moving further past a
// threshold never lowers the margin.
func (ev *Evaluator) Margin(e Expr, lookup Lookup) float64 {
	switch n := e.(type) {
	case *logicNode:
		l := ev.Margin(n.left, lookup)
		r := ev.Margin(n.right, lookup)
		if n.op == "AND" {
			return math.Min(l, r)
		}
		return math.Max(l, r)
	case *compareNode:
		if !ev.evalNode(n, lookup) {
			return 0
		}
		left, ok := ev.resolve(n.left, lookup)
		if !ok {
			return 0
		}
		right, ok := ev.resolve(n.right, lookup)
		if !ok {
			return 0
		}
		denom := math.Max(math.Max(math.Abs(left), math.Abs(right)), 1)
		excess := math.Abs(left-right) / denom
		if excess > 1 {
			excess = 1
		}
		return excess
	}
	return 0
}
