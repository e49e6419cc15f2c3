package rules

import (
	"testing"
)

func scalarEnv(values map[string]float64) Lookup {
	return func(name string, offset int) (float64, bool) {
		if offset != 0 {
			return 0, false
		}
		v, ok := values[name]
		return v, ok
	}
}

func TestEvalBasicConditions(t *testing.T) {
	ev := NewEvaluator(nil)
	expr := MustParse("A < 30 AND B > 70")

	tests := []struct {
		name string
		env  map[string]float64
		want bool
	}{
		{"both true", map[string]float64{"A": 25, "B": 80}, true},
		{"second false", map[string]float64{"A": 25, "B": 60}, false},
		{"missing fails closed", map[string]float64{"A": 25}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ev.Eval(expr, scalarEnv(tt.env)); got != tt.want {
				t.Fatalf("Eval=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestAndBindsTighterThanOr(t *testing.T) {
	ev := NewEvaluator(nil)
	// Parsed as A > 0 OR (B > 0 AND C > 0).
	expr := MustParse("A > 0 OR B > 0 AND C > 0")
	env := scalarEnv(map[string]float64{"A": 1, "B": -1, "C": -1})
	if !ev.Eval(expr, env) {
		t.Fatal("expected true: left OR branch satisfied")
	}
	env = scalarEnv(map[string]float64{"A": -1, "B": 1, "C": -1})
	if ev.Eval(expr, env) {
		t.Fatal("expected false: AND group not satisfied")
	}
}

func TestParenthesesOverridePrecedence(t *testing.T) {
	ev := NewEvaluator(nil)
	expr := MustParse("(A > 0 OR B > 0) AND C > 0")
	env := scalarEnv(map[string]float64{"A": 1, "B": -1, "C": -1})
	if ev.Eval(expr, env) {
		t.Fatal("expected false: C check applies to grouped OR")
	}
}

func TestIndexedIdentifier(t *testing.T) {
	ev := NewEvaluator(nil)
	history := map[string][]float64{
		"RSI": {40, 35, 28}, // oldest first; [0] = newest
	}
	lookup := func(name string, offset int) (float64, bool) {
		s, ok := history[name]
		if !ok || offset >= len(s) {
			return 0, false
		}
		return s[len(s)-1-offset], true
	}

	// RSI crossed below 30 this bar.
	expr := MustParse("RSI < 30 AND RSI[1] >= 30")
	if !ev.Eval(expr, lookup) {
		t.Fatal("expected crossing condition to hold")
	}
	// Offset past available history is null, so fails closed.
	expr = MustParse("RSI[5] > 0")
	if ev.Eval(expr, lookup) {
		t.Fatal("expected out-of-range offset to fail closed")
	}
}

func TestEvalSeriesMatchesScalar(t *testing.T) {
	ev := NewEvaluator(nil)
	expr := MustParse("FAST > SLOW")
	data := map[string][]float64{
		"FAST": {1, 3, 2, 5},
		"SLOW": {2, 2, 2, 2},
	}
	series := func(name string) ([]float64, bool) {
		s, ok := data[name]
		return s, ok
	}

	got := ev.EvalSeries(expr, series, 4)
	want := []bool{false, true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("series[%d]=%v, want %v", i, got[i], want[i])
		}
	}

	// Element-wise results agree with scalar evaluation per row.
	for i := 0; i < 4; i++ {
		row := scalarEnv(map[string]float64{"FAST": data["FAST"][i], "SLOW": data["SLOW"][i]})
		if ev.Eval(expr, row) != got[i] {
			t.Fatalf("scalar/series divergence at %d", i)
		}
	}
}

func TestEvalSeriesWithOffset(t *testing.T) {
	ev := NewEvaluator(nil)
	expr := MustParse("X > X[1]")
	series := func(name string) ([]float64, bool) {
		return []float64{1, 2, 2, 3}, true
	}
	got := ev.EvalSeries(expr, series, 4)
	// First element has no predecessor: fails closed.
	want := []bool{false, true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("series[%d]=%v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"RSI <",
		"RSI !> 30",
		"(RSI < 30",
		"RSI < 30 AND",
		"RSI[x] > 0",
		"RSI[-1] > 0",
		"RSI ~ 30",
	}
	for _, input := range bad {
		if _, err := Parse(input); err == nil {
			t.Fatalf("Parse(%q) accepted invalid expression", input)
		}
	}
}

func TestParseRoundTripIdentifiers(t *testing.T) {
	expr := MustParse("RSI_1m < 30 AND SMA_1h > SMA_4h OR PRED > PRICE")
	ids := Identifiers(expr)
	want := map[string]bool{"RSI_1m": true, "SMA_1h": true, "SMA_4h": true, "PRED": true, "PRICE": true}
	if len(ids) != len(want) {
		t.Fatalf("Identifiers=%v", ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Fatalf("unexpected identifier %s", id)
		}
	}
}

func TestNumericLiterals(t *testing.T) {
	ev := NewEvaluator(nil)
	expr := MustParse("PNL_PCT < -1.5")
	if !ev.Eval(expr, scalarEnv(map[string]float64{"PNL_PCT": -2})) {
		t.Fatal("negative literal comparison failed")
	}
	if ev.Eval(expr, scalarEnv(map[string]float64{"PNL_PCT": 0})) {
		t.Fatal("comparison true when it should not be")
	}
}
