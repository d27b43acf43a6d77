package workflow

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

func TestConditionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	e := NewEvaluator(zap.NewNop())

	properties.Property("numeric comparisons agree with Go", prop.ForAll(
		func(a, b float64) bool {
			ctx := NewContext(map[string]any{"a": a, "b": b})

			checks := []struct {
				expr string
				want bool
			}{
				{"${a} > ${b}", a > b},
				{"${a} < ${b}", a < b},
				{"${a} >= ${b}", a >= b},
				{"${a} <= ${b}", a <= b},
				{"${a} == ${b}", a == b},
				{"${a} != ${b}", a != b},
			}
			for _, c := range checks {
				got, err := e.EvaluateStrict(c.expr, ctx)
				if err != nil || got != c.want {
					return false
				}
			}
			return true
		},
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.Property("boolean connectives agree with Go", prop.ForAll(
		func(p, q bool) bool {
			ctx := NewContext(map[string]any{"p": p, "q": q})

			checks := []struct {
				expr string
				want bool
			}{
				{"${p} && ${q}", p && q},
				{"${p} || ${q}", p || q},
				{"${p} and ${q}", p && q},
				{"${p} or ${q}", p || q},
				{"!${p}", !p},
				{"not ${p}", !p},
			}
			for _, c := range checks {
				got, err := e.EvaluateStrict(c.expr, ctx)
				if err != nil || got != c.want {
					return false
				}
			}
			return true
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("negation inverts every comparison", prop.ForAll(
		func(a, b int) bool {
			ctx := NewContext(map[string]any{"a": a, "b": b})

			for _, op := range []string{"==", "!=", ">", "<", ">=", "<="} {
				expr := "${a} " + op + " ${b}"
				plain, err1 := e.EvaluateStrict(expr, ctx)
				negated, err2 := e.EvaluateStrict("not ("+expr+")", ctx)
				if err1 != nil || err2 != nil || plain == negated {
					return false
				}
			}
			return true
		},
		gen.IntRange(-1000, 1000),
		gen.IntRange(-1000, 1000),
	))

	properties.Property("arbitrary input never panics and fails safe", prop.ForAll(
		func(expr string) bool {
			ctx := NewContext(map[string]any{"x": 1})

			ok, err := e.EvaluateStrict(expr, ctx)
			if err != nil {
				// 宽松入口遵循 fail-safe 策略
				return !e.Evaluate(expr, ctx)
			}
			return ok == e.Evaluate(expr, ctx)
		},
		gen.AnyString(),
	))

	properties.Property("string equality is reflexive for quoted literals", prop.ForAll(
		func(s string) bool {
			ctx := NewContext(map[string]any{"s": s})
			got, err := e.EvaluateStrict(`${s} == ${s}`, ctx)
			return err == nil && got
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
