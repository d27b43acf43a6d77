package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func evalContext() *Context {
	ctx := NewContext(map[string]any{
		"count":     3,
		"threshold": 0.8,
		"name":      "alice",
		"active":    true,
		"disabled":  false,
		"flag_str":  "True",
		"zero":      0,
	})
	ctx.SetOutput("analysis", map[string]any{
		"score":    0.9,
		"severity": 8,
		"approved": true,
		"label":    "high",
		"nested":   map[string]any{"depth": 2},
	})
	return ctx
}

func TestEvaluator_Literals(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	ctx := NewContext(nil)

	tests := []struct {
		expr string
		want bool
	}{
		{"true", true},
		{"false", false},
		{"True", true},
		{"False", false},
		{"1 == 1", true},
		{"1 == 2", false},
		{"2 > 1", true},
		{"1 >= 1", true},
		{"-1 < 0", true},
		{"0.5 <= 0.5", true},
		{"3 != 3", false},
		{`"a" == "a"`, true},
		{`"a" == 'a'`, true},
		{`"a" < "b"`, true},
		{"1 == 1 && 2 == 2", true},
		{"1 == 2 || 2 == 2", true},
		{"1 == 1 and 2 == 2", true},
		{"1 == 2 or 2 == 2", true},
		{"not false", true},
		{"!false", true},
		{"not (1 == 1)", false},
		{"(1 == 2 || 2 == 2) && true", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := e.EvaluateStrict(tt.expr, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_Placeholders(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	ctx := evalContext()

	tests := []struct {
		expr string
		want bool
	}{
		{"${count} == 3", true},
		{"${count} > 2", true},
		{"${count} >= 4", false},
		{"${threshold} < 1", true},
		{`${name} == "alice"`, true},
		{`${name} != "bob"`, true},
		{"${active}", true},
		{"${disabled}", false},
		{"${active} == true", true},
		// 字符串形式的布尔值与布尔字面量按规范化后的表示比较
		{"${flag_str} == true", true},
		{"${zero}", false},
		// agent 输出的点号路径
		{"${analysis.score} > 0.8", true},
		{"${analysis.severity} >= ${count}", true},
		{"${analysis.approved} == true", true},
		{`${analysis.label} == "high"`, true},
		{"${analysis.nested.depth} == 2", true},
		// 数字与字符串数值按数值比较
		{"${analysis.severity} > '7'", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := e.EvaluateStrict(tt.expr, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_VariablePrecedenceOverOutputs(t *testing.T) {
	e := NewEvaluator(nil)
	ctx := NewContext(map[string]any{"result": "variable"})
	ctx.SetOutput("result", "output")

	got, err := e.EvaluateStrict(`${result} == "variable"`, ctx)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateStrict_Errors(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	ctx := evalContext()

	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"unterminated placeholder", "${count"},
		{"empty placeholder", "${} == 1"},
		{"bare identifier", "count == 3"},
		{"unknown placeholder", "${missing} == 1"},
		{"missing nested key", "${analysis.absent} == 1"},
		{"descend through scalar", "${count.sub} == 1"},
		{"unterminated string", `"abc == 1`},
		{"dangling operator", "1 =="},
		{"unbalanced paren", "(1 == 1"},
		{"trailing token", "1 == 1 2"},
		{"lone dollar", "$count == 1"},
		{"unexpected char", "1 @ 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.EvaluateStrict(tt.expr, ctx)
			require.Error(t, err)

			// 宽松入口对同样的表达式一律判 false
			assert.False(t, e.Evaluate(tt.expr, ctx))
		})
	}
}

func TestEvaluate_FailSafeFalse(t *testing.T) {
	e := NewEvaluator(nil)
	ctx := NewContext(nil)

	assert.False(t, e.Evaluate("${nope} > 1", ctx))
	assert.False(t, e.Evaluate("garbage expression", ctx))
	assert.True(t, e.Evaluate("1 < 2", ctx))
}

func TestCondCompare_MixedTypes(t *testing.T) {
	tests := []struct {
		name  string
		left  any
		op    string
		right any
		want  bool
	}{
		{"int vs float", 3, "==", 3.0, true},
		{"string number vs int", "10", ">", 9, true},
		{"lexicographic fallback", "abc", "<", "abd", true},
		{"bool vs string true", true, "==", "True", true},
		{"nil equals nil", nil, "==", nil, true},
		{"nil below value", nil, "<", 0, true},
		{"nil not equal value", nil, "!=", "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, condCompare(tt.left, tt.op, tt.right))
		})
	}
}

func TestCondToBool(t *testing.T) {
	assert.True(t, condToBool(true))
	assert.False(t, condToBool(false))
	assert.False(t, condToBool(nil))
	assert.False(t, condToBool(0))
	assert.True(t, condToBool(1))
	assert.False(t, condToBool(0.0))
	assert.False(t, condToBool(""))
	assert.False(t, condToBool("false"))
	assert.False(t, condToBool("0"))
	assert.True(t, condToBool("yes"))
	assert.True(t, condToBool(map[string]any{}))
}
