package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/BaSui01/flowgraph/types"
)

// Evaluator evaluates branch and loop conditions against a run Context.
//
// An expression contains ${variableName} or ${key.subkey} placeholders and a
// restricted boolean grammar: comparisons (==, !=, >, <, >=, <=), boolean
// and numeric and quoted string literals, parentheses, and logical operators
// in both symbol (&&, ||, !) and word (and, or, not) form. There is no
// attribute access beyond the dotted placeholder syntax, no function calls,
// and no arbitrary code execution.
//
// Evaluate is fail-safe: any tokenize, parse, or resolution failure yields
// false so that a malformed branch condition routes to the else path instead
// of aborting the run. Use EvaluateStrict when the error matters.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator creates a condition evaluator. logger may be nil.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{logger: logger.With(zap.String("component", "condition_evaluator"))}
}

// Evaluate evaluates expr against ctx, treating every failure as false.
func (e *Evaluator) Evaluate(expr string, ctx *Context) bool {
	ok, err := e.EvaluateStrict(expr, ctx)
	if err != nil {
		e.logger.Debug("condition evaluation failed, defaulting to false",
			zap.String("expression", expr),
			zap.Error(err),
		)
		return false
	}
	return ok
}

// EvaluateStrict evaluates expr against ctx and surfaces the error.
// Callers that want the engine's fail-safe policy should use Evaluate.
func (e *Evaluator) EvaluateStrict(expr string, ctx *Context) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, types.NewError(types.ErrCondition, "empty expression")
	}

	tokens, err := tokenizeCondition(expr)
	if err != nil {
		return false, types.NewError(types.ErrCondition, "tokenize failed").WithCause(err)
	}

	p := &condParser{tokens: tokens, ctx: ctx}
	val, err := p.parseOr()
	if err != nil {
		return false, types.NewError(types.ErrCondition, "parse failed").WithCause(err)
	}
	if p.pos < len(p.tokens) {
		return false, types.NewErrorf(types.ErrCondition, "unexpected trailing token %q", p.tokens[p.pos].value)
	}
	return condToBool(val), nil
}

// --- Token types ---

type condTokenKind int

const (
	ctNumber      condTokenKind = iota // 42, 0.8, -3.14
	ctString                          // "hello" or 'hello'
	ctIdent                           // true, false, and, or, not
	ctPlaceholder                     // ${key} or ${key.subkey}
	ctOp                              // ==, !=, >, <, >=, <=, &&, ||, !
	ctLParen                          // (
	ctRParen                          // )
)

type condToken struct {
	kind  condTokenKind
	value string
}

// --- Tokenizer ---

func tokenizeCondition(expr string) ([]condToken, error) {
	var tokens []condToken
	runes := []rune(expr)
	i := 0

	for i < len(runes) {
		ch := runes[i]

		if unicode.IsSpace(ch) {
			i++
			continue
		}

		if ch == '(' {
			tokens = append(tokens, condToken{ctLParen, "("})
			i++
			continue
		}
		if ch == ')' {
			tokens = append(tokens, condToken{ctRParen, ")"})
			i++
			continue
		}

		// Placeholder: ${path}
		if ch == '$' {
			if i+1 >= len(runes) || runes[i+1] != '{' {
				return nil, fmt.Errorf("expected '{' after '$' at position %d", i)
			}
			end := -1
			for j := i + 2; j < len(runes); j++ {
				if runes[j] == '}' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, fmt.Errorf("unterminated placeholder at position %d", i)
			}
			path := strings.TrimSpace(string(runes[i+2 : end]))
			if path == "" {
				return nil, fmt.Errorf("empty placeholder at position %d", i)
			}
			tokens = append(tokens, condToken{ctPlaceholder, path})
			i = end + 1
			continue
		}

		// String literal, single or double quoted
		if ch == '"' || ch == '\'' {
			s, n, err := readCondString(runes, i, ch)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, condToken{ctString, s})
			i = n
			continue
		}

		// Two-character operators
		if i+1 < len(runes) {
			two := string(runes[i : i+2])
			switch two {
			case "==", "!=", ">=", "<=", "&&", "||":
				tokens = append(tokens, condToken{ctOp, two})
				i += 2
				continue
			}
		}

		// Single-character operators
		if ch == '>' || ch == '<' || ch == '!' {
			tokens = append(tokens, condToken{ctOp, string(ch)})
			i++
			continue
		}

		// Number, including a leading minus at expression or operator boundary
		if isCondDigit(ch) || (ch == '-' && i+1 < len(runes) && isCondDigit(runes[i+1]) && condNumberMayStart(tokens)) {
			num, n := readCondNumber(runes, i)
			tokens = append(tokens, condToken{ctNumber, num})
			i = n
			continue
		}

		// Identifier: booleans and word operators only
		if unicode.IsLetter(ch) || ch == '_' {
			ident, n := readCondIdent(runes, i)
			tokens = append(tokens, condToken{ctIdent, ident})
			i = n
			continue
		}

		return nil, fmt.Errorf("unexpected character %q at position %d", string(ch), i)
	}

	return tokens, nil
}

func readCondString(runes []rune, start int, quote rune) (string, int, error) {
	i := start + 1
	var sb strings.Builder
	for i < len(runes) {
		if runes[i] == '\\' && i+1 < len(runes) {
			sb.WriteRune(runes[i+1])
			i += 2
			continue
		}
		if runes[i] == quote {
			return sb.String(), i + 1, nil
		}
		sb.WriteRune(runes[i])
		i++
	}
	return "", 0, fmt.Errorf("unterminated string starting at position %d", start)
}

func readCondNumber(runes []rune, start int) (string, int) {
	i := start
	if i < len(runes) && runes[i] == '-' {
		i++
	}
	for i < len(runes) && isCondDigit(runes[i]) {
		i++
	}
	if i < len(runes) && runes[i] == '.' {
		i++
		for i < len(runes) && isCondDigit(runes[i]) {
			i++
		}
	}
	return string(runes[start:i]), i
}

func readCondIdent(runes []rune, start int) (string, int) {
	i := start
	for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
		i++
	}
	return string(runes[start:i]), i
}

func isCondDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

// condNumberMayStart reports whether a '-' starts a negative number rather
// than trailing a value, which is the case at expression start, after an
// operator, or after an opening parenthesis.
func condNumberMayStart(preceding []condToken) bool {
	if len(preceding) == 0 {
		return true
	}
	last := preceding[len(preceding)-1]
	return last.kind == ctOp || last.kind == ctLParen
}

// --- Recursive descent parser ---

type condParser struct {
	tokens []condToken
	pos    int
	ctx    *Context
}

func (p *condParser) peek() *condToken {
	if p.pos < len(p.tokens) {
		return &p.tokens[p.pos]
	}
	return nil
}

func (p *condParser) advance() condToken {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

// matchOp reports whether the next token is the given symbol or word operator.
func (p *condParser) matchOp(symbol, word string) bool {
	t := p.peek()
	if t == nil {
		return false
	}
	if t.kind == ctOp && t.value == symbol {
		return true
	}
	return t.kind == ctIdent && strings.EqualFold(t.value, word)
}

// parseOr handles: expr (|| | or) expr
func (p *condParser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.matchOp("||", "or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = condToBool(left) || condToBool(right)
	}
	return left, nil
}

// parseAnd handles: expr (&& | and) expr
func (p *condParser) parseAnd() (any, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.matchOp("&&", "and") {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = condToBool(left) && condToBool(right)
	}
	return left, nil
}

// parseComparison handles: expr (==|!=|>|<|>=|<=) expr
func (p *condParser) parseComparison() (any, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t != nil && t.kind == ctOp {
		switch t.value {
		case "==", "!=", ">", "<", ">=", "<=":
			op := p.advance().value
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return condCompare(left, op, right), nil
		}
	}
	return left, nil
}

// parseUnary handles: (! | not) expr, primary
func (p *condParser) parseUnary() (any, error) {
	if p.matchOp("!", "not") {
		p.advance()
		val, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return !condToBool(val), nil
	}
	return p.parsePrimary()
}

// parsePrimary handles: literals, placeholders, parenthesized expressions
func (p *condParser) parsePrimary() (any, error) {
	t := p.peek()
	if t == nil {
		return nil, fmt.Errorf("unexpected end of expression")
	}

	switch t.kind {
	case ctNumber:
		p.advance()
		return strconv.ParseFloat(t.value, 64)

	case ctString:
		p.advance()
		return t.value, nil

	case ctIdent:
		p.advance()
		// Accept Python-style capitalisation so definitions written for the
		// original engine keep evaluating the same way.
		switch strings.ToLower(t.value) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("unknown identifier %q, variables must use ${name} syntax", t.value)

	case ctPlaceholder:
		p.advance()
		val, ok := resolvePlaceholder(t.value, p.ctx)
		if !ok {
			return nil, fmt.Errorf("placeholder ${%s} not found in context", t.value)
		}
		return val, nil

	case ctLParen:
		p.advance()
		val, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() == nil || p.peek().kind != ctRParen {
			return nil, fmt.Errorf("expected closing parenthesis")
		}
		p.advance()
		return val, nil

	default:
		return nil, fmt.Errorf("unexpected token %q", t.value)
	}
}

// --- Evaluation helpers ---

// resolvePlaceholder resolves a dotted placeholder path against the context.
// The full path is tried as a literal key first, then the first segment is
// looked up and the remainder descends through nested map[string]any values.
func resolvePlaceholder(path string, ctx *Context) (any, bool) {
	if ctx == nil {
		return nil, false
	}
	if v, ok := ctx.Lookup(path); ok {
		return v, true
	}

	parts := strings.Split(path, ".")
	current, ok := ctx.Lookup(parts[0])
	if !ok {
		return nil, false
	}
	for _, part := range parts[1:] {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// condCompare evaluates a comparison between two values. Numbers compare
// numerically when both sides convert; everything else falls back to the
// string representation, which matches the substitution semantics of the
// placeholder syntax.
func condCompare(left any, op string, right any) bool {
	if left == nil && right == nil {
		return op == "==" || op == ">=" || op == "<="
	}
	if left == nil || right == nil {
		switch op {
		case "!=":
			return true
		case "==":
			return false
		}
		// nil orders below any value
		if left == nil {
			return op == "<" || op == "<="
		}
		return op == ">" || op == ">="
	}

	lf, lok := condToFloat(left)
	rf, rok := condToFloat(right)
	if lok && rok {
		switch op {
		case "==":
			return lf == rf
		case "!=":
			return lf != rf
		case ">":
			return lf > rf
		case "<":
			return lf < rf
		case ">=":
			return lf >= rf
		case "<=":
			return lf <= rf
		}
	}

	ls := condString(left)
	rs := condString(right)
	switch op {
	case "==":
		return ls == rs
	case "!=":
		return ls != rs
	case ">":
		return ls > rs
	case "<":
		return ls < rs
	case ">=":
		return ls >= rs
	case "<=":
		return ls <= rs
	}
	return false
}

// condString renders a value the way placeholder substitution would.
// Booleans normalise to lowercase so ${flag} == true holds regardless of
// whether the flag arrived as a bool or the string "True".
func condString(v any) string {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val)
	case string:
		if strings.EqualFold(val, "true") {
			return "true"
		}
		if strings.EqualFold(val, "false") {
			return "false"
		}
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

func condToBool(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		return val != "" && !strings.EqualFold(val, "false") && val != "0"
	default:
		return true
	}
}

func condToFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}
