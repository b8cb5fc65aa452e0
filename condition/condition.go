package condition

import (
	"errors"
	"reflect"

	"github.com/hupe1980/stageflow/core"
)

// ErrSyntax indicates an expression does not follow the restricted grammar.
var ErrSyntax = errors.New("condition syntax error")

// Expr is a parsed gating expression.
type Expr interface {
	// Eval reports whether the expression holds for the given snapshot.
	Eval(snap core.Snapshot) bool
}

// Evaluate parses and evaluates a single expression against the snapshot.
// It returns false on any failure (syntax error, missing stage, unresolved
// path, type mismatch) rather than an error, so gating fails closed.
func Evaluate(expr string, snap core.Snapshot) bool {
	parsed, err := Parse(expr)
	if err != nil {
		return false
	}
	return parsed.Eval(snap)
}

// EvaluateAll reports whether every expression holds. An empty list holds
// vacuously, so an unconditioned stage always runs.
func EvaluateAll(exprs []string, snap core.Snapshot) bool {
	for _, expr := range exprs {
		if !Evaluate(expr, snap) {
			return false
		}
	}
	return true
}

// EvaluateAny reports whether at least one expression holds. An empty list
// does not.
func EvaluateAny(exprs []string, snap core.Snapshot) bool {
	for _, expr := range exprs {
		if Evaluate(expr, snap) {
			return true
		}
	}
	return false
}

// statusEquals is the `<stage>.status == '<literal>'` form.
type statusEquals struct {
	stage string
	want  string
}

func (e statusEquals) Eval(snap core.Snapshot) bool {
	res, ok := snap[e.stage]
	if !ok {
		return false
	}
	return res.Status == e.want
}

// outputCompare is the `<stage>.output.<path> <op> <literal>` form. The
// literal is a float64 or a string; string literals only pair with ==.
type outputCompare struct {
	stage string
	path  []string
	op    tokenType
	lit   any
}

func (e outputCompare) Eval(snap core.Snapshot) bool {
	res, ok := snap[e.stage]
	if !ok {
		return false
	}
	val, ok := resolvePath(res.Output, e.path)
	if !ok {
		return false
	}

	switch lit := e.lit.(type) {
	case string:
		s, ok := val.(string)
		return ok && s == lit
	case float64:
		num, ok := toFloat(val)
		if !ok {
			return false
		}
		return compareFloats(num, lit, e.op)
	default:
		return false
	}
}

// lengthCompare is the `<stage>.output.<path>.length == <n>` form.
type lengthCompare struct {
	stage string
	path  []string
	want  int
}

func (e lengthCompare) Eval(snap core.Snapshot) bool {
	res, ok := snap[e.stage]
	if !ok {
		return false
	}
	val, ok := resolvePath(res.Output, e.path)
	if !ok {
		return false
	}
	n, ok := lengthOf(val)
	return ok && n == e.want
}

// resolvePath walks the dotted path through nested map[string]any values.
func resolvePath(output map[string]any, path []string) (any, bool) {
	var cur any = output
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func compareFloats(a, b float64, op tokenType) bool {
	switch op {
	case tokenEq:
		return a == b
	case tokenGt:
		return a > b
	case tokenGte:
		return a >= b
	case tokenLt:
		return a < b
	case tokenLte:
		return a <= b
	default:
		return false
	}
}

func lengthOf(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	if s, ok := v.(string); ok {
		return len(s), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	default:
		return 0, false
	}
}
