// Package rules compiles stored fraud-rule conditions into a typed tree and
// evaluates transactions against it.
package rules

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

type Operator int

const (
	OpUnknown Operator = iota
	OpEq
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpIn
	OpNotIn
	OpContains
)

var operatorNames = map[string]Operator{
	"==":       OpEq,
	"!=":       OpNe,
	">":        OpGt,
	">=":       OpGe,
	"<":        OpLt,
	"<=":       OpLe,
	"in":       OpIn,
	"not_in":   OpNotIn,
	"contains": OpContains,
}

func ParseOperator(s string) Operator {
	if op, ok := operatorNames[s]; ok {
		return op
	}
	return OpUnknown
}

func (o Operator) String() string {
	for name, op := range operatorNames {
		if op == o {
			return name
		}
	}
	return "unknown"
}

// Condition is a node of a compiled rule condition.
type Condition interface {
	Match(attrs map[string]any) bool
}

// Predicate compares a single transaction attribute with a constant.
type Predicate struct {
	Field string
	Op    Operator
	Value any
}

// All matches when every child matches (logical AND).
type All []Condition

// Any matches when at least one child matches (logical OR).
type Any []Condition

// Never never matches. Unparseable conditions compile to it.
type Never struct {
	Reason string
}

func (Never) Match(map[string]any) bool { return false }

func (a All) Match(attrs map[string]any) bool {
	for _, c := range a {
		if !c.Match(attrs) {
			return false
		}
	}
	return true
}

func (a Any) Match(attrs map[string]any) bool {
	for _, c := range a {
		if c.Match(attrs) {
			return true
		}
	}
	return false
}

func (p Predicate) Match(attrs map[string]any) bool {
	actual, ok := attrs[p.Field]
	if !ok {
		return false
	}

	// числовое значение правила против строкового атрибута
	if _, isNum := toFloat(p.Value); isNum {
		if s, isStr := actual.(string); isStr {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return false
			}
			actual = f
		}
	}

	switch p.Op {
	case OpEq:
		return equal(actual, p.Value)
	case OpNe:
		return !equal(actual, p.Value)
	case OpGt:
		c, ok := compare(actual, p.Value)
		return ok && c > 0
	case OpGe:
		c, ok := compare(actual, p.Value)
		return ok && c >= 0
	case OpLt:
		c, ok := compare(actual, p.Value)
		return ok && c < 0
	case OpLe:
		c, ok := compare(actual, p.Value)
		return ok && c <= 0
	case OpIn:
		list, ok := p.Value.([]any)
		return ok && member(actual, list)
	case OpNotIn:
		list, ok := p.Value.([]any)
		return ok && !member(actual, list)
	case OpContains:
		return contains(actual, p.Value)
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// equal: numbers compare by value, everything else must match in type and value.
func equal(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	if _, ok := toFloat(b); ok {
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// compare orders two numbers or two strings; anything else is incomparable.
func compare(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok || math.IsNaN(af) || math.IsNaN(bf) {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, ok := a.(string)
	if !ok {
		return 0, false
	}
	bs, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(as, bs), true
}

func member(v any, list []any) bool {
	for _, item := range list {
		if equal(v, item) {
			return true
		}
	}
	return false
}

func contains(container, needle any) bool {
	switch c := container.(type) {
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(c, s)
	case []any:
		return member(needle, c)
	default:
		return false
	}
}
