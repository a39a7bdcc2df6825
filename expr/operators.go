package expr

import (
	"fmt"
	"math"
	"strings"

	"github.com/delaneyj/observatory/internal/reflectx"
	"github.com/delaneyj/observatory/scope"
)

// Binary is Left Op Right. &&, || and ?? short-circuit.
type Binary struct {
	Op          string
	Left, Right Expression
}

func (e *Binary) Evaluate(s *scope.Scope, env Env) (any, error) {
	l, err := e.Left.Evaluate(s, env)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "&&":
		if !Truthy(l) {
			return l, nil
		}
		return e.Right.Evaluate(s, env)
	case "||":
		if Truthy(l) {
			return l, nil
		}
		return e.Right.Evaluate(s, env)
	case "??":
		if l != nil {
			return l, nil
		}
		return e.Right.Evaluate(s, env)
	}
	r, err := e.Right.Evaluate(s, env)
	if err != nil {
		return nil, err
	}
	return binary(e.Op, l, r)
}

func binary(op string, l, r any) (any, error) {
	switch op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	case "+":
		ls, lok := l.(string)
		rs, rok := r.(string)
		if lok || rok {
			if !lok {
				ls = Stringify(l)
			}
			if !rok {
				rs = Stringify(r)
			}
			return ls + rs, nil
		}
	case "<", ">", "<=", ">=":
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return compare(op, strings.Compare(ls, rs)), nil
			}
		}
	}

	lf, lok := number(l)
	rf, rok := number(r)
	if !lok || !rok {
		return nil, fmt.Errorf("expr: %T %s %T", l, op, r)
	}
	switch op {
	case "<", ">", "<=", ">=":
		switch {
		case lf < rf:
			return compare(op, -1), nil
		case lf > rf:
			return compare(op, 1), nil
		}
		return compare(op, 0), nil
	}

	var f float64
	switch op {
	case "+":
		f = lf + rf
	case "-":
		f = lf - rf
	case "*":
		f = lf * rf
	case "/":
		f = lf / rf
	case "%":
		f = math.Mod(lf, rf)
	default:
		return nil, fmt.Errorf("expr: unknown operator %q", op)
	}
	if isInt(l) && isInt(r) && op != "/" {
		return int(f), nil
	}
	return f, nil
}

func compare(op string, c int) bool {
	switch op {
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	default:
		return c >= 0
	}
}

// Unary is Op Expr for !, - and +.
type Unary struct {
	Op   string
	Expr Expression
}

func (e *Unary) Evaluate(s *scope.Scope, env Env) (any, error) {
	v, err := e.Expr.Evaluate(s, env)
	if err != nil {
		return nil, err
	}
	if e.Op == "!" {
		return !Truthy(v), nil
	}
	f, ok := number(v)
	if !ok {
		return nil, fmt.Errorf("expr: %s%T", e.Op, v)
	}
	if e.Op == "-" {
		f = -f
	}
	if isInt(v) {
		return int(f), nil
	}
	return f, nil
}

func equal(l, r any) bool {
	if lf, ok := number(l); ok {
		if rf, ok := number(r); ok {
			return lf == rf
		}
	}
	return reflectx.Same(l, r)
}

func isInt(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
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
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Path builds the access chain for a dotted path such as "todo.completed".
// A leading "$this" or run of "$parent" segments select the scope.
func Path(path string) Assignable {
	segs := strings.Split(path, ".")
	ancestor := 0
	for len(segs) > 1 && segs[0] == "$parent" {
		ancestor++
		segs = segs[1:]
	}
	var e Expression
	switch {
	case segs[0] == "$this" || segs[0] == "$parent":
		if segs[0] == "$parent" {
			ancestor++
		}
		e = &AccessThis{Ancestor: ancestor}
		if len(segs) == 1 {
			return &thisRef{e.(*AccessThis)}
		}
		segs = segs[1:]
		e = &AccessMember{Object: e, Name: segs[0]}
	default:
		e = &AccessScope{Name: segs[0], Ancestor: ancestor}
	}
	for _, seg := range segs[1:] {
		e = &AccessMember{Object: e, Name: seg}
	}
	return e.(Assignable)
}

type thisRef struct {
	*AccessThis
}

func (thisRef) Assign(*scope.Scope, Env, any) error {
	return fmt.Errorf("expr: cannot assign to $this")
}
