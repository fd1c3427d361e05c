package prompt

import (
	"context"
	"strconv"
	"strings"
	"time"

	"hermes/internal/domain/record"
	"hermes/pkg/errors"
)

// refVal wraps a related record together with the number of relation hops
// taken to reach it, so traversal depth can be bounded at evaluation time.
type refVal struct {
	ref  record.Ref
	hops int
}

type refListVal struct {
	refs []record.Ref
	hops int
}

type evaluator struct {
	ctx      context.Context
	resolver record.Resolver
	vars     map[string]interface{}
	maxHops  int
}

func (e *evaluator) eval(n node) (interface{}, error) {
	switch n := n.(type) {
	case *litNode:
		return n.val, nil

	case *varNode:
		v, ok := e.vars[n.name]
		if !ok {
			return nil, errors.Wrapf(errors.ErrTemplate, "undeclared variable %q", n.name)
		}
		if ref, isRef := v.(record.Ref); isRef {
			return refVal{ref: ref}, nil
		}
		return v, nil

	case *attrNode:
		return e.evalAttr(n)

	case *filterNode:
		return e.evalFilter(n)

	case *unaryNode:
		return e.evalUnary(n)

	case *binaryNode:
		return e.evalBinary(n)

	case *condNode:
		cond, err := e.eval(n.cond)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return e.eval(n.then)
		}
		return e.eval(n.alt)
	}

	return nil, errors.Wrap(errors.ErrInternal, "unknown expression node")
}

func (e *evaluator) evalAttr(n *attrNode) (interface{}, error) {
	recv, err := e.eval(n.recv)
	if err != nil {
		return nil, err
	}

	switch r := recv.(type) {
	case refVal:
		return e.resolveOn(r.ref, n.name, r.hops)

	case refListVal:
		// Attribute access on a one-to-many result maps over its records.
		var out []interface{}
		for _, ref := range r.refs {
			v, err := e.resolveOn(ref, n.name, r.hops)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case nil:
		// Attribute on an unset optional relation stays empty.
		return nil, nil

	default:
		return nil, errors.Wrapf(errors.ErrTemplate, "attribute %q accessed on a non-record value", n.name)
	}
}

func (e *evaluator) resolveOn(ref record.Ref, name string, hops int) (interface{}, error) {
	val, err := e.resolver.ResolveAttribute(e.ctx, ref, name)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Wrapf(errors.ErrTemplate, "attribute %q does not exist on %s", name, ref.Model)
		}
		return nil, errors.Wrapf(errors.ErrEvaluation, "resolve %q on %s: %v", name, ref.Model, err)
	}

	if val.IsRelation() {
		if hops+1 > e.maxHops {
			return nil, errors.Wrapf(errors.ErrTemplate, "relation traversal exceeds %d hops at %q", e.maxHops, name)
		}
		if val.Record != nil {
			return refVal{ref: *val.Record, hops: hops + 1}, nil
		}
		return refListVal{refs: val.Records, hops: hops + 1}, nil
	}

	if val.IsEmpty() {
		return nil, nil
	}

	return normalizeScalar(val.Scalar), nil
}

func (e *evaluator) evalUnary(n *unaryNode) (interface{}, error) {
	arg, err := e.eval(n.arg)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "not":
		return !truthy(arg), nil
	case "-":
		f, ok := asNumber(arg)
		if !ok {
			return nil, errors.Wrap(errors.ErrEvaluation, "unary minus on non-number")
		}
		return -f, nil
	}

	return nil, errors.Wrapf(errors.ErrInternal, "unknown unary operator %q", n.op)
}

func (e *evaluator) evalBinary(n *binaryNode) (interface{}, error) {
	// Boolean operators short-circuit.
	if n.op == "and" || n.op == "or" {
		left, err := e.eval(n.left)
		if err != nil {
			return nil, err
		}
		if n.op == "and" && !truthy(left) {
			return left, nil
		}
		if n.op == "or" && truthy(left) {
			return left, nil
		}
		return e.eval(n.right)
	}

	left, err := e.eval(n.left)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(n.right)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "~":
		ls, err := e.stringify(left)
		if err != nil {
			return nil, err
		}
		rs, err := e.stringify(right)
		if err != nil {
			return nil, err
		}
		return ls + rs, nil

	case "+":
		if ls, ok := left.(string); ok {
			rs, rok := right.(string)
			if !rok {
				return nil, errors.Wrap(errors.ErrEvaluation, "cannot add string and non-string")
			}
			return ls + rs, nil
		}
		return e.arith(n.op, left, right)

	case "-", "*", "/":
		return e.arith(n.op, left, right)

	case "==", "!=":
		eq, err := valuesEqual(left, right)
		if err != nil {
			return nil, err
		}
		if n.op == "!=" {
			return !eq, nil
		}
		return eq, nil

	case "<", "<=", ">", ">=":
		return compare(n.op, left, right)
	}

	return nil, errors.Wrapf(errors.ErrInternal, "unknown binary operator %q", n.op)
}

func (e *evaluator) arith(op string, left, right interface{}) (interface{}, error) {
	l, lok := asNumber(left)
	r, rok := asNumber(right)
	if !lok || !rok {
		return nil, errors.Wrapf(errors.ErrEvaluation, "operator %q requires numbers", op)
	}

	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, errors.Wrap(errors.ErrEvaluation, "division by zero")
		}
		return l / r, nil
	}

	return nil, errors.Wrapf(errors.ErrInternal, "unknown arithmetic operator %q", op)
}

// stringify converts an evaluated value to its template output form.
// Related records render as their display_name attribute; lists join with ", ".
func (e *evaluator) stringify(v interface{}) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case time.Time:
		return v.Format("2006-01-02 15:04:05"), nil
	case refVal:
		name, err := e.resolveOn(v.ref, "display_name", v.hops)
		if err != nil {
			return "", err
		}
		return e.stringify(name)
	case refListVal:
		parts := make([]string, 0, len(v.refs))
		for _, ref := range v.refs {
			s, err := e.stringify(refVal{ref: ref, hops: v.hops})
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", "), nil
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, err := e.stringify(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", "), nil
	}

	return "", errors.Wrapf(errors.ErrEvaluation, "value of type %T cannot be rendered", v)
}

// normalizeScalar maps resolver scalars onto the evaluator's value set.
func normalizeScalar(v interface{}) interface{} {
	switch v := v.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}

func truthy(v interface{}) bool {
	switch v := v.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	case time.Time:
		return !v.IsZero()
	case refVal:
		return !v.ref.IsZero()
	case refListVal:
		return len(v.refs) > 0
	case []interface{}:
		return len(v) > 0
	}
	return true
}

func asNumber(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func valuesEqual(left, right interface{}) (bool, error) {
	if left == nil || right == nil {
		return left == nil && right == nil, nil
	}
	switch l := left.(type) {
	case string:
		r, ok := right.(string)
		return ok && l == r, nil
	case float64:
		r, ok := right.(float64)
		return ok && l == r, nil
	case bool:
		r, ok := right.(bool)
		return ok && l == r, nil
	case time.Time:
		r, ok := right.(time.Time)
		return ok && l.Equal(r), nil
	case refVal:
		r, ok := right.(refVal)
		return ok && l.ref == r.ref, nil
	}
	return false, errors.Wrapf(errors.ErrEvaluation, "values of type %T cannot be compared", left)
}

func compare(op string, left, right interface{}) (bool, error) {
	if lf, lok := asNumber(left); lok {
		rf, rok := asNumber(right)
		if !rok {
			return false, errors.Wrap(errors.ErrEvaluation, "cannot compare number with non-number")
		}
		return applyCompare(op, numCmp(lf, rf)), nil
	}

	if ls, lok := left.(string); lok {
		rs, rok := right.(string)
		if !rok {
			return false, errors.Wrap(errors.ErrEvaluation, "cannot compare string with non-string")
		}
		return applyCompare(op, strings.Compare(ls, rs)), nil
	}

	if lt, lok := left.(time.Time); lok {
		rt, rok := right.(time.Time)
		if !rok {
			return false, errors.Wrap(errors.ErrEvaluation, "cannot compare datetime with non-datetime")
		}
		return applyCompare(op, timeCmp(lt, rt)), nil
	}

	return false, errors.Wrapf(errors.ErrEvaluation, "values of type %T are not ordered", left)
}

func numCmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func timeCmp(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func applyCompare(op string, cmp int) bool {
	switch op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}
