package prompt

import (
	"strings"
	"time"

	"hermes/pkg/errors"
)

// filterFunc applies a whitelisted filter to an evaluated value.
type filterFunc func(e *evaluator, recv interface{}, args []interface{}) (interface{}, error)

// The whitelist is the entire filter surface; there is no fallback to
// arbitrary function lookup.
var filters = map[string]filterFunc{
	"default":  filterDefault,
	"date":     filterDate,
	"truncate": filterTruncate,
	"upper":    filterUpper,
	"lower":    filterLower,
	"trim":     filterTrim,
	"join":     filterJoin,
}

func (e *evaluator) evalFilter(n *filterNode) (interface{}, error) {
	fn, ok := filters[n.name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrTemplate, "unknown filter %q", n.name)
	}

	recv, err := e.eval(n.recv)
	if err != nil {
		return nil, err
	}

	args := make([]interface{}, 0, len(n.args))
	for _, a := range n.args {
		v, err := e.eval(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	return fn(e, recv, args)
}

// filterDefault substitutes a fallback when the value is empty.
func filterDefault(e *evaluator, recv interface{}, args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, errors.Wrap(errors.ErrEvaluation, "default expects exactly one argument")
	}
	if truthy(recv) {
		return recv, nil
	}
	return args[0], nil
}

// strftime directives supported by the date filter.
var strftimeMap = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
	'B': "January",
	'b': "Jan",
	'A': "Monday",
	'a': "Mon",
}

func strftimeToLayout(format string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			sb.WriteByte(format[i])
			continue
		}
		if i+1 >= len(format) {
			return "", errors.Wrap(errors.ErrEvaluation, "trailing '%' in date format")
		}
		i++
		if format[i] == '%' {
			sb.WriteByte('%')
			continue
		}
		layout, ok := strftimeMap[format[i]]
		if !ok {
			return "", errors.Wrapf(errors.ErrEvaluation, "unsupported date directive %%%c", format[i])
		}
		sb.WriteString(layout)
	}
	return sb.String(), nil
}

// filterDate formats a datetime value with an strftime-style format string.
func filterDate(e *evaluator, recv interface{}, args []interface{}) (interface{}, error) {
	format := "%Y-%m-%d"
	if len(args) > 1 {
		return nil, errors.Wrap(errors.ErrEvaluation, "date expects at most one argument")
	}
	if len(args) == 1 {
		s, ok := args[0].(string)
		if !ok {
			return nil, errors.Wrap(errors.ErrEvaluation, "date format must be a string")
		}
		format = s
	}

	var t time.Time
	switch v := recv.(type) {
	case nil:
		return "", nil
	case time.Time:
		t = v
	case string:
		parsed, err := parseDatetime(v)
		if err != nil {
			return nil, err
		}
		t = parsed
	default:
		return nil, errors.Wrapf(errors.ErrEvaluation, "date filter applied to %T", recv)
	}

	layout, err := strftimeToLayout(format)
	if err != nil {
		return nil, err
	}
	return t.Format(layout), nil
}

func parseDatetime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(errors.ErrEvaluation, "cannot parse %q as a datetime", s)
}

// filterTruncate shortens a string to n runes, appending "..." when cut.
func filterTruncate(e *evaluator, recv interface{}, args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, errors.Wrap(errors.ErrEvaluation, "truncate expects exactly one argument")
	}
	n, ok := asNumber(args[0])
	if !ok || n < 0 {
		return nil, errors.Wrap(errors.ErrEvaluation, "truncate length must be a non-negative number")
	}

	s, err := e.stringify(recv)
	if err != nil {
		return nil, err
	}

	runes := []rune(s)
	limit := int(n)
	if len(runes) <= limit {
		return s, nil
	}
	return string(runes[:limit]) + "...", nil
}

func filterUpper(e *evaluator, recv interface{}, args []interface{}) (interface{}, error) {
	if len(args) != 0 {
		return nil, errors.Wrap(errors.ErrEvaluation, "upper takes no arguments")
	}
	s, err := e.stringify(recv)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(s), nil
}

func filterLower(e *evaluator, recv interface{}, args []interface{}) (interface{}, error) {
	if len(args) != 0 {
		return nil, errors.Wrap(errors.ErrEvaluation, "lower takes no arguments")
	}
	s, err := e.stringify(recv)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(s), nil
}

func filterTrim(e *evaluator, recv interface{}, args []interface{}) (interface{}, error) {
	if len(args) != 0 {
		return nil, errors.Wrap(errors.ErrEvaluation, "trim takes no arguments")
	}
	s, err := e.stringify(recv)
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(s), nil
}

// filterJoin joins list elements with a separator.
func filterJoin(e *evaluator, recv interface{}, args []interface{}) (interface{}, error) {
	sep := ", "
	if len(args) > 1 {
		return nil, errors.Wrap(errors.ErrEvaluation, "join expects at most one argument")
	}
	if len(args) == 1 {
		s, ok := args[0].(string)
		if !ok {
			return nil, errors.Wrap(errors.ErrEvaluation, "join separator must be a string")
		}
		sep = s
	}

	var items []interface{}
	switch v := recv.(type) {
	case nil:
		return "", nil
	case []interface{}:
		items = v
	case refListVal:
		for _, ref := range v.refs {
			items = append(items, refVal{ref: ref, hops: v.hops})
		}
	default:
		return nil, errors.Wrapf(errors.ErrEvaluation, "join applied to non-list %T", recv)
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		s, err := e.stringify(item)
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, sep), nil
}
