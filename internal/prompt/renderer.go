package prompt

import (
	"context"
	"strings"

	"hermes/internal/domain/record"
	"hermes/pkg/logger"
)

// Renderer evaluates Jinja2-style templates against the record graph.
// The expression grammar is restricted to interpolation, attribute and
// relation traversal, arithmetic, concatenation, conditionals and a
// whitelisted filter set; there is no statement execution and no access
// to anything outside the bound variables.
type Renderer struct {
	resolver record.Resolver
	maxHops  int
	log      *logger.Logger
}

// New creates a renderer. maxHops bounds relation traversal depth.
func New(resolver record.Resolver, maxHops int) *Renderer {
	if maxHops <= 0 {
		maxHops = 8
	}
	return &Renderer{
		resolver: resolver,
		maxHops:  maxHops,
		log:      logger.Get().With("component", "prompt_renderer"),
	}
}

// Render evaluates the template with the given variable bindings.
// The triggering record is conventionally bound as both "record" and
// "object". No partial output is ever returned: any template or
// evaluation error yields an empty string and the error.
func (r *Renderer) Render(ctx context.Context, template string, vars map[string]interface{}) (string, error) {
	segs, err := splitSegments(template)
	if err != nil {
		return "", err
	}

	// Parse every expression up front so syntax errors surface before
	// any attribute resolution happens.
	type parsed struct {
		seg  segment
		expr node
	}
	items := make([]parsed, 0, len(segs))
	for _, seg := range segs {
		if !seg.expr {
			items = append(items, parsed{seg: seg})
			continue
		}
		toks, err := lexExpr(seg.text, seg.pos)
		if err != nil {
			return "", err
		}
		n, err := parseExpr(toks)
		if err != nil {
			return "", err
		}
		items = append(items, parsed{seg: seg, expr: n})
	}

	e := &evaluator{
		ctx:      ctx,
		resolver: r.resolver,
		vars:     vars,
		maxHops:  r.maxHops,
	}

	var sb strings.Builder
	for _, item := range items {
		if item.expr == nil {
			sb.WriteString(item.seg.text)
			continue
		}

		val, err := e.eval(item.expr)
		if err != nil {
			return "", err
		}
		s, err := e.stringify(val)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}

	return sb.String(), nil
}
