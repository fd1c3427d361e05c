package prompt

import (
	"strconv"

	"hermes/pkg/errors"
)

// Expression tree. The grammar is deliberately restricted: variables,
// attribute traversal, arithmetic, concatenation, comparisons, boolean
// logic, conditional expressions and a whitelisted filter set. No calls,
// no subscripts, no statements.

type node interface{}

type litNode struct {
	val interface{} // string, float64, bool or nil
}

type varNode struct {
	name string
	pos  int
}

type attrNode struct {
	recv node
	name string
	pos  int
}

type filterNode struct {
	recv node
	name string
	args []node
	pos  int
}

type unaryNode struct {
	op  string // "-" or "not"
	arg node
}

type binaryNode struct {
	op    string
	left  node
	right node
}

type condNode struct {
	then node
	cond node
	alt  node
}

type parser struct {
	toks []token
	i    int
}

func parseExpr(toks []token) (node, error) {
	p := &parser{toks: toks}
	n, err := p.conditional()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, errors.Wrapf(errors.ErrTemplate, "unexpected token %q at offset %d", p.peek().val, p.peek().pos)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) acceptOp(op string) bool {
	if p.peek().kind == tokOp && p.peek().val == op {
		p.i++
		return true
	}
	return false
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.peek().kind == tokIdent && p.peek().val == kw {
		p.i++
		return true
	}
	return false
}

// conditional: or_expr ("if" or_expr "else" conditional)?
func (p *parser) conditional() (node, error) {
	then, err := p.orExpr()
	if err != nil {
		return nil, err
	}

	if !p.acceptKeyword("if") {
		return then, nil
	}

	cond, err := p.orExpr()
	if err != nil {
		return nil, err
	}
	if !p.acceptKeyword("else") {
		return nil, errors.Wrapf(errors.ErrTemplate, "conditional expression missing 'else' at offset %d", p.peek().pos)
	}
	alt, err := p.conditional()
	if err != nil {
		return nil, err
	}

	return &condNode{then: then, cond: cond, alt: alt}, nil
}

func (p *parser) orExpr() (node, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("or") {
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) andExpr() (node, error) {
	left, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("and") {
		right, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) notExpr() (node, error) {
	if p.acceptKeyword("not") {
		arg, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: "not", arg: arg}, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (node, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp {
		op := p.peek().val
		if op != "==" && op != "!=" && op != "<" && op != "<=" && op != ">" && op != ">=" {
			break
		}
		p.next()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) additive() (node, error) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp {
		op := p.peek().val
		if op != "+" && op != "-" && op != "~" {
			break
		}
		p.next()
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) multiplicative() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp {
		op := p.peek().val
		if op != "*" && op != "/" {
			break
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if p.acceptOp("-") {
		arg, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: "-", arg: arg}, nil
	}
	return p.postfix()
}

// postfix: primary (".", ident | "|" ident filter_args?)*
func (p *parser) postfix() (node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.acceptOp("."):
			t := p.next()
			if t.kind != tokIdent || keywords[t.val] {
				return nil, errors.Wrapf(errors.ErrTemplate, "expected attribute name at offset %d", t.pos)
			}
			n = &attrNode{recv: n, name: t.val, pos: t.pos}

		case p.acceptOp("|"):
			t := p.next()
			if t.kind != tokIdent || keywords[t.val] {
				return nil, errors.Wrapf(errors.ErrTemplate, "expected filter name at offset %d", t.pos)
			}
			f := &filterNode{recv: n, name: t.val, pos: t.pos}
			if p.acceptOp("(") {
				if !p.acceptOp(")") {
					for {
						arg, err := p.conditional()
						if err != nil {
							return nil, err
						}
						f.args = append(f.args, arg)
						if p.acceptOp(",") {
							continue
						}
						if p.acceptOp(")") {
							break
						}
						return nil, errors.Wrapf(errors.ErrTemplate, "expected ',' or ')' in filter arguments at offset %d", p.peek().pos)
					}
				}
			}
			n = f

		default:
			return n, nil
		}
	}
}

func (p *parser) primary() (node, error) {
	t := p.peek()

	switch t.kind {
	case tokNumber:
		p.next()
		v, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrTemplate, "invalid number %q at offset %d", t.val, t.pos)
		}
		return &litNode{val: v}, nil

	case tokString:
		p.next()
		return &litNode{val: t.val}, nil

	case tokIdent:
		switch t.val {
		case "true":
			p.next()
			return &litNode{val: true}, nil
		case "false":
			p.next()
			return &litNode{val: false}, nil
		case "none":
			p.next()
			return &litNode{val: nil}, nil
		}
		if keywords[t.val] {
			return nil, errors.Wrapf(errors.ErrTemplate, "unexpected keyword %q at offset %d", t.val, t.pos)
		}
		p.next()
		return &varNode{name: t.val, pos: t.pos}, nil

	case tokOp:
		if t.val == "(" {
			p.next()
			n, err := p.conditional()
			if err != nil {
				return nil, err
			}
			if !p.acceptOp(")") {
				return nil, errors.Wrapf(errors.ErrTemplate, "missing ')' at offset %d", p.peek().pos)
			}
			return n, nil
		}
	}

	return nil, errors.Wrapf(errors.ErrTemplate, "unexpected token %q at offset %d", t.val, t.pos)
}
