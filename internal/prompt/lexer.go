package prompt

import (
	"strings"
	"unicode"

	"hermes/pkg/errors"
)

// segment is a piece of a template: literal text or an expression body.
type segment struct {
	text string
	expr bool
	pos  int // byte offset of the segment start, for error messages
}

// splitSegments cuts a template into literal and {{ ... }} segments.
func splitSegments(template string) ([]segment, error) {
	var segs []segment
	rest := template
	offset := 0

	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			if strings.Contains(rest, "}}") {
				return nil, errors.Wrapf(errors.ErrTemplate, "unmatched '}}' at offset %d", offset+strings.Index(rest, "}}"))
			}
			if rest != "" {
				segs = append(segs, segment{text: rest, pos: offset})
			}
			return segs, nil
		}

		if open > 0 {
			segs = append(segs, segment{text: rest[:open], pos: offset})
		}

		close := strings.Index(rest[open:], "}}")
		if close < 0 {
			return nil, errors.Wrapf(errors.ErrTemplate, "unclosed '{{' at offset %d", offset+open)
		}
		close += open

		body := rest[open+2 : close]
		if strings.TrimSpace(body) == "" {
			return nil, errors.Wrapf(errors.ErrTemplate, "empty expression at offset %d", offset+open)
		}
		segs = append(segs, segment{text: body, expr: true, pos: offset + open})

		offset += close + 2
		rest = rest[close+2:]
	}
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
	pos  int
}

// expression keywords; everything else is an identifier
var keywords = map[string]bool{
	"if": true, "else": true, "and": true, "or": true, "not": true,
	"true": true, "false": true, "none": true, "in": true,
}

var twoCharOps = map[string]bool{
	"==": true, "!=": true, "<=": true, ">=": true,
}

func lexExpr(body string, base int) ([]token, error) {
	var toks []token
	runes := []rune(body)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			toks = append(toks, token{kind: tokIdent, val: string(runes[start:i]), pos: base + start})

		case unicode.IsDigit(r):
			start := i
			seenDot := false
			for i < len(runes) && (unicode.IsDigit(runes[i]) || (runes[i] == '.' && !seenDot && i+1 < len(runes) && unicode.IsDigit(runes[i+1]))) {
				if runes[i] == '.' {
					seenDot = true
				}
				i++
			}
			toks = append(toks, token{kind: tokNumber, val: string(runes[start:i]), pos: base + start})

		case r == '\'' || r == '"':
			quote := r
			i++
			var sb strings.Builder
			closed := false
			for i < len(runes) {
				if runes[i] == '\\' && i+1 < len(runes) {
					next := runes[i+1]
					switch next {
					case 'n':
						sb.WriteRune('\n')
					case 't':
						sb.WriteRune('\t')
					default:
						sb.WriteRune(next)
					}
					i += 2
					continue
				}
				if runes[i] == quote {
					closed = true
					i++
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, errors.Wrapf(errors.ErrTemplate, "unterminated string at offset %d", base)
			}
			toks = append(toks, token{kind: tokString, val: sb.String(), pos: base})

		default:
			if i+1 < len(runes) {
				two := string(runes[i : i+2])
				if twoCharOps[two] {
					toks = append(toks, token{kind: tokOp, val: two, pos: base + i})
					i += 2
					continue
				}
			}
			switch r {
			case '+', '-', '*', '/', '~', '<', '>', '(', ')', '.', '|', ',':
				toks = append(toks, token{kind: tokOp, val: string(r), pos: base + i})
				i++
			default:
				return nil, errors.Wrapf(errors.ErrTemplate, "unexpected character %q at offset %d", string(r), base+i)
			}
		}
	}

	toks = append(toks, token{kind: tokEOF, pos: base + len(runes)})
	return toks, nil
}
