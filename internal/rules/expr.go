// Package rules parses and evaluates boolean condition expressions over named
// feature values, e.g. `RSI_1m < 30 AND PRICE > SMA_1m[1]`.
//
// Grammar (AND binds tighter than OR, parentheses group):
//
//	expr    := term ("OR" term)*
//	term    := factor ("AND" factor)*
//	factor  := "(" expr ")" | comparison
//	compare := operand op operand        op in < > <= >= == !=
//	operand := NUMBER | IDENT ("[" offset "]")?
//
// An identifier indexed with [n] refers to the value n bars ago.
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Expr is a parsed condition, reusable across evaluations.
type Expr interface {
	String() string
}

type logicNode struct {
	op          string // "AND" or "OR"
	left, right Expr
}

func (n *logicNode) String() string {
	return fmt.Sprintf("(%s %s %s)", n.left, n.op, n.right)
}

type compareNode struct {
	op          string
	left, right operand
}

func (n *compareNode) String() string {
	return fmt.Sprintf("%s %s %s", n.left, n.op, n.right)
}

type operand struct {
	literal bool
	value   float64
	name    string
	offset  int
}

func (o operand) String() string {
	if o.literal {
		return strconv.FormatFloat(o.value, 'g', -1, 64)
	}
	if o.offset > 0 {
		return fmt.Sprintf("%s[%d]", o.name, o.offset)
	}
	return o.name
}

// Identifiers returns the distinct feature names referenced by the expression.
func Identifiers(e Expr) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *logicNode:
			walk(n.left)
			walk(n.right)
		case *compareNode:
			for _, o := range []operand{n.left, n.right} {
				if !o.literal && !seen[o.name] {
					seen[o.name] = true
					out = append(out, o.name)
				}
			}
		}
	}
	walk(e)
	return out
}

// Parse compiles an expression string. A parse failure is a configuration
// error; callers refuse to start rather than evaluate a broken rule.
func Parse(input string) (Expr, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("parse %q: unexpected %q", input, p.peek().text)
	}
	return e, nil
}

// MustParse is Parse for expressions known good at compile time (tests).
func MustParse(input string) Expr {
	e, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return e
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokOp
	tokAnd
	tokOr
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := rune(input[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '[':
			toks = append(toks, token{tokLBracket, "["})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]"})
			i++
		case strings.ContainsRune("<>=!", c):
			op := string(c)
			if i+1 < len(input) && input[i+1] == '=' {
				op += "="
				i++
			}
			i++
			switch op {
			case "<", ">", "<=", ">=", "==", "!=":
				toks = append(toks, token{tokOp, op})
			default:
				return nil, fmt.Errorf("lex %q: bad operator %q", input, op)
			}
		case unicode.IsDigit(c) || c == '-' || c == '.':
			j := i
			if c == '-' {
				j++
			}
			for j < len(input) && (unicode.IsDigit(rune(input[j])) || input[j] == '.') {
				j++
			}
			text := input[i:j]
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, fmt.Errorf("lex %q: bad number %q", input, text)
			}
			toks = append(toks, token{tokNumber, text})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(input) && (unicode.IsLetter(rune(input[j])) || unicode.IsDigit(rune(input[j])) || input[j] == '_') {
				j++
			}
			word := input[i:j]
			switch strings.ToUpper(word) {
			case "AND":
				toks = append(toks, token{tokAnd, word})
			case "OR":
				toks = append(toks, token{tokOr, word})
			default:
				toks = append(toks, token{tokIdent, word})
			}
			i = j
		default:
			return nil, fmt.Errorf("lex %q: unexpected character %q", input, string(c))
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &logicNode{op: "OR", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &logicNode{op: "AND", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (Expr, error) {
	if p.peek().kind == tokLParen {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return e, nil
	}
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	opTok := p.next()
	if opTok.kind != tokOp {
		return nil, fmt.Errorf("expected comparison operator, got %q", opTok.text)
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &compareNode{op: opTok.text, left: left, right: right}, nil
}

func (p *parser) parseOperand() (operand, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, _ := strconv.ParseFloat(t.text, 64)
		return operand{literal: true, value: v}, nil
	case tokIdent:
		o := operand{name: t.text}
		if p.peek().kind == tokLBracket {
			p.next()
			idx := p.next()
			if idx.kind != tokNumber {
				return operand{}, fmt.Errorf("expected bar offset after %q[", t.text)
			}
			n, err := strconv.Atoi(idx.text)
			if err != nil || n < 0 {
				return operand{}, fmt.Errorf("bad bar offset %q for %s", idx.text, t.text)
			}
			if p.next().kind != tokRBracket {
				return operand{}, fmt.Errorf("missing ] after offset for %s", t.text)
			}
			o.offset = n
		}
		return o, nil
	default:
		return operand{}, fmt.Errorf("expected operand, got %q", t.text)
	}
}
