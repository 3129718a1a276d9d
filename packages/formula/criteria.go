package formula

import (
	"strings"
)

type criteriaOp uint8

const (
	critEq criteriaOp = iota
	critNe
	critLt
	critLe
	critGt
	critGe
)

var criteriaPrefixes = []struct {
	text string
	op   criteriaOp
}{
	// two-character operators first
	{"<=", critLe},
	{">=", critGe},
	{"<>", critNe},
	{"<", critLt},
	{">", critGt},
	{"=", critEq},
}

// Criterion is a compiled condition of COUNTIF-style functions.
type Criterion struct {
	op      criteriaOp
	operand Value
	pattern []rune // folded wildcard pattern for text equality
	wild    bool
}

// ParseCriterion compiles a criteria argument. Text criteria may start
// with a comparison operator; the rest is read as a number, a boolean, an
// error literal or a text pattern with * and ? wildcards and ~ escapes.
func ParseCriterion(v Value) Criterion {
	if v.Kind() != KindText {
		return Criterion{op: critEq, operand: v}
	}
	s := v.Text()
	op := critEq
	for _, p := range criteriaPrefixes {
		if strings.HasPrefix(s, p.text) {
			op, s = p.op, s[len(p.text):]
			break
		}
	}

	c := Criterion{op: op}
	switch {
	case s == "":
		c.operand = NewText("")
	case isNumberText(s):
		n, _ := parseNumber(s)
		c.operand = NewNumber(n)
	case strings.EqualFold(s, "TRUE"):
		c.operand = NewBoolean(true)
	case strings.EqualFold(s, "FALSE"):
		c.operand = NewBoolean(false)
	default:
		if code, ok := ParseErrorCode(s); ok {
			c.operand = NewError(code)
			break
		}
		c.operand = NewText(s)
		if op == critEq || op == critNe {
			c.pattern = []rune(foldCase(s))
			c.wild = strings.ContainsAny(s, "*?~")
		}
	}
	return c
}

func isNumberText(s string) bool {
	_, ok := parseNumber(s)
	return ok
}

// Matches tests a cell value against the criterion.
func (c Criterion) Matches(v Value) bool {
	if c.operand.IsBlank() {
		// an empty criteria cell matches nothing
		return false
	}

	// "" and "=" match empty cells, "<>" matches anything non-empty
	if c.operand.IsText() && c.operand.Text() == "" {
		empty := v.IsBlank() || (v.IsText() && v.Text() == "")
		if c.op == critNe {
			return !v.IsBlank()
		}
		return c.op == critEq && empty
	}

	if c.op == critNe {
		return !c.equal(v)
	}
	if c.op == critEq {
		return c.equal(v)
	}

	if v.Kind() != c.operand.Kind() {
		return false
	}
	cmp := compareValues(v, c.operand)
	switch c.op {
	case critLt:
		return cmp < 0
	case critLe:
		return cmp <= 0
	case critGt:
		return cmp > 0
	default:
		return cmp >= 0
	}
}

func (c Criterion) equal(v Value) bool {
	switch c.operand.Kind() {
	case KindNumber:
		if v.IsText() {
			// numeric criteria also match numbers stored as text
			n, ok := parseNumber(v.Text())
			return ok && n == c.operand.Number()
		}
		return v.IsNumber() && v.Number() == c.operand.Number()
	case KindBoolean:
		return v.IsBoolean() && v.Bool() == c.operand.Bool()
	case KindError:
		return v.IsError() && v.Code() == c.operand.Code()
	case KindText:
		if !v.IsText() {
			return false
		}
		text := []rune(foldCase(v.Text()))
		if c.wild {
			return wildcardMatch(c.pattern, text)
		}
		return string(text) == string(c.pattern)
	}
	return false
}

// wildcardMatch matches text against a pattern where * is any run, ? is
// any single rune and ~ escapes the next rune.
func wildcardMatch(pattern, text []rune) bool {
	p, t := 0, 0
	starP, starT := -1, 0
	for t < len(text) {
		if p < len(pattern) {
			switch pattern[p] {
			case '*':
				starP, starT = p, t
				p++
				continue
			case '?':
				p++
				t++
				continue
			case '~':
				if p+1 < len(pattern) && pattern[p+1] == text[t] {
					p += 2
					t++
					continue
				}
			default:
				if pattern[p] == text[t] {
					p++
					t++
					continue
				}
			}
		}
		if starP < 0 {
			return false
		}
		// backtrack: let the last * absorb one more rune
		starT++
		p, t = starP+1, starT
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
