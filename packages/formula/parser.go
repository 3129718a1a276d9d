package formula

import (
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Workbook is what the parser needs from the host to bind sheet names and
// defined names. A nil Workbook only accepts unqualified cell references.
type Workbook interface {
	SheetIndex(name string) (int, bool)
	NameExists(name string) bool
}

// operator precedence, low to high
const (
	precComparison = iota + 1
	precConcat
	precAdditive
	precMultiplicative
	precPower
	precUnary
	precPercent
	precRange
)

var binaryPrecedence = map[OpCode]int{
	OpEq:     precComparison,
	OpNe:     precComparison,
	OpLt:     precComparison,
	OpLe:     precComparison,
	OpGt:     precComparison,
	OpGe:     precComparison,
	OpConcat: precConcat,
	OpAdd:    precAdditive,
	OpSub:    precAdditive,
	OpMul:    precMultiplicative,
	OpDiv:    precMultiplicative,
	OpPow:    precPower,
	OpRange:  precRange,
}

type stackItemKind uint8

const (
	itemOperator stackItemKind = iota
	itemParen
	itemFunc
)

// stackItem is an entry of the operator stack. Function items double as
// the opening paren of their argument list.
type stackItem struct {
	kind stackItemKind
	op   OpCode
	prec int
	name string
	argc int
	pos  int
}

// Parser turns tokens into a Program with the two-stack shunting algorithm.
type Parser struct {
	input      string
	tokens     []Token
	pos        int
	kind       FormulaKind
	anchor     Address
	book       Workbook
	funcs      *BuiltInFunctions
	maxNesting int

	out           []Op
	stack         []stackItem
	depth         int
	expectOperand bool
	volatile      bool
}

// NewParser creates a parser for one formula.
func NewParser(input string, anchor Address, kind FormulaKind, book Workbook, funcs *BuiltInFunctions, maxNesting int) *Parser {
	if funcs == nil {
		funcs = NewDefaultBuiltInFunctions()
	}
	if maxNesting <= 0 {
		maxNesting = DefaultMaxNesting
	}
	return &Parser{
		input:      input,
		kind:       kind,
		anchor:     anchor,
		book:       book,
		funcs:      funcs,
		maxNesting: maxNesting,
	}
}

// Parse tokenizes and parses the formula. Errors are *FormulaParseError.
func (p *Parser) Parse() (*Program, error) {
	tokens, err := NewLexer(p.input).Tokenize()
	if err != nil {
		return nil, err
	}
	p.tokens = tokens
	p.expectOperand = true

	for p.pos = 0; p.pos < len(p.tokens); p.pos++ {
		tok := p.tokens[p.pos]
		if err := p.consume(tok); err != nil {
			return nil, err
		}
	}

	for len(p.stack) > 0 {
		top := p.pop()
		if top.kind != itemOperator {
			return nil, p.fail(top.pos, ErrUnbalancedParens.New("missing closing parenthesis"))
		}
		p.emit(Op{Code: top.op})
	}

	if err := p.validate(); err != nil {
		return nil, err
	}

	prog := &Program{
		Kind:     p.kind,
		Anchor:   p.anchor,
		Ops:      p.out,
		Volatile: p.volatile,
	}
	if p.kind == KindNamedRange && (len(prog.Ops) != 1 || prog.Ops[0].Code != OpRef) {
		return nil, p.fail(-1, ErrInvalidFormulaKind.New(p.kind))
	}
	return prog, nil
}

func (p *Parser) consume(tok Token) error {
	switch tok.Type {
	case TokenEquals, TokenEOF:
		return nil

	case TokenNumber:
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return p.fail(tok.Pos, ErrSyntax.New("number out of range: "+tok.Value))
		}
		p.operand(Op{Code: OpNumber, Num: f})

	case TokenString:
		p.operand(Op{Code: OpString, Str: tok.Value})

	case TokenBoolean:
		p.operand(Op{Code: OpBool, Bool: tok.Value == "TRUE"})

	case TokenErrorValue:
		code, _ := ParseErrorCode(tok.Value)
		p.operand(Op{Code: OpError, Err: code})

	case TokenCell, TokenRange:
		ref, err := p.bindReference(tok)
		if err != nil {
			return err
		}
		p.operand(Op{Code: OpRef, Ref: ref})

	case TokenName:
		if p.book == nil || !p.book.NameExists(tok.Value) {
			return p.fail(tok.Pos, ErrUnknownName.New(tok.Value))
		}
		p.operand(Op{Code: OpRef, Ref: Reference{Kind: RefName, Sheet: SheetCurrent, LastSheet: SheetCurrent, Name: tok.Value}})

	case TokenFunction:
		spec, ok := p.funcs.Lookup(tok.Value)
		if !ok {
			return p.fail(tok.Pos, ErrUnknownFunction.New(tok.Value, p.suggest(tok.Value)))
		}
		if spec.Volatile {
			p.volatile = true
		}
		// the lexer guarantees a '(' follows
		p.pos++
		if err := p.enter(tok.Pos); err != nil {
			return err
		}
		p.push(stackItem{kind: itemFunc, name: spec.Name, pos: tok.Pos})
		p.expectOperand = true

	case TokenLeftParen:
		if err := p.enter(tok.Pos); err != nil {
			return err
		}
		p.push(stackItem{kind: itemParen, pos: tok.Pos})
		p.expectOperand = true

	case TokenComma:
		top, err := p.unwind(tok.Pos)
		if err != nil {
			return err
		}
		if top.kind != itemFunc {
			return p.fail(tok.Pos, ErrSyntax.New("argument separator outside of a function call"))
		}
		if p.expectOperand {
			p.emit(Op{Code: OpMissingArg})
		}
		p.stack[len(p.stack)-1].argc++
		p.expectOperand = true

	case TokenRightParen:
		top, err := p.unwind(tok.Pos)
		if err != nil {
			return err
		}
		p.pop()
		p.depth--
		if top.kind == itemParen {
			if p.expectOperand {
				return p.fail(tok.Pos, ErrSyntax.New("empty parentheses"))
			}
			p.emit(Op{Code: OpParen})
			return nil
		}
		argc := top.argc
		if p.expectOperand {
			if p.tokens[p.pos-1].Type != TokenLeftParen {
				p.emit(Op{Code: OpMissingArg})
				argc++
			}
		} else {
			argc++
		}
		if err := p.checkArity(top, argc); err != nil {
			return err
		}
		p.operand(Op{Code: OpFunc, Str: top.name, Argc: argc})

	case TokenUnaryPrefixOp:
		op := OpNeg
		if tok.Value == "+" {
			op = OpPlus
		}
		p.push(stackItem{kind: itemOperator, op: op, prec: precUnary, pos: tok.Pos})
		p.expectOperand = true

	case TokenUnaryPostfixOp:
		p.popWhile(func(top stackItem) bool { return top.prec > precPercent })
		p.emit(Op{Code: OpPercent})

	case TokenBinaryOp:
		op := binaryOpCodes[tok.Value]
		prec := binaryPrecedence[op]
		// every binary operator is left-associative
		p.popWhile(func(top stackItem) bool { return top.prec >= prec })
		p.push(stackItem{kind: itemOperator, op: op, prec: prec, pos: tok.Pos})
		p.expectOperand = true

	default:
		return p.fail(tok.Pos, ErrSyntax.New("unexpected token: "+tok.Value))
	}
	return nil
}

func (p *Parser) operand(op Op) {
	p.emit(op)
	p.expectOperand = false
}

func (p *Parser) emit(op Op) {
	p.out = append(p.out, op)
}

func (p *Parser) push(item stackItem) {
	p.stack = append(p.stack, item)
}

func (p *Parser) pop() stackItem {
	top := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return top
}

// popWhile emits operators from the top of the stack while cond holds.
func (p *Parser) popWhile(cond func(stackItem) bool) {
	for len(p.stack) > 0 {
		top := p.stack[len(p.stack)-1]
		if top.kind != itemOperator || !cond(top) {
			return
		}
		p.emit(Op{Code: top.op})
		p.pop()
	}
}

// unwind emits every operator above the innermost paren or function and
// returns that item without popping it.
func (p *Parser) unwind(pos int) (stackItem, error) {
	p.popWhile(func(stackItem) bool { return true })
	if len(p.stack) == 0 {
		return stackItem{}, p.fail(pos, ErrUnbalancedParens.New("too many closing parentheses"))
	}
	return p.stack[len(p.stack)-1], nil
}

func (p *Parser) enter(pos int) error {
	p.depth++
	if p.depth > p.maxNesting {
		return p.fail(pos, ErrNestingTooDeep.New(p.maxNesting))
	}
	return nil
}

func (p *Parser) checkArity(fn stackItem, argc int) error {
	spec, _ := p.funcs.Lookup(fn.name)
	if !spec.accepts(argc) {
		return p.fail(fn.pos, ErrArgumentCount.New(spec.Name, spec.arity(), argc))
	}
	return nil
}

// suggest finds the closest known function name for an error message.
func (p *Parser) suggest(name string) string {
	best, bestDist := "", 3
	for _, candidate := range p.funcs.Names() {
		if d := fuzzy.LevenshteinDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	if best == "" {
		return ""
	}
	return ", did you mean " + best + "?"
}

// bindReference resolves the sheet names of a reference token.
func (p *Parser) bindReference(tok Token) (Reference, error) {
	rt := tok.Ref
	ref := Reference{
		Kind:      RefCell,
		Sheet:     SheetCurrent,
		LastSheet: SheetCurrent,
		First:     rt.First,
		Last:      rt.Last,
	}
	if rt.Area {
		ref.Kind = RefArea
	}
	if !rt.Qualified {
		return ref, nil
	}
	first, err := p.sheetIndex(rt.Sheet, tok.Pos)
	if err != nil {
		return Reference{}, err
	}
	last, err := p.sheetIndex(rt.LastSheet, tok.Pos)
	if err != nil {
		return Reference{}, err
	}
	ref.Sheet, ref.LastSheet = first, last
	ref.SheetName, ref.LastSheetName = rt.Sheet, rt.LastSheet
	if first > last {
		ref.Sheet, ref.LastSheet = last, first
		ref.SheetName, ref.LastSheetName = rt.LastSheet, rt.Sheet
	}
	return ref, nil
}

func (p *Parser) sheetIndex(name string, pos int) (int, error) {
	if p.book != nil {
		if idx, ok := p.book.SheetIndex(name); ok {
			return idx, nil
		}
	}
	return 0, p.fail(pos, ErrUnknownSheet.New(name))
}

// validate replays the stack effect of the program so the evaluator can
// rely on well-formed input.
func (p *Parser) validate() error {
	depth := 0
	for _, op := range p.out {
		switch {
		case op.Code.IsBinary():
			depth--
		case op.Code.IsUnary(), op.Code == OpParen:
		case op.Code == OpFunc:
			depth -= op.Argc - 1
		default:
			depth++
		}
		if depth < 1 {
			return p.fail(-1, ErrSyntax.New("missing operand"))
		}
	}
	if depth != 1 {
		return p.fail(-1, ErrSyntax.New("incomplete expression"))
	}
	return nil
}

func (p *Parser) fail(pos int, err error) *FormulaParseError {
	return newParseError(p.input, pos, err)
}

// normalizeFunctionName upper-cases a function name for lookups.
func normalizeFunctionName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, prefix := range functionPrefixes {
		name = strings.TrimPrefix(name, strings.ToUpper(prefix))
	}
	return name
}
