package formula

// FormulaKind tells the parser and evaluator where a formula lives.
type FormulaKind uint8

const (
	KindCell FormulaKind = iota
	KindArray
	KindShared
	KindNamedRange
)

func (k FormulaKind) String() string {
	switch k {
	case KindCell:
		return "cell"
	case KindArray:
		return "array"
	case KindShared:
		return "shared"
	case KindNamedRange:
		return "named range"
	default:
		return "unknown"
	}
}

// OpCode identifies an operation of a Program.
type OpCode uint8

const (
	OpNumber OpCode = iota
	OpString
	OpBool
	OpError
	OpMissingArg
	OpRef

	// binary operators
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpConcat
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpRange

	// unary operators
	OpNeg
	OpPlus
	OpPercent

	// OpParen is a no-op kept so rendering restores explicit parentheses.
	OpParen
	OpFunc
)

var binaryOpSymbols = map[OpCode]string{
	OpAdd:    "+",
	OpSub:    "-",
	OpMul:    "*",
	OpDiv:    "/",
	OpPow:    "^",
	OpConcat: "&",
	OpEq:     "=",
	OpNe:     "<>",
	OpLt:     "<",
	OpLe:     "<=",
	OpGt:     ">",
	OpGe:     ">=",
	OpRange:  ":",
}

var binaryOpCodes = map[string]OpCode{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMul,
	"/":  OpDiv,
	"^":  OpPow,
	"&":  OpConcat,
	"=":  OpEq,
	"<>": OpNe,
	"<":  OpLt,
	"<=": OpLe,
	">":  OpGt,
	">=": OpGe,
	":":  OpRange,
}

// IsBinary reports whether c pops two operands.
func (c OpCode) IsBinary() bool {
	return c >= OpAdd && c <= OpRange
}

// IsUnary reports whether c pops one operand.
func (c OpCode) IsUnary() bool {
	return c >= OpNeg && c <= OpPercent
}

// Op is one operation of a Program. Only the fields relevant to Code are
// set, which keeps Op comparable with ==.
type Op struct {
	Code OpCode
	Num  float64
	Str  string // string literal or function name
	Bool bool
	Err  ErrorCode
	Ref  Reference
	Argc int
}

// Program is the parsed, postfix form of a formula. It is immutable once
// returned by the parser and may be shared between goroutines.
type Program struct {
	Kind     FormulaKind
	Anchor   Address
	Ops      []Op
	Volatile bool
}

// Equal reports whether both programs carry the same operations.
func (p *Program) Equal(o *Program) bool {
	if p == nil || o == nil {
		return p == o
	}
	if len(p.Ops) != len(o.Ops) {
		return false
	}
	for i := range p.Ops {
		if p.Ops[i] != o.Ops[i] {
			return false
		}
	}
	return true
}

// References returns the cell and area references of the program in
// operand order. Names are included unresolved.
func (p *Program) References() []Reference {
	var refs []Reference
	for _, op := range p.Ops {
		if op.Code == OpRef {
			refs = append(refs, op.Ref)
		}
	}
	return refs
}

// Functions returns the names of the functions the program calls.
func (p *Program) Functions() []string {
	var names []string
	for _, op := range p.Ops {
		if op.Code == OpFunc {
			names = append(names, op.Str)
		}
	}
	return names
}

// String renders the program as formula text.
func (p *Program) String() string {
	return RenderFormulaText(p)
}
