package formula

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
)

// CallContext is handed to built-in functions. It knows how the current
// formula collapses a reference into a single value.
type CallContext struct {
	*EvaluationContext
	kind   FormulaKind
	anchor Address
}

// Scalar reduces an operand to one value. Single cells are read directly.
// Array formulas pick the element at the evaluated cell's offset from the
// group anchor; everything else uses implicit intersection.
func (c *CallContext) Scalar(o Operand) Value {
	a := o.Area
	if a == nil {
		return o.Value
	}
	if a.Size() == 1 {
		return a.At(0, 0, 0)
	}
	if a.Sheets() != 1 {
		return NewError(ErrorCodeValue)
	}
	if c.kind == KindArray {
		return arrayElement(a, c.Row-c.anchor.Row, c.Col-c.anchor.Col)
	}
	return intersect(a, c.Row, c.Col)
}

// arrayElement picks the element at (dRow, dCol). A single row or column
// is repeated across the other dimension.
func arrayElement(a *Area, dRow, dCol int) Value {
	if a.Rows() == 1 {
		dRow = 0
	}
	if a.Cols() == 1 {
		dCol = 0
	}
	if dRow < 0 || dCol < 0 || dRow >= a.Rows() || dCol >= a.Cols() {
		return NewError(ErrorCodeNA)
	}
	return a.At(0, dRow, dCol)
}

// intersect implements implicit intersection with the cell at (row, col).
func intersect(a *Area, row, col int) Value {
	rowIn := row >= a.FirstRow && row <= a.LastRow
	colIn := col >= a.FirstCol && col <= a.LastCol
	switch {
	case a.Cols() == 1 && rowIn:
		return a.At(0, row-a.FirstRow, 0)
	case a.Rows() == 1 && colIn:
		return a.At(0, 0, col-a.FirstCol)
	case a.Rows() > 1 && a.Cols() > 1 && rowIn && colIn:
		return a.At(0, row-a.FirstRow, col-a.FirstCol)
	}
	return NewError(ErrorCodeValue)
}

// evaluate runs the program with an explicit operand stack. Every step
// leaves a value on the stack; errors travel as values.
func evaluate(prog *Program, ctx *EvaluationContext, funcs *BuiltInFunctions) Value {
	call := &CallContext{EvaluationContext: ctx, kind: prog.Kind, anchor: prog.Anchor}
	stack := make([]Operand, 0, 8)
	pop := func() Operand {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top
	}

	for _, op := range prog.Ops {
		switch {
		case op.Code.IsBinary():
			right, left := pop(), pop()
			stack = append(stack, binaryOp(call, op.Code, left, right))
			continue
		case op.Code.IsUnary():
			stack = append(stack, valueOperand(unaryOp(op.Code, call.Scalar(pop()))))
			continue
		}

		switch op.Code {
		case OpNumber:
			stack = append(stack, valueOperand(NewNumber(op.Num)))
		case OpString:
			stack = append(stack, valueOperand(NewText(op.Str)))
		case OpBool:
			stack = append(stack, valueOperand(NewBoolean(op.Bool)))
		case OpError:
			stack = append(stack, valueOperand(NewError(op.Err)))
		case OpMissingArg:
			stack = append(stack, valueOperand(Blank))
		case OpRef:
			stack = append(stack, ResolveReference(ctx, op.Ref))
		case OpParen:
		case OpFunc:
			args := make([]Operand, op.Argc)
			copy(args, stack[len(stack)-op.Argc:])
			stack = stack[:len(stack)-op.Argc]
			stack = append(stack, valueOperand(funcs.Call(call, op.Str, args...)))
		}
	}

	result := call.Scalar(pop())
	switch result.Kind() {
	case KindBlank:
		// a formula pointing at an empty cell shows 0
		return NewNumber(0)
	case KindNumber:
		return checkNumber(result.Number())
	}
	return result
}

func unaryOp(code OpCode, v Value) Value {
	if v.IsError() {
		return v
	}
	if code == OpPlus {
		return v
	}
	n, errCode := v.ToNumber()
	if errCode != ErrorCodeNone {
		return NewError(errCode)
	}
	if code == OpNeg {
		return checkNumber(-n)
	}
	return checkNumber(n / 100)
}

func binaryOp(c *CallContext, code OpCode, left, right Operand) Operand {
	if code == OpRange {
		return rangeOp(left, right)
	}

	l, r := c.Scalar(left), c.Scalar(right)
	// errors win over type mismatches, left operand first
	if l.IsError() {
		return valueOperand(l)
	}
	if r.IsError() {
		return valueOperand(r)
	}

	switch code {
	case OpConcat:
		ls, _ := l.ToText()
		rs, _ := r.ToText()
		return valueOperand(NewText(ls + rs))
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return valueOperand(NewBoolean(compareResult(code, compareValues(l, r))))
	}

	ln, lc := l.ToNumber()
	if lc != ErrorCodeNone {
		return valueOperand(NewError(lc))
	}
	rn, rc := r.ToNumber()
	if rc != ErrorCodeNone {
		return valueOperand(NewError(rc))
	}
	return valueOperand(arithmetic(code, ln, rn))
}

func arithmetic(code OpCode, l, r float64) Value {
	switch code {
	case OpAdd:
		return checkNumber(l + r)
	case OpSub:
		return checkNumber(l - r)
	case OpMul:
		return checkNumber(l * r)
	case OpDiv:
		if r == 0 {
			return NewError(ErrorCodeDiv0)
		}
		return checkNumber(l / r)
	case OpPow:
		if l == 0 && r == 0 {
			return NewError(ErrorCodeNum)
		}
		if l == 0 && r < 0 {
			return NewError(ErrorCodeDiv0)
		}
		return checkNumber(math.Pow(l, r))
	}
	return NewError(ErrorCodeValue)
}

// rangeOp builds the bounding area of two references on the same sheets.
func rangeOp(left, right Operand) Operand {
	if !left.IsArea() && left.Value.IsError() {
		return left
	}
	if !right.IsArea() && right.Value.IsError() {
		return right
	}
	if !left.IsArea() || !right.IsArea() {
		return valueOperand(NewError(ErrorCodeValue))
	}
	a, b := left.Area, right.Area
	if a.FirstSheet != b.FirstSheet || a.LastSheet != b.LastSheet {
		return valueOperand(NewError(ErrorCodeRef))
	}
	return areaOperand(&Area{
		FirstSheet: a.FirstSheet,
		LastSheet:  a.LastSheet,
		FirstRow:   min(a.FirstRow, b.FirstRow),
		FirstCol:   min(a.FirstCol, b.FirstCol),
		LastRow:    max(a.LastRow, b.LastRow),
		LastCol:    max(a.LastCol, b.LastCol),
		read:       a.read,
	})
}

func compareResult(code OpCode, cmp int) bool {
	switch code {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	default:
		return cmp >= 0
	}
}

// kindRank orders values of different kinds: numbers < text < booleans.
func kindRank(k ValueKind) int {
	switch k {
	case KindNumber:
		return 0
	case KindText:
		return 1
	default:
		return 2
	}
}

// compareValues orders two non-error values. Blank takes the zero value
// of the other side's kind and text compares case-insensitively.
func compareValues(l, r Value) int {
	if l.IsBlank() && r.IsBlank() {
		return 0
	}
	if l.IsBlank() {
		l = zeroOf(r.Kind())
	}
	if r.IsBlank() {
		r = zeroOf(l.Kind())
	}
	if l.Kind() != r.Kind() {
		return cmpInt(kindRank(l.Kind()), kindRank(r.Kind()))
	}
	switch l.Kind() {
	case KindText:
		return strings.Compare(foldCase(l.Text()), foldCase(r.Text()))
	default:
		return cmpFloat(l.num, r.num)
	}
}

func zeroOf(k ValueKind) Value {
	switch k {
	case KindText:
		return NewText("")
	case KindBoolean:
		return NewBoolean(false)
	default:
		return NewNumber(0)
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt(a, b int) int {
	return cmpFloat(float64(a), float64(b))
}

// foldCase is used for case-insensitive text matching. Casers are not safe
// for concurrent use, so one is created per call.
func foldCase(s string) string {
	return cases.Fold().String(s)
}
