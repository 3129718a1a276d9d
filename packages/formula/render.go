package formula

import (
	"strings"
)

// RenderFormulaText turns a program back into formula text without the
// leading '='. Parsing the result yields the same operations.
func RenderFormulaText(p *Program) string {
	if p == nil {
		return ""
	}
	stack := make([]string, 0, len(p.Ops))
	pop := func() string {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return s
	}

	for _, op := range p.Ops {
		switch {
		case op.Code.IsBinary():
			right, left := pop(), pop()
			stack = append(stack, left+binaryOpSymbols[op.Code]+right)
			continue
		case op.Code.IsUnary():
			operand := pop()
			switch op.Code {
			case OpNeg:
				stack = append(stack, "-"+operand)
			case OpPlus:
				stack = append(stack, "+"+operand)
			case OpPercent:
				stack = append(stack, operand+"%")
			}
			continue
		}

		switch op.Code {
		case OpNumber:
			stack = append(stack, formatNumber(op.Num))
		case OpString:
			stack = append(stack, `"`+strings.ReplaceAll(op.Str, `"`, `""`)+`"`)
		case OpBool:
			if op.Bool {
				stack = append(stack, "TRUE")
			} else {
				stack = append(stack, "FALSE")
			}
		case OpError:
			stack = append(stack, op.Err.String())
		case OpMissingArg:
			stack = append(stack, "")
		case OpRef:
			stack = append(stack, op.Ref.String())
		case OpParen:
			stack = append(stack, "("+pop()+")")
		case OpFunc:
			args := make([]string, op.Argc)
			for i := op.Argc - 1; i >= 0; i-- {
				args[i] = pop()
			}
			stack = append(stack, op.Str+"("+strings.Join(args, ",")+")")
		}
	}

	if len(stack) != 1 {
		return strings.Join(stack, "")
	}
	return stack[0]
}
