package formula

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func (bf *BuiltInFunctions) CONCATENATE(c *CallContext, args ...Operand) Value {
	var sb strings.Builder
	for _, arg := range args {
		s, errVal := textArg(c, arg)
		if errVal.IsError() {
			return errVal
		}
		sb.WriteString(s)
	}
	return NewText(sb.String())
}

func (bf *BuiltInFunctions) LEN(c *CallContext, args ...Operand) Value {
	s, errVal := textArg(c, args[0])
	if errVal.IsError() {
		return errVal
	}
	return NewNumber(float64(utf8.RuneCountInString(s)))
}

func (bf *BuiltInFunctions) UPPER(c *CallContext, args ...Operand) Value {
	s, errVal := textArg(c, args[0])
	if errVal.IsError() {
		return errVal
	}
	return NewText(cases.Upper(language.Und).String(s))
}

func (bf *BuiltInFunctions) LOWER(c *CallContext, args ...Operand) Value {
	s, errVal := textArg(c, args[0])
	if errVal.IsError() {
		return errVal
	}
	return NewText(cases.Lower(language.Und).String(s))
}

// TRIM removes leading and trailing spaces and collapses inner runs of
// spaces to one.
func (bf *BuiltInFunctions) TRIM(c *CallContext, args ...Operand) Value {
	s, errVal := textArg(c, args[0])
	if errVal.IsError() {
		return errVal
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' })
	return NewText(strings.Join(fields, " "))
}
