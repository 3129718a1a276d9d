package formula

// IF only looks at the condition and the branch it selects, so an error in
// the other branch does not leak into the result.
func (bf *BuiltInFunctions) IF(c *CallContext, args ...Operand) Value {
	cond := c.Scalar(args[0])
	if cond.IsError() {
		return cond
	}
	ok, code := cond.ToBoolean()
	if code != ErrorCodeNone {
		return NewError(code)
	}
	if ok {
		return c.Scalar(args[1])
	}
	if len(args) == 3 {
		return c.Scalar(args[2])
	}
	return NewBoolean(false)
}

// logicalValues flattens AND/OR arguments. Text and blanks inside
// references are ignored; direct text must read as a boolean.
func logicalValues(args []Operand) ([]bool, Value) {
	var out []bool
	for _, arg := range args {
		if arg.IsArea() {
			for v := range arg.Area.Values() {
				switch v.Kind() {
				case KindError:
					return nil, v
				case KindNumber, KindBoolean:
					out = append(out, v.num != 0)
				}
			}
			continue
		}
		if arg.Value.IsBlank() {
			continue
		}
		b, code := arg.Value.ToBoolean()
		if code != ErrorCodeNone {
			return nil, NewError(code)
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, NewError(ErrorCodeValue)
	}
	return out, Blank
}

func (bf *BuiltInFunctions) AND(c *CallContext, args ...Operand) Value {
	values, errVal := logicalValues(args)
	if errVal.IsError() {
		return errVal
	}
	for _, b := range values {
		if !b {
			return NewBoolean(false)
		}
	}
	return NewBoolean(true)
}

func (bf *BuiltInFunctions) OR(c *CallContext, args ...Operand) Value {
	values, errVal := logicalValues(args)
	if errVal.IsError() {
		return errVal
	}
	for _, b := range values {
		if b {
			return NewBoolean(true)
		}
	}
	return NewBoolean(false)
}

func (bf *BuiltInFunctions) NOT(c *CallContext, args ...Operand) Value {
	v := c.Scalar(args[0])
	if v.IsError() {
		return v
	}
	b, code := v.ToBoolean()
	if code != ErrorCodeNone {
		return NewError(code)
	}
	return NewBoolean(!b)
}
