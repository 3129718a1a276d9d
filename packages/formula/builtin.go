package formula

import (
	"math/rand/v2"
	"sort"
	"strconv"
	"time"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// FunctionSpec describes the argument contract of a built-in function.
// MaxArgs of -1 means variadic; arguments past MinArgs come in groups of
// ArgStep when it is set.
type FunctionSpec struct {
	Name     string
	MinArgs  int
	MaxArgs  int
	ArgStep  int
	Volatile bool
}

func (s FunctionSpec) accepts(argc int) bool {
	if argc < s.MinArgs || (s.MaxArgs >= 0 && argc > s.MaxArgs) {
		return false
	}
	return s.ArgStep == 0 || (argc-s.MinArgs)%s.ArgStep == 0
}

// arity describes the accepted argument count for error messages.
func (s FunctionSpec) arity() string {
	switch {
	case s.ArgStep > 1:
		return strconv.Itoa(s.MinArgs) + " or more arguments in groups of " + strconv.Itoa(s.ArgStep)
	case s.MaxArgs < 0:
		return "at least " + strconv.Itoa(s.MinArgs) + " arguments"
	case s.MinArgs == s.MaxArgs:
		if s.MinArgs == 1 {
			return "1 argument"
		}
		return strconv.Itoa(s.MinArgs) + " arguments"
	default:
		return strconv.Itoa(s.MinArgs) + " to " + strconv.Itoa(s.MaxArgs) + " arguments"
	}
}

var functionSpecs = map[string]FunctionSpec{
	// aggregates
	"SUM":        {Name: "SUM", MinArgs: 1, MaxArgs: -1},
	"AVERAGE":    {Name: "AVERAGE", MinArgs: 1, MaxArgs: -1},
	"AVERAGEA":   {Name: "AVERAGEA", MinArgs: 1, MaxArgs: -1},
	"COUNT":      {Name: "COUNT", MinArgs: 1, MaxArgs: -1},
	"COUNTA":     {Name: "COUNTA", MinArgs: 1, MaxArgs: -1},
	"COUNTBLANK": {Name: "COUNTBLANK", MinArgs: 1, MaxArgs: 1},
	"MAX":        {Name: "MAX", MinArgs: 1, MaxArgs: -1},
	"MIN":        {Name: "MIN", MinArgs: 1, MaxArgs: -1},
	"MEDIAN":     {Name: "MEDIAN", MinArgs: 1, MaxArgs: -1},
	"MODE":       {Name: "MODE", MinArgs: 1, MaxArgs: -1},

	// criteria aggregates
	"MINIFS":     {Name: "MINIFS", MinArgs: 3, MaxArgs: -1, ArgStep: 2},
	"MAXIFS":     {Name: "MAXIFS", MinArgs: 3, MaxArgs: -1, ArgStep: 2},
	"SUMIFS":     {Name: "SUMIFS", MinArgs: 3, MaxArgs: -1, ArgStep: 2},
	"AVERAGEIFS": {Name: "AVERAGEIFS", MinArgs: 3, MaxArgs: -1, ArgStep: 2},
	"COUNTIFS":   {Name: "COUNTIFS", MinArgs: 2, MaxArgs: -1, ArgStep: 2},
	"SUMIF":      {Name: "SUMIF", MinArgs: 2, MaxArgs: 3},
	"AVERAGEIF":  {Name: "AVERAGEIF", MinArgs: 2, MaxArgs: 3},
	"COUNTIF":    {Name: "COUNTIF", MinArgs: 2, MaxArgs: 2},

	// logical
	"IF":  {Name: "IF", MinArgs: 2, MaxArgs: 3},
	"AND": {Name: "AND", MinArgs: 1, MaxArgs: -1},
	"OR":  {Name: "OR", MinArgs: 1, MaxArgs: -1},
	"NOT": {Name: "NOT", MinArgs: 1, MaxArgs: 1},

	// text
	"CONCATENATE": {Name: "CONCATENATE", MinArgs: 1, MaxArgs: -1},
	"LEN":         {Name: "LEN", MinArgs: 1, MaxArgs: 1},
	"UPPER":       {Name: "UPPER", MinArgs: 1, MaxArgs: 1},
	"LOWER":       {Name: "LOWER", MinArgs: 1, MaxArgs: 1},
	"TRIM":        {Name: "TRIM", MinArgs: 1, MaxArgs: 1},

	// math
	"ABS":     {Name: "ABS", MinArgs: 1, MaxArgs: 1},
	"INT":     {Name: "INT", MinArgs: 1, MaxArgs: 1},
	"ROUND":   {Name: "ROUND", MinArgs: 1, MaxArgs: 2},
	"FLOOR":   {Name: "FLOOR", MinArgs: 1, MaxArgs: 2},
	"CEILING": {Name: "CEILING", MinArgs: 1, MaxArgs: 2},
	"SQRT":    {Name: "SQRT", MinArgs: 1, MaxArgs: 1},
	"POWER":   {Name: "POWER", MinArgs: 2, MaxArgs: 2},
	"MOD":     {Name: "MOD", MinArgs: 2, MaxArgs: 2},
	"PI":      {Name: "PI", MinArgs: 0, MaxArgs: 0},

	// volatile
	"NOW":   {Name: "NOW", MinArgs: 0, MaxArgs: 0, Volatile: true},
	"TODAY": {Name: "TODAY", MinArgs: 0, MaxArgs: 0, Volatile: true},
	"RAND":  {Name: "RAND", MinArgs: 0, MaxArgs: 0, Volatile: true},
}

// BuiltInFunctions contains all spreadsheet built-in functions
type BuiltInFunctions struct {
	clock Clock
	rng   RandomGenerator
}

// NewDefaultBuiltInFunctions creates a BuiltInFunctions with default
// implementations
func NewDefaultBuiltInFunctions() *BuiltInFunctions {
	return NewBuiltInFunctions(&WallClock{}, &DefaultRandomGenerator{})
}

// NewBuiltInFunctions creates a BuiltInFunctions with the given time and
// random sources.
func NewBuiltInFunctions(clock Clock, rng RandomGenerator) *BuiltInFunctions {
	return &BuiltInFunctions{clock: clock, rng: rng}
}

// Lookup finds the contract of a function by name, ignoring case and the
// _xlfn. prefix.
func (bf *BuiltInFunctions) Lookup(name string) (FunctionSpec, bool) {
	spec, ok := functionSpecs[normalizeFunctionName(name)]
	return spec, ok
}

// Names returns every supported function name in sorted order.
func (bf *BuiltInFunctions) Names() []string {
	names := make([]string, 0, len(functionSpecs))
	for name := range functionSpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes a built-in function by name with the given arguments. The
// arity was checked when the formula was parsed; it is checked again here
// for direct callers.
func (bf *BuiltInFunctions) Call(c *CallContext, name string, args ...Operand) Value {
	spec, ok := bf.Lookup(name)
	if !ok {
		return NewError(ErrorCodeName)
	}
	if !spec.accepts(len(args)) {
		return NewError(ErrorCodeValue)
	}

	switch spec.Name {
	case "SUM":
		return bf.SUM(c, args...)
	case "AVERAGE":
		return bf.AVERAGE(c, args...)
	case "AVERAGEA":
		return bf.AVERAGEA(c, args...)
	case "COUNT":
		return bf.COUNT(c, args...)
	case "COUNTA":
		return bf.COUNTA(c, args...)
	case "COUNTBLANK":
		return bf.COUNTBLANK(c, args...)
	case "MAX":
		return bf.MAX(c, args...)
	case "MIN":
		return bf.MIN(c, args...)
	case "MEDIAN":
		return bf.MEDIAN(c, args...)
	case "MODE":
		return bf.MODE(c, args...)
	case "MINIFS":
		return bf.MINIFS(c, args...)
	case "MAXIFS":
		return bf.MAXIFS(c, args...)
	case "SUMIFS":
		return bf.SUMIFS(c, args...)
	case "AVERAGEIFS":
		return bf.AVERAGEIFS(c, args...)
	case "COUNTIFS":
		return bf.COUNTIFS(c, args...)
	case "SUMIF":
		return bf.SUMIF(c, args...)
	case "AVERAGEIF":
		return bf.AVERAGEIF(c, args...)
	case "COUNTIF":
		return bf.COUNTIF(c, args...)
	case "IF":
		return bf.IF(c, args...)
	case "AND":
		return bf.AND(c, args...)
	case "OR":
		return bf.OR(c, args...)
	case "NOT":
		return bf.NOT(c, args...)
	case "CONCATENATE":
		return bf.CONCATENATE(c, args...)
	case "LEN":
		return bf.LEN(c, args...)
	case "UPPER":
		return bf.UPPER(c, args...)
	case "LOWER":
		return bf.LOWER(c, args...)
	case "TRIM":
		return bf.TRIM(c, args...)
	case "ABS":
		return bf.ABS(c, args...)
	case "INT":
		return bf.INT(c, args...)
	case "ROUND":
		return bf.ROUND(c, args...)
	case "FLOOR":
		return bf.FLOOR(c, args...)
	case "CEILING":
		return bf.CEILING(c, args...)
	case "SQRT":
		return bf.SQRT(c, args...)
	case "POWER":
		return bf.POWER(c, args...)
	case "MOD":
		return bf.MOD(c, args...)
	case "PI":
		return bf.PI(c, args...)
	case "NOW":
		return bf.NOW(c, args...)
	case "TODAY":
		return bf.TODAY(c, args...)
	case "RAND":
		return bf.RAND(c, args...)
	default:
		return NewError(ErrorCodeName)
	}
}

// IsVolatileFunction returns true if the function should trigger
// recalculation on every Calculate() call
func IsVolatileFunction(name string) bool {
	spec, ok := functionSpecs[normalizeFunctionName(name)]
	return ok && spec.Volatile
}

// numberArg reduces an argument to a number.
func numberArg(c *CallContext, arg Operand) (float64, Value) {
	v := c.Scalar(arg)
	if v.IsError() {
		return 0, v
	}
	n, code := v.ToNumber()
	if code != ErrorCodeNone {
		return 0, NewError(code)
	}
	return n, Blank
}

// textArg reduces an argument to text.
func textArg(c *CallContext, arg Operand) (string, Value) {
	v := c.Scalar(arg)
	if v.IsError() {
		return "", v
	}
	s, _ := v.ToText()
	return s, Blank
}

// collectNumbers flattens aggregate arguments. Inside references only
// numbers count; direct arguments are coerced and must be numeric.
// The first error encountered wins.
func collectNumbers(args []Operand) ([]float64, Value) {
	var nums []float64
	for _, arg := range args {
		if arg.IsArea() {
			for v := range arg.Area.Values() {
				if v.IsError() {
					return nil, v
				}
				if v.IsNumber() {
					nums = append(nums, v.Number())
				}
			}
			continue
		}
		v := arg.Value
		if v.IsError() {
			return nil, v
		}
		n, code := v.ToNumber()
		if code != ErrorCodeNone {
			return nil, NewError(code)
		}
		nums = append(nums, n)
	}
	return nums, Blank
}
