package formula

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

func (bf *BuiltInFunctions) ABS(c *CallContext, args ...Operand) Value {
	n, errVal := numberArg(c, args[0])
	if errVal.IsError() {
		return errVal
	}
	return NewNumber(math.Abs(n))
}

func (bf *BuiltInFunctions) INT(c *CallContext, args ...Operand) Value {
	n, errVal := numberArg(c, args[0])
	if errVal.IsError() {
		return errVal
	}
	return NewNumber(math.Floor(n))
}

const maxRoundPlaces = 330

// ROUND rounds half away from zero on the shortest decimal form of the
// number, so 2.345 rounds to 2.35. Negative places round to the left of
// the decimal point.
func (bf *BuiltInFunctions) ROUND(c *CallContext, args ...Operand) Value {
	n, errVal := numberArg(c, args[0])
	if errVal.IsError() {
		return errVal
	}
	places := 0.0
	if len(args) == 2 {
		if places, errVal = numberArg(c, args[1]); errVal.IsError() {
			return errVal
		}
	}
	places = max(-maxRoundPlaces, min(maxRoundPlaces, math.Trunc(places)))
	f, _ := decimal.NewFromFloat(n).Round(int32(places)).Float64()
	return checkNumber(f)
}

// significanceArgs reads FLOOR/CEILING arguments, significance defaulting
// to 1.
func significanceArgs(c *CallContext, args []Operand) (float64, float64, Value) {
	n, errVal := numberArg(c, args[0])
	if errVal.IsError() {
		return 0, 0, errVal
	}
	sig := 1.0
	if len(args) == 2 {
		if sig, errVal = numberArg(c, args[1]); errVal.IsError() {
			return 0, 0, errVal
		}
	}
	if n > 0 && sig < 0 {
		return 0, 0, NewError(ErrorCodeNum)
	}
	return n, sig, Blank
}

func (bf *BuiltInFunctions) FLOOR(c *CallContext, args ...Operand) Value {
	n, sig, errVal := significanceArgs(c, args)
	if errVal.IsError() {
		return errVal
	}
	if sig == 0 {
		if n == 0 {
			return NewNumber(0)
		}
		return NewError(ErrorCodeDiv0)
	}
	return checkNumber(math.Floor(n/sig) * sig)
}

func (bf *BuiltInFunctions) CEILING(c *CallContext, args ...Operand) Value {
	n, sig, errVal := significanceArgs(c, args)
	if errVal.IsError() {
		return errVal
	}
	if sig == 0 {
		return NewNumber(0)
	}
	return checkNumber(math.Ceil(n/sig) * sig)
}

func (bf *BuiltInFunctions) SQRT(c *CallContext, args ...Operand) Value {
	n, errVal := numberArg(c, args[0])
	if errVal.IsError() {
		return errVal
	}
	if n < 0 {
		return NewError(ErrorCodeNum)
	}
	return NewNumber(math.Sqrt(n))
}

func (bf *BuiltInFunctions) POWER(c *CallContext, args ...Operand) Value {
	base, errVal := numberArg(c, args[0])
	if errVal.IsError() {
		return errVal
	}
	exp, errVal := numberArg(c, args[1])
	if errVal.IsError() {
		return errVal
	}
	return arithmetic(OpPow, base, exp)
}

// MOD takes the sign of the divisor.
func (bf *BuiltInFunctions) MOD(c *CallContext, args ...Operand) Value {
	dividend, errVal := numberArg(c, args[0])
	if errVal.IsError() {
		return errVal
	}
	divisor, errVal := numberArg(c, args[1])
	if errVal.IsError() {
		return errVal
	}
	if divisor == 0 {
		return NewError(ErrorCodeDiv0)
	}
	return checkNumber(dividend - divisor*math.Floor(dividend/divisor))
}

func (bf *BuiltInFunctions) PI(c *CallContext, args ...Operand) Value {
	return NewNumber(math.Pi)
}

// Excel date/time constants
const (
	// serial day 0 is December 30, 1899 00:00:00 UTC
	excelEpochMs = -2209161600000
	msPerDay     = 86400000
)

// serialDate converts a time into an Excel serial date in t's location.
func serialDate(t time.Time) float64 {
	_, offset := t.Zone()
	local := t.UnixMilli() + int64(offset)*1000
	return float64(local-excelEpochMs) / msPerDay
}

func (bf *BuiltInFunctions) NOW(c *CallContext, args ...Operand) Value {
	return NewNumber(serialDate(bf.clock.Now()))
}

func (bf *BuiltInFunctions) TODAY(c *CallContext, args ...Operand) Value {
	return NewNumber(math.Floor(serialDate(bf.clock.Now())))
}

func (bf *BuiltInFunctions) RAND(c *CallContext, args ...Operand) Value {
	return NewNumber(bf.rng.Float64())
}
