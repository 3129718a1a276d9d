package formula

import (
	"sort"
)

func (bf *BuiltInFunctions) SUM(c *CallContext, args ...Operand) Value {
	nums, errVal := collectNumbers(args)
	if errVal.IsError() {
		return errVal
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return checkNumber(sum)
}

func (bf *BuiltInFunctions) AVERAGE(c *CallContext, args ...Operand) Value {
	nums, errVal := collectNumbers(args)
	if errVal.IsError() {
		return errVal
	}
	if len(nums) == 0 {
		return NewError(ErrorCodeDiv0)
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return checkNumber(sum / float64(len(nums)))
}

// AVERAGEA counts text in references as 0 and booleans as 1 or 0.
func (bf *BuiltInFunctions) AVERAGEA(c *CallContext, args ...Operand) Value {
	sum, count := 0.0, 0
	for _, arg := range args {
		if !arg.IsArea() {
			nums, errVal := collectNumbers([]Operand{arg})
			if errVal.IsError() {
				return errVal
			}
			sum += nums[0]
			count++
			continue
		}
		for v := range arg.Area.Values() {
			switch v.Kind() {
			case KindError:
				return v
			case KindNumber, KindBoolean:
				sum += v.num
				count++
			case KindText:
				count++
			}
		}
	}
	if count == 0 {
		return NewError(ErrorCodeDiv0)
	}
	return checkNumber(sum / float64(count))
}

// COUNT never fails: errors and text are simply not counted.
func (bf *BuiltInFunctions) COUNT(c *CallContext, args ...Operand) Value {
	count := 0
	for _, arg := range args {
		if arg.IsArea() {
			for v := range arg.Area.Values() {
				if v.IsNumber() {
					count++
				}
			}
			continue
		}
		switch arg.Value.Kind() {
		case KindNumber, KindBoolean:
			count++
		case KindText:
			if _, ok := parseNumber(arg.Value.Text()); ok {
				count++
			}
		}
	}
	return NewNumber(float64(count))
}

func (bf *BuiltInFunctions) COUNTA(c *CallContext, args ...Operand) Value {
	count := 0
	for _, arg := range args {
		if !arg.IsArea() {
			count++
			continue
		}
		for v := range arg.Area.Values() {
			if !v.IsBlank() {
				count++
			}
		}
	}
	return NewNumber(float64(count))
}

// COUNTBLANK counts empty cells and cells holding empty text.
func (bf *BuiltInFunctions) COUNTBLANK(c *CallContext, args ...Operand) Value {
	if !args[0].IsArea() {
		return NewError(ErrorCodeValue)
	}
	count := 0
	for v := range args[0].Area.Values() {
		if v.IsBlank() || (v.IsText() && v.Text() == "") {
			count++
		}
	}
	return NewNumber(float64(count))
}

func (bf *BuiltInFunctions) MAX(c *CallContext, args ...Operand) Value {
	nums, errVal := collectNumbers(args)
	if errVal.IsError() {
		return errVal
	}
	if len(nums) == 0 {
		return NewNumber(0)
	}
	best := nums[0]
	for _, n := range nums[1:] {
		best = max(best, n)
	}
	return NewNumber(best)
}

func (bf *BuiltInFunctions) MIN(c *CallContext, args ...Operand) Value {
	nums, errVal := collectNumbers(args)
	if errVal.IsError() {
		return errVal
	}
	if len(nums) == 0 {
		return NewNumber(0)
	}
	best := nums[0]
	for _, n := range nums[1:] {
		best = min(best, n)
	}
	return NewNumber(best)
}

func (bf *BuiltInFunctions) MEDIAN(c *CallContext, args ...Operand) Value {
	nums, errVal := collectNumbers(args)
	if errVal.IsError() {
		return errVal
	}
	if len(nums) == 0 {
		return NewError(ErrorCodeNum)
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 0 {
		return checkNumber((nums[mid-1] + nums[mid]) / 2)
	}
	return NewNumber(nums[mid])
}

// MODE returns the most frequent number. Non-numbers inside areas are
// skipped, but a single-cell reference or a direct argument must be a
// number.
func (bf *BuiltInFunctions) MODE(c *CallContext, args ...Operand) Value {
	var values []float64
	for _, arg := range args {
		if arg.IsArea() && !arg.Area.IsCell() {
			for v := range arg.Area.Values() {
				if v.IsError() {
					return v
				}
				if v.IsNumber() {
					values = append(values, v.Number())
				}
			}
			continue
		}

		var cells []Value
		if arg.IsArea() {
			// a 3-D cell reference yields one value per sheet
			for v := range arg.Area.Values() {
				cells = append(cells, v)
			}
		} else {
			cells = []Value{arg.Value}
		}
		for _, v := range cells {
			if v.IsError() {
				return v
			}
			if !v.IsNumber() {
				return NewError(ErrorCodeValue)
			}
			values = append(values, v.Number())
		}
	}
	return Mode(values)
}

// Mode finds the value with the strictly highest number of occurrences,
// the first one in input order on ties. Fewer than two values or no
// repeated value is #N/A.
func Mode(values []float64) Value {
	if len(values) < 2 {
		return NewError(ErrorCodeNA)
	}
	counts := make([]int, len(values))
	for i := range counts {
		counts[i] = 1
	}
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			if values[i] == values[j] {
				counts[i]++
			}
		}
	}
	maxValue, maxCount := 0.0, 0
	for i, n := range counts {
		if n > maxCount {
			maxValue, maxCount = values[i], n
		}
	}
	if maxCount > 1 {
		return NewNumber(maxValue)
	}
	return NewError(ErrorCodeNA)
}
