package formula

// criteriaSet pairs criteria ranges with their compiled conditions.
type criteriaSet struct {
	ranges   []*Area
	criteria []Criterion
}

// parseCriteriaPairs reads (range, criterion) pairs. Every range must have
// the shape of like, when like is given.
func parseCriteriaPairs(c *CallContext, like *Area, pairs []Operand) (*criteriaSet, Value) {
	set := &criteriaSet{}
	for i := 0; i+1 < len(pairs); i += 2 {
		rng, crit := pairs[i], pairs[i+1]
		if !rng.IsArea() {
			if rng.Value.IsError() {
				return nil, rng.Value
			}
			return nil, NewError(ErrorCodeValue)
		}
		if like == nil {
			like = rng.Area
		}
		if !rng.Area.SameShape(like) {
			return nil, NewError(ErrorCodeValue)
		}
		v := c.Scalar(crit)
		if v.IsError() {
			return nil, v
		}
		set.ranges = append(set.ranges, rng.Area)
		set.criteria = append(set.criteria, ParseCriterion(v))
	}
	return set, Blank
}

// matches reports whether the flattened position i passes every criterion.
func (s *criteriaSet) matches(i int) bool {
	for k, rng := range s.ranges {
		if !s.criteria[k].Matches(rng.Index(i)) {
			return false
		}
	}
	return true
}

// filteredNumbers collects the numbers of values at positions passing set.
// Errors at matching positions propagate.
func filteredNumbers(values *Area, set *criteriaSet) ([]float64, Value) {
	var nums []float64
	for i := 0; i < values.Size(); i++ {
		if !set.matches(i) {
			continue
		}
		v := values.Index(i)
		if v.IsError() {
			return nil, v
		}
		if v.IsNumber() {
			nums = append(nums, v.Number())
		}
	}
	return nums, Blank
}

// ifsAggregate runs MINIFS-style functions: the first argument is the
// value range, followed by (criteria range, criterion) pairs.
func ifsAggregate(c *CallContext, args []Operand, fold func([]float64) Value) Value {
	if !args[0].IsArea() {
		if args[0].Value.IsError() {
			return args[0].Value
		}
		return NewError(ErrorCodeValue)
	}
	values := args[0].Area
	set, errVal := parseCriteriaPairs(c, values, args[1:])
	if errVal.IsError() {
		return errVal
	}
	nums, errVal := filteredNumbers(values, set)
	if errVal.IsError() {
		return errVal
	}
	return fold(nums)
}

func foldMin(nums []float64) Value {
	if len(nums) == 0 {
		return NewNumber(0)
	}
	best := nums[0]
	for _, n := range nums[1:] {
		best = min(best, n)
	}
	return NewNumber(best)
}

func foldMax(nums []float64) Value {
	if len(nums) == 0 {
		return NewNumber(0)
	}
	best := nums[0]
	for _, n := range nums[1:] {
		best = max(best, n)
	}
	return NewNumber(best)
}

func foldSum(nums []float64) Value {
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return checkNumber(sum)
}

func foldAverage(nums []float64) Value {
	if len(nums) == 0 {
		return NewError(ErrorCodeDiv0)
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return checkNumber(sum / float64(len(nums)))
}

func (bf *BuiltInFunctions) MINIFS(c *CallContext, args ...Operand) Value {
	return ifsAggregate(c, args, foldMin)
}

func (bf *BuiltInFunctions) MAXIFS(c *CallContext, args ...Operand) Value {
	return ifsAggregate(c, args, foldMax)
}

func (bf *BuiltInFunctions) SUMIFS(c *CallContext, args ...Operand) Value {
	return ifsAggregate(c, args, foldSum)
}

func (bf *BuiltInFunctions) AVERAGEIFS(c *CallContext, args ...Operand) Value {
	return ifsAggregate(c, args, foldAverage)
}

func (bf *BuiltInFunctions) COUNTIFS(c *CallContext, args ...Operand) Value {
	set, errVal := parseCriteriaPairs(c, nil, args)
	if errVal.IsError() {
		return errVal
	}
	count := 0
	for i := 0; i < set.ranges[0].Size(); i++ {
		if set.matches(i) {
			count++
		}
	}
	return NewNumber(float64(count))
}

// ifAggregate runs SUMIF-style functions. The optional value range is
// resized to the shape of the criteria range from its top-left cell.
func ifAggregate(c *CallContext, args []Operand, fold func([]float64) Value) Value {
	set, errVal := parseCriteriaPairs(c, nil, args[:2])
	if errVal.IsError() {
		return errVal
	}
	values := set.ranges[0]
	if len(args) == 3 {
		if !args[2].IsArea() {
			if args[2].Value.IsError() {
				return args[2].Value
			}
			return NewError(ErrorCodeValue)
		}
		values = resizeLike(args[2].Area, values)
	}
	nums, errVal := filteredNumbers(values, set)
	if errVal.IsError() {
		return errVal
	}
	return fold(nums)
}

// resizeLike returns the area with a's top-left corner and like's shape.
func resizeLike(a, like *Area) *Area {
	return &Area{
		FirstSheet: a.FirstSheet,
		LastSheet:  a.FirstSheet + like.Sheets() - 1,
		FirstRow:   a.FirstRow,
		FirstCol:   a.FirstCol,
		LastRow:    a.FirstRow + like.Rows() - 1,
		LastCol:    a.FirstCol + like.Cols() - 1,
		read:       a.read,
	}
}

func (bf *BuiltInFunctions) SUMIF(c *CallContext, args ...Operand) Value {
	return ifAggregate(c, args, foldSum)
}

func (bf *BuiltInFunctions) AVERAGEIF(c *CallContext, args ...Operand) Value {
	return ifAggregate(c, args, foldAverage)
}

func (bf *BuiltInFunctions) COUNTIF(c *CallContext, args ...Operand) Value {
	return bf.COUNTIFS(c, args...)
}
