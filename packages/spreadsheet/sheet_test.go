package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// SpreadsheetTestCase chains operations on a fresh workbook with a single
// Sheet1. The first unexpected error stops the chain.
type SpreadsheetTestCase struct {
	t           *testing.T
	spreadsheet *Spreadsheet
	err         error
}

func NewSpreadsheetTestCase(t *testing.T, options ...Option) *SpreadsheetTestCase {
	t.Helper()
	tc := &SpreadsheetTestCase{t: t, spreadsheet: NewSpreadsheet(options...)}
	require.NoError(t, tc.spreadsheet.AddWorksheet("Sheet1"))
	return tc
}

func (tc *SpreadsheetTestCase) do(op string, fn func() error) *SpreadsheetTestCase {
	tc.t.Helper()
	if tc.err != nil {
		return tc
	}
	tc.err = fn()
	assert.NoError(tc.t, tc.err, op)
	return tc
}

// expect runs fn and checks that it fails with code. The chain goes on.
func (tc *SpreadsheetTestCase) expect(code AppErrorCode, op string, fn func() error) *SpreadsheetTestCase {
	tc.t.Helper()
	if tc.err != nil {
		return tc
	}
	err := fn()
	if assert.Error(tc.t, err, op) {
		assert.Equal(tc.t, code, ErrorCode(err), "%s: %v", op, err)
	}
	return tc
}

func (tc *SpreadsheetTestCase) Set(address string, value Primitive) *SpreadsheetTestCase {
	tc.t.Helper()
	return tc.do("Set "+address, func() error { return tc.spreadsheet.Set(address, value) })
}

func (tc *SpreadsheetTestCase) SetFails(code AppErrorCode, address string, value Primitive) *SpreadsheetTestCase {
	tc.t.Helper()
	return tc.expect(code, "Set "+address, func() error { return tc.spreadsheet.Set(address, value) })
}

func (tc *SpreadsheetTestCase) SetShared(rng, text string) *SpreadsheetTestCase {
	tc.t.Helper()
	return tc.do("SetSharedFormula "+rng, func() error { return tc.spreadsheet.SetSharedFormula(rng, text) })
}

func (tc *SpreadsheetTestCase) SetArray(rng, text string) *SpreadsheetTestCase {
	tc.t.Helper()
	return tc.do("SetArrayFormula "+rng, func() error { return tc.spreadsheet.SetArrayFormula(rng, text) })
}

func (tc *SpreadsheetTestCase) Remove(address string) *SpreadsheetTestCase {
	tc.t.Helper()
	return tc.do("Remove "+address, func() error { return tc.spreadsheet.Remove(address) })
}

func (tc *SpreadsheetTestCase) AddWorksheet(name string) *SpreadsheetTestCase {
	tc.t.Helper()
	return tc.do("AddWorksheet "+name, func() error { return tc.spreadsheet.AddWorksheet(name) })
}

func (tc *SpreadsheetTestCase) RemoveWorksheet(name string) *SpreadsheetTestCase {
	tc.t.Helper()
	return tc.do("RemoveWorksheet "+name, func() error { return tc.spreadsheet.RemoveWorksheet(name) })
}

func (tc *SpreadsheetTestCase) RenameWorksheet(oldName, newName string) *SpreadsheetTestCase {
	tc.t.Helper()
	return tc.do("RenameWorksheet "+oldName, func() error { return tc.spreadsheet.RenameWorksheet(oldName, newName) })
}

func (tc *SpreadsheetTestCase) DefineName(name, text string) *SpreadsheetTestCase {
	tc.t.Helper()
	return tc.do("DefineName "+name, func() error { return tc.spreadsheet.DefineName(name, text) })
}

func (tc *SpreadsheetTestCase) RemoveName(name string) *SpreadsheetTestCase {
	tc.t.Helper()
	return tc.do("RemoveName "+name, func() error { return tc.spreadsheet.RemoveName(name) })
}

func (tc *SpreadsheetTestCase) Run() *SpreadsheetTestCase {
	tc.t.Helper()
	return tc.do("Calculate", tc.spreadsheet.Calculate)
}

// AssertCellEq compares a cell with a Go value: numbers, strings, bools,
// formula.ErrorCode for error values and nil for blank cells.
func (tc *SpreadsheetTestCase) AssertCellEq(address string, expected any) *SpreadsheetTestCase {
	tc.t.Helper()
	if tc.err != nil {
		return tc
	}
	actual, err := tc.spreadsheet.Get(address)
	if !assert.NoError(tc.t, err, "Get %s", address) {
		return tc
	}

	switch exp := expected.(type) {
	case float64:
		if assert.Equal(tc.t, formula.KindNumber, actual.Kind(), "%s = %s", address, actual) {
			assert.InDelta(tc.t, exp, actual.Number(), 1e-10, address)
		}
	case int:
		if assert.Equal(tc.t, formula.KindNumber, actual.Kind(), "%s = %s", address, actual) {
			assert.InDelta(tc.t, float64(exp), actual.Number(), 1e-10, address)
		}
	case string:
		assert.True(tc.t, formula.NewText(exp).Equal(actual) && actual.IsText(), "%s = %s, want %q", address, actual, exp)
	case bool:
		assert.True(tc.t, formula.NewBoolean(exp).Equal(actual), "%s = %s, want %v", address, actual, exp)
	case formula.ErrorCode:
		assert.True(tc.t, actual.IsError() && actual.Code() == exp, "%s = %s, want %s", address, actual, exp)
	case nil:
		assert.True(tc.t, actual.IsBlank(), "%s = %s, want blank", address, actual)
	default:
		tc.t.Fatalf("unsupported expectation %T", expected)
	}
	return tc
}

func (tc *SpreadsheetTestCase) AssertFormula(address, expected string) *SpreadsheetTestCase {
	tc.t.Helper()
	if tc.err != nil {
		return tc
	}
	text, err := tc.spreadsheet.Formula(address)
	if assert.NoError(tc.t, err, "Formula %s", address) {
		assert.Equal(tc.t, expected, text, address)
	}
	return tc
}

func (tc *SpreadsheetTestCase) AssertWorksheetExists(name string, shouldExist bool) *SpreadsheetTestCase {
	tc.t.Helper()
	assert.Equal(tc.t, shouldExist, tc.spreadsheet.DoesWorksheetExist(name), name)
	return tc
}

func (tc *SpreadsheetTestCase) ExpectAppError(code AppErrorCode, op string, fn func(s *Spreadsheet) error) *SpreadsheetTestCase {
	tc.t.Helper()
	return tc.expect(code, op, func() error { return fn(tc.spreadsheet) })
}

func (tc *SpreadsheetTestCase) End() {}

func TestFormulaCells(t *testing.T) {
	NewSpreadsheetTestCase(t).
		Set("Sheet1!A1", "=1+2").
		Set("A2", 10).
		Set("Sheet1!A3", "=A2*A1").
		Set("A4", `="x"&A2`).
		Set("A5", "=A2>5").
		Set("A6", "=SUM(A1:A3)").
		Run().
		AssertCellEq("A1", 3).
		AssertCellEq("A3", 30).
		AssertCellEq("A4", "x10").
		AssertCellEq("A5", true).
		AssertCellEq("A6", 43).
		AssertFormula("A6", "=SUM(A1:A3)").
		AssertFormula("A2", "").
		End()

	t.Run("formulas are not calculated until Run", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			Set("A1", "=2*3").
			AssertCellEq("A1", nil).
			Run().
			AssertCellEq("A1", 6).
			End()
	})

	t.Run("a lone equals sign is text", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			Set("A1", "=").
			AssertCellEq("A1", "=").
			End()
	})

	t.Run("formulas that do not parse are rejected", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			Set("A1", 5).
			SetFails(InvalidArgument, "A1", "=SUM(").
			SetFails(InvalidArgument, "A1", "=BAD()").
			SetFails(InvalidArgument, "A1", "=Missing+1").
			SetFails(InvalidArgument, "A1", "=Nope!A1").
			SetFails(InvalidArgument, "A1", `="open`).
			AssertCellEq("A1", 5).
			AssertFormula("A1", "").
			End()
	})
}

func TestCellValues(t *testing.T) {
	NewSpreadsheetTestCase(t).
		Set("A1", 1.5).
		Set("A2", int64(-2)).
		Set("A3", true).
		Set("A4", "text").
		Set("A5", "").
		Set("A6", formula.ErrorCodeNA).
		Set("A7", formula.NewNumber(7)).
		Set("A8", 1).
		Set("A8", nil).
		AssertCellEq("A1", 1.5).
		AssertCellEq("A2", -2).
		AssertCellEq("A3", true).
		AssertCellEq("A4", "text").
		AssertCellEq("A5", "").
		AssertCellEq("A6", formula.ErrorCodeNA).
		AssertCellEq("A7", 7).
		AssertCellEq("A8", nil).
		AssertCellEq("Z99", nil).
		SetFails(InvalidArgument, "A9", struct{}{}).
		SetFails(InvalidArgument, "A9", formula.ErrorCodeNone).
		End()

	t.Run("addresses", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			AddWorksheet("My Data").
			Set("'My Data'!B2", 4).
			AssertCellEq("'My Data'!B2", 4).
			ExpectAppError(InvalidArgument, "bad column", func(s *Spreadsheet) error {
				_, err := s.Get("ZZZZ1")
				return err
			}).
			ExpectAppError(InvalidArgument, "range", func(s *Spreadsheet) error {
				_, err := s.Get("A1:B2")
				return err
			}).
			ExpectAppError(InvalidArgument, "unknown sheet", func(s *Spreadsheet) error {
				_, err := s.Get("Other!A1")
				return err
			}).
			End()
	})

	t.Run("workbooks without sheets have no default address", func(t *testing.T) {
		s := NewSpreadsheet()
		err := s.Set("A1", 1)
		assert.Equal(t, FailedPrecondition, ErrorCode(err))
	})
}

func TestRecalculation(t *testing.T) {
	t.Run("dependency chain", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			Set("A1", 1).
			Set("A2", "=A1+1").
			Set("A3", "=A2+1").
			Set("A4", "=A3+1").
			Set("A5", "=A4+1").
			Run().
			AssertCellEq("A5", 5).
			Set("A1", 10).
			Run().
			AssertCellEq("A2", 11).
			AssertCellEq("A5", 14).
			End()
	})

	t.Run("ranges", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			Set("A1", 1).
			Set("A2", "=A1*2").
			Set("A3", 3).
			Set("B1", "=SUM(A1:A3)").
			Run().
			AssertCellEq("B1", 6).
			Set("A1", 2).
			Run().
			AssertCellEq("A2", 4).
			AssertCellEq("B1", 9).
			End()
	})

	t.Run("removing a cell recalculates its readers", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			Set("A1", 5).
			Set("B1", "=A1*2").
			Run().
			AssertCellEq("B1", 10).
			Remove("A1").
			Run().
			AssertCellEq("A1", nil).
			AssertCellEq("B1", 0).
			End()
	})

	t.Run("replacing a formula", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			Set("A1", 5).
			Set("B1", "=A1*2").
			Set("C1", "=B1+1").
			Run().
			Set("B1", "=A1*3").
			Run().
			AssertCellEq("C1", 16).
			Set("B1", 1).
			Run().
			AssertCellEq("C1", 2).
			End()
	})

	t.Run("errors stay values", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			Set("A1", "=1/0").
			Set("A2", "=A1+1").
			Set("A3", "=SQRT(-1)").
			Set("A4", `=ABS("text")`).
			Set("A5", "=COUNT(A1:A4)").
			Run().
			AssertCellEq("A1", formula.ErrorCodeDiv0).
			AssertCellEq("A2", formula.ErrorCodeDiv0).
			AssertCellEq("A3", formula.ErrorCodeNum).
			AssertCellEq("A4", formula.ErrorCodeValue).
			AssertCellEq("A5", 0).
			End()
	})
}

func TestCircularReferences(t *testing.T) {
	NewSpreadsheetTestCase(t).
		Set("A1", "=B1+1").
		Set("B1", "=A1+1").
		Set("C1", "=A1+1").
		Set("D1", "=COUNT(A1:B1)").
		Run().
		AssertCellEq("A1", formula.ErrorCodeRef).
		AssertCellEq("B1", formula.ErrorCodeRef).
		AssertCellEq("C1", formula.ErrorCodeRef).
		AssertCellEq("D1", 0).
		End()

	t.Run("through a range", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			Set("A1", 1).
			Set("A2", 2).
			Set("A3", "=SUM(A1:A3)").
			Run().
			AssertCellEq("A3", formula.ErrorCodeRef).
			End()
	})

	t.Run("three cells", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			Set("A1", "=C1").
			Set("B1", "=A1").
			Set("C1", "=B1").
			Run().
			AssertCellEq("A1", formula.ErrorCodeRef).
			AssertCellEq("B1", formula.ErrorCodeRef).
			AssertCellEq("C1", formula.ErrorCodeRef).
			End()
	})

	t.Run("breaking the cycle", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			Set("A1", "=B1+1").
			Set("B1", "=A1+1").
			Run().
			Set("B1", 1).
			Run().
			AssertCellEq("A1", 2).
			End()
	})
}

func TestWorksheets(t *testing.T) {
	NewSpreadsheetTestCase(t).
		AddWorksheet("Sheet2").
		Set("Sheet2!A1", 5).
		Set("Sheet1!A1", "=Sheet2!A1*2").
		Run().
		AssertCellEq("A1", 10).
		Set("Sheet2!A1", 6).
		Run().
		AssertCellEq("A1", 12).
		RenameWorksheet("Sheet2", "Data").
		Run().
		AssertCellEq("A1", 12).
		AssertFormula("A1", "=Data!A1*2").
		AssertWorksheetExists("Sheet2", false).
		AssertWorksheetExists("data", true).
		RemoveWorksheet("Data").
		Run().
		AssertCellEq("A1", formula.ErrorCodeRef).
		AddWorksheet("Data").
		Set("Data!A1", 7).
		Run().
		AssertCellEq("A1", formula.ErrorCodeRef).
		ExpectAppError(AlreadyExists, "duplicate", func(s *Spreadsheet) error { return s.AddWorksheet("SHEET1") }).
		ExpectAppError(InvalidArgument, "empty", func(s *Spreadsheet) error { return s.AddWorksheet(" ") }).
		ExpectAppError(NotFound, "remove missing", func(s *Spreadsheet) error { return s.RemoveWorksheet("Nope") }).
		ExpectAppError(NotFound, "rename missing", func(s *Spreadsheet) error { return s.RenameWorksheet("Nope", "X") }).
		ExpectAppError(AlreadyExists, "rename onto", func(s *Spreadsheet) error { return s.RenameWorksheet("Sheet1", "Data") }).
		End()

	t.Run("3-D references", func(t *testing.T) {
		tc := NewSpreadsheetTestCase(t).
			AddWorksheet("Jan").
			AddWorksheet("Feb").
			AddWorksheet("Mar").
			Set("Jan!B2", 1).
			Set("Feb!B2", 2).
			Set("Mar!B2", 3).
			Set("A1", "=SUM(Jan:Mar!B2)").
			Run().
			AssertCellEq("A1", 6).
			Set("Feb!B2", 20).
			Run().
			AssertCellEq("A1", 24)
		assert.Equal(t, []string{"Sheet1", "Jan", "Feb", "Mar"}, tc.spreadsheet.ListWorksheets())
	})
}

func TestDefinedNames(t *testing.T) {
	NewSpreadsheetTestCase(t).
		Set("B1", 0.5).
		Set("C1", 1).
		Set("C2", 2).
		Set("C3", 3).
		DefineName("Rate", "=Sheet1!$B$1").
		DefineName("Values", "=Sheet1!$C$1:$C$3").
		DefineName("Alias", "=Rate").
		Set("A1", "=100*Rate").
		Set("A2", "=SUM(Values)").
		Set("A3", "=Alias*2").
		Run().
		AssertCellEq("A1", 50).
		AssertCellEq("A2", 6).
		AssertCellEq("A3", 1).
		Set("B1", 0.25).
		Set("C2", 20).
		Run().
		AssertCellEq("A1", 25).
		AssertCellEq("A2", 24).
		AssertCellEq("A3", 0.5).
		AssertFormula("A1", "=100*Rate").
		DefineName("Rate", "=Sheet1!$C$1").
		Run().
		AssertCellEq("A1", 100).
		RemoveName("Rate").
		Run().
		AssertCellEq("A1", formula.ErrorCodeName).
		AssertCellEq("A3", formula.ErrorCodeName).
		ExpectAppError(InvalidArgument, "cell-like name", func(s *Spreadsheet) error { return s.DefineName("A1", "=Sheet1!A1") }).
		ExpectAppError(InvalidArgument, "boolean name", func(s *Spreadsheet) error { return s.DefineName("true", "=Sheet1!A1") }).
		ExpectAppError(InvalidArgument, "not a reference", func(s *Spreadsheet) error { return s.DefineName("Sum", "=1+2") }).
		ExpectAppError(NotFound, "remove missing", func(s *Spreadsheet) error { return s.RemoveName("Nope") }).
		End()

	t.Run("cyclic names", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			DefineName("First", "=Sheet1!$A$1").
			DefineName("Second", "=First").
			DefineName("First", "=Second").
			Set("B1", "=First+1").
			Run().
			AssertCellEq("B1", formula.ErrorCodeRef).
			End()
	})

	t.Run("names are listed sorted", func(t *testing.T) {
		tc := NewSpreadsheetTestCase(t).
			DefineName("zeta", "=Sheet1!A1").
			DefineName("Alpha", "=Sheet1!A2")
		assert.Equal(t, []string{"Alpha", "zeta"}, tc.spreadsheet.ListNames())
	})
}

func TestSharedFormulas(t *testing.T) {
	NewSpreadsheetTestCase(t).
		Set("A1", 1).
		Set("A2", 2).
		Set("A3", 3).
		SetShared("B1:B3", "=A1*10+$A$1").
		Run().
		AssertCellEq("B1", 11).
		AssertCellEq("B2", 21).
		AssertCellEq("B3", 31).
		AssertFormula("B1", "=A1*10+$A$1").
		AssertFormula("B3", "=A3*10+$A$1").
		Set("A3", 4).
		Run().
		AssertCellEq("B3", 41).
		Set("B2", 7).
		Run().
		AssertCellEq("B2", 7).
		AssertCellEq("B3", 41).
		AssertFormula("B2", "").
		End()

	t.Run("members that leave the sheet reject the group", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			ExpectAppError(OutOfRange, "shared", func(s *Spreadsheet) error {
				return s.SetSharedFormula("A1048575:A1048576", "=B1048576")
			}).
			AssertCellEq("A1048575", nil).
			End()
	})
}

func TestArrayFormulas(t *testing.T) {
	NewSpreadsheetTestCase(t).
		Set("A1", 1).
		Set("A2", 2).
		Set("A3", 3).
		SetArray("C1:C4", "=A1:A3*2").
		Run().
		AssertCellEq("C1", 2).
		AssertCellEq("C2", 4).
		AssertCellEq("C3", 6).
		AssertCellEq("C4", formula.ErrorCodeNA).
		AssertFormula("C3", "=A1:A3*2").
		Set("A2", 5).
		Run().
		AssertCellEq("C2", 10).
		SetFails(FailedPrecondition, "C2", 1).
		SetFails(FailedPrecondition, "C2", "=1").
		ExpectAppError(FailedPrecondition, "overlap", func(s *Spreadsheet) error {
			return s.SetArrayFormula("C3:D5", "=1")
		}).
		Remove("C3").
		AssertCellEq("C1", nil).
		AssertCellEq("C4", nil).
		AssertFormula("C2", "").
		End()

	t.Run("replacing a whole group", func(t *testing.T) {
		NewSpreadsheetTestCase(t).
			SetArray("A1:A2", "=1").
			SetArray("A1:B2", "=2").
			Run().
			AssertCellEq("A1", 2).
			AssertCellEq("B2", 2).
			End()
	})
}

type stepRandom struct{ next float64 }

func (r *stepRandom) Float64() float64 {
	r.next += 0.25
	return r.next
}

func TestVolatileCells(t *testing.T) {
	engine := formula.NewEngine(formula.WithRandom(&stepRandom{}))
	NewSpreadsheetTestCase(t, WithEngine(engine)).
		Set("A1", "=RAND()").
		Set("B1", "=A1*2").
		Run().
		AssertCellEq("A1", 0.25).
		AssertCellEq("B1", 0.5).
		Run().
		AssertCellEq("A1", 0.5).
		AssertCellEq("B1", 1).
		End()
}

func TestCachedResultsAndEvaluation(t *testing.T) {
	tc := NewSpreadsheetTestCase(t).
		Set("A1", 2).
		Set("B1", "=A1*3")
	s := tc.spreadsheet

	require.NoError(t, s.SetCachedResult("B1", 99))
	tc.AssertCellEq("B1", 99)

	v, err := s.EvaluateCell("B1")
	require.NoError(t, err)
	assert.Equal(t, 6.0, v.Number())
	tc.AssertCellEq("B1", 99)

	v, err = s.EvaluateFormula("=A1+B1", "C1")
	require.NoError(t, err)
	assert.Equal(t, 101.0, v.Number())

	_, err = s.EvaluateFormula("=A1+", "C1")
	assert.Equal(t, InvalidArgument, ErrorCode(err))
	assert.True(t, formula.IsParseError(err))

	_, err = s.EvaluateCell("A1")
	assert.Equal(t, FailedPrecondition, ErrorCode(err))
	assert.Equal(t, FailedPrecondition, ErrorCode(s.SetCachedResult("A1", 1)))

	tc.Run().AssertCellEq("B1", 6)
	assert.Equal(t, []string{"Sheet1!B1"}, s.FormulaCells())
}
