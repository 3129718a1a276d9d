package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertValue(t *testing.T, want, got Value) {
	t.Helper()
	if want.IsNumber() && got.IsNumber() {
		assert.InDelta(t, want.Number(), got.Number(), 1e-9)
		return
	}
	assert.True(t, want.Equal(got), "want %s (%s), got %s (%s)", want, want.Kind(), got, got.Kind())
}

func TestEvaluateOperators(t *testing.T) {
	g := newMemGrid()
	g.set(t, "A1", NewNumber(53000))
	g.set(t, "A2", NewText("12"))
	g.set(t, "A3", NewText("abc"))
	g.set(t, "A4", NewError(ErrorCodeNA))

	tests := []struct {
		formula string
		want    Value
	}{
		{"=1+2*3", NewNumber(7)},
		{"=(1+2)*3", NewNumber(9)},
		{"=2^3^2", NewNumber(64)},
		{"=-2^2", NewNumber(4)},
		{"=10/4", NewNumber(2.5)},
		{"=A1*10%", NewNumber(5300)},
		{"=50%", NewNumber(0.5)},
		{"=A2+1", NewNumber(13)},
		{`=-"2"`, NewNumber(-2)},
		{"=TRUE+TRUE", NewNumber(2)},
		{`="a"&1&TRUE`, NewText("a1TRUE")},
		{"=A3+1", NewError(ErrorCodeValue)},
		{"=1/0", NewError(ErrorCodeDiv0)},
		{"=0^0", NewError(ErrorCodeNum)},
		{"=0^-1", NewError(ErrorCodeDiv0)},
		{"=(-8)^(1/3)", NewError(ErrorCodeNum)},
		{"=1E+308*10", NewError(ErrorCodeNum)},

		// errors propagate left operand first, before type checks
		{"=#N/A+1/0", NewError(ErrorCodeNA)},
		{"=1/0+#N/A", NewError(ErrorCodeDiv0)},
		{`="x"+#REF!`, NewError(ErrorCodeRef)},
		{"=A4&A3", NewError(ErrorCodeNA)},
		{"=A4=A4", NewError(ErrorCodeNA)},

		// comparisons
		{"=1=1", NewBoolean(true)},
		{`="abc"="ABC"`, NewBoolean(true)},
		{`=1<"a"`, NewBoolean(true)},
		{`="a"<TRUE`, NewBoolean(true)},
		{`="b">"A"`, NewBoolean(true)},
		{"=2<>2", NewBoolean(false)},
		{"=A9=0", NewBoolean(true)},
		{`=A9=""`, NewBoolean(true)},
		{"=A9=FALSE", NewBoolean(true)},

		// empty cells
		{"=A9", NewNumber(0)},
		{`=A9&"x"`, NewText("x")},
		{"=A9+1", NewNumber(1)},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			assertValue(t, tt.want, g.eval(t, "C1", tt.formula))
		})
	}
}

func TestEvaluateImplicitIntersection(t *testing.T) {
	g := newMemGrid()
	g.setNumbers(t, "A", 1, 10, 20, 30)
	g.set(t, "B2", NewNumber(7))
	g.set(t, "D1", NewNumber(1))
	g.set(t, "E1", NewNumber(2))

	tests := []struct {
		at      string
		formula string
		want    Value
	}{
		{"C2", "=A1:A3*2", NewNumber(40)},
		{"C3", "=A1:A3", NewNumber(30)},
		{"C5", "=A1:A3", NewError(ErrorCodeValue)},
		{"E4", "=D1:E1+1", NewNumber(3)},
		{"F4", "=D1:E1", NewError(ErrorCodeValue)},
		{"B2", "=A1:B3", NewNumber(7)},
		{"C2", "=A1:B3", NewError(ErrorCodeValue)},
		{"C2", "=SUM(A1:A3)", NewNumber(60)},
	}
	for _, tt := range tests {
		t.Run(tt.at+tt.formula, func(t *testing.T) {
			assertValue(t, tt.want, g.eval(t, tt.at, tt.formula))
		})
	}
}

func TestEvaluateArrayFormula(t *testing.T) {
	g := newMemGrid()
	g.setNumbers(t, "A", 1, 1, 2, 3)
	group := &ArrayFormulaGroup{Range: NewCellRange(0, 0, 2, 3, 2)} // C1:C4

	prog, err := Parse("=A1:A3*2", group.Anchor(), KindArray, g)
	require.NoError(t, err)
	group.Program = prog

	want := []Value{NewNumber(2), NewNumber(4), NewNumber(6), NewError(ErrorCodeNA)}
	for row := 0; row < 4; row++ {
		v := Evaluate(group.Program, NewEvaluationContext(g, Address{Row: row, Col: 2}))
		assertValue(t, want[row], v)
	}

	t.Run("scalars repeat over the group", func(t *testing.T) {
		prog, err := Parse("=5", group.Anchor(), KindArray, g)
		require.NoError(t, err)
		assertValue(t, NewNumber(5), Evaluate(prog, NewEvaluationContext(g, Address{Row: 2, Col: 2})))
	})
}

func TestEvaluateSheetsAndNames(t *testing.T) {
	g := newMemGrid("Sheet1", "Jan", "Feb", "Mar")
	g.set(t, "Jan!A1", NewNumber(1))
	g.set(t, "Feb!A1", NewNumber(2))
	g.set(t, "Mar!A1", NewNumber(3))
	g.setNumbers(t, "A", 1, 4, 5, 6)
	g.define(t, "Total", "=Sheet1!$A$1:$A$3")
	g.define(t, "First", "=Jan!$A$1")

	assertValue(t, NewNumber(6), g.eval(t, "C1", "=SUM(Jan:Mar!A1)"))
	assertValue(t, NewNumber(2), g.eval(t, "C1", "=Feb!A1"))
	assertValue(t, NewNumber(15), g.eval(t, "C1", "=SUM(Total)"))
	assertValue(t, NewNumber(2), g.eval(t, "C1", "=First*2"))
	assertValue(t, NewNumber(5), g.eval(t, "C2", "=Total"))
	assertValue(t, NewError(ErrorCodeRef), g.eval(t, "C1", "=SUM(Sheet1!A1:Jan!A2)"))
	assertValue(t, NewError(ErrorCodeValue), g.eval(t, "C1", "=Jan:Mar!A1"))

	t.Run("deleted sheets read as #REF!", func(t *testing.T) {
		prog := mustParse(t, g, "=Feb!A1+1")
		g.deleted[2] = true
		defer delete(g.deleted, 2)
		assertValue(t, NewError(ErrorCodeRef), Evaluate(prog, NewEvaluationContext(g, Address{})))
	})

	t.Run("removed names read as #NAME?", func(t *testing.T) {
		g.names["GONE"] = Reference{Kind: RefCell}
		prog := mustParse(t, g, "=Gone")
		delete(g.names, "GONE")
		assertValue(t, NewError(ErrorCodeName), Evaluate(prog, NewEvaluationContext(g, Address{})))
	})

	t.Run("cyclic names read as #REF!", func(t *testing.T) {
		g.names["LOOPA"] = Reference{Kind: RefName, Name: "LoopB"}
		g.names["LOOPB"] = Reference{Kind: RefName, Name: "LoopA"}
		assertValue(t, NewError(ErrorCodeRef), g.eval(t, "C1", "=LoopA+1"))
	})
}

func TestResolveValue(t *testing.T) {
	g := newMemGrid()
	g.set(t, "B2", NewText("x"))
	ctx := NewEvaluationContext(g, Address{Row: 1, Col: 4})

	ref := Reference{Kind: RefCell, Sheet: SheetCurrent, LastSheet: SheetCurrent, First: CellRef{Row: 1, Col: 1}, Last: CellRef{Row: 1, Col: 1}}
	assertValue(t, NewText("x"), ResolveValue(ctx, ref))

	area := ref
	area.Kind = RefArea
	area.First = CellRef{Row: 0, Col: 1}
	area.Last = CellRef{Row: 4, Col: 1}
	assertValue(t, NewText("x"), ResolveValue(ctx, area))

	missing := ref
	missing.Sheet, missing.LastSheet = 7, 7
	assertValue(t, NewError(ErrorCodeRef), ResolveValue(ctx, missing))
}

func TestEvaluateIsIdempotent(t *testing.T) {
	g := newMemGrid()
	g.setNumbers(t, "A", 1, 3, 1, 2)
	prog := mustParse(t, g, "=SUM(A1:A3)/COUNT(A1:A3)&\"!\"")
	ctx := NewEvaluationContext(g, Address{Row: 5, Col: 5})
	first := Evaluate(prog, ctx)
	for i := 0; i < 3; i++ {
		assert.True(t, first.Equal(Evaluate(prog, ctx)))
	}
	assertValue(t, NewText("2!"), first)
}
