package formula

import "iter"

// Area is a lazy rectangular block of values, possibly repeated over a
// span of sheets. Values are read from the grid on access.
type Area struct {
	FirstSheet int
	LastSheet  int
	FirstRow   int
	FirstCol   int
	LastRow    int
	LastCol    int

	cell bool
	read func(sheet, row, col int) Value
}

// newGridArea creates an area over the grid. Corners may come in any order.
func newGridArea(grid Grid, firstSheet, lastSheet int, first, last CellRef, cell bool) *Area {
	return &Area{
		FirstSheet: min(firstSheet, lastSheet),
		LastSheet:  max(firstSheet, lastSheet),
		FirstRow:   min(first.Row, last.Row),
		FirstCol:   min(first.Col, last.Col),
		LastRow:    max(first.Row, last.Row),
		LastCol:    max(first.Col, last.Col),
		cell:       cell,
		read:       grid.CellValue,
	}
}

// IsCell reports whether the area came from a single-cell reference.
func (a *Area) IsCell() bool { return a.cell }

func (a *Area) Sheets() int { return a.LastSheet - a.FirstSheet + 1 }
func (a *Area) Rows() int   { return a.LastRow - a.FirstRow + 1 }
func (a *Area) Cols() int   { return a.LastCol - a.FirstCol + 1 }

// Size is the number of cells over every sheet.
func (a *Area) Size() int { return a.Sheets() * a.Rows() * a.Cols() }

// SameShape reports whether both areas have identical dimensions.
func (a *Area) SameShape(b *Area) bool {
	return a.Sheets() == b.Sheets() && a.Rows() == b.Rows() && a.Cols() == b.Cols()
}

// At reads the value at offsets relative to the top-left corner of the
// first sheet.
func (a *Area) At(sheet, row, col int) Value {
	return a.read(a.FirstSheet+sheet, a.FirstRow+row, a.FirstCol+col)
}

// Values iterates sheet-major, then row-major, then column-major.
func (a *Area) Values() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for s := a.FirstSheet; s <= a.LastSheet; s++ {
			for r := a.FirstRow; r <= a.LastRow; r++ {
				for c := a.FirstCol; c <= a.LastCol; c++ {
					if !yield(a.read(s, r, c)) {
						return
					}
				}
			}
		}
	}
}

// Index returns the value at the flattened position i of Values.
func (a *Area) Index(i int) Value {
	perSheet := a.Rows() * a.Cols()
	s, rem := i/perSheet, i%perSheet
	return a.At(s, rem/a.Cols(), rem%a.Cols())
}

// Operand is a function argument or an evaluator stack entry: either a
// reference (Area set) or a plain value.
type Operand struct {
	Value Value
	Area  *Area
}

// IsArea reports whether the operand came from a reference.
func (o Operand) IsArea() bool { return o.Area != nil }

func valueOperand(v Value) Operand { return Operand{Value: v} }
func areaOperand(a *Area) Operand  { return Operand{Area: a} }
