package formula

import (
	"fmt"
)

// CellRange is a rectangle of cells on one sheet.
type CellRange struct {
	Sheet    int
	FirstRow int
	FirstCol int
	LastRow  int
	LastCol  int
}

// NewCellRange builds a range from two corners in any order.
func NewCellRange(sheet, row1, col1, row2, col2 int) CellRange {
	return CellRange{
		Sheet:    sheet,
		FirstRow: min(row1, row2),
		FirstCol: min(col1, col2),
		LastRow:  max(row1, row2),
		LastCol:  max(col1, col2),
	}
}

func (r CellRange) Contains(sheet, row, col int) bool {
	return sheet == r.Sheet &&
		row >= r.FirstRow && row <= r.LastRow &&
		col >= r.FirstCol && col <= r.LastCol
}

func (r CellRange) Rows() int { return r.LastRow - r.FirstRow + 1 }
func (r CellRange) Cols() int { return r.LastCol - r.FirstCol + 1 }

// TopLeft is the anchor cell of the range.
func (r CellRange) TopLeft() Address {
	return Address{Sheet: r.Sheet, Row: r.FirstRow, Col: r.FirstCol}
}

func (r CellRange) String() string {
	first := CellRef{Row: r.FirstRow, Col: r.FirstCol}
	last := CellRef{Row: r.LastRow, Col: r.LastCol}
	return fmt.Sprintf("%s:%s", first, last)
}

// RebaseSharedFormula derives the program of the member cell target from
// the master program written at anchor. Relative components move by the
// distance between the two cells; absolute components never move. A
// reference pushed off the sheet is an error, never clamped.
func RebaseSharedFormula(master *Program, anchor, target Address) (*Program, error) {
	dRow, dCol := target.Row-anchor.Row, target.Col-anchor.Col
	ops := make([]Op, len(master.Ops))
	for i, op := range master.Ops {
		if op.Code == OpRef {
			moved, ok := op.Ref.Offset(dRow, dCol)
			if !ok {
				return nil, newParseError(RenderFormulaText(master), -1, ErrRebaseOutOfBounds.New(op.Ref.String(), dRow, dCol))
			}
			op.Ref = moved
		}
		ops[i] = op
	}
	return &Program{
		Kind:     master.Kind,
		Anchor:   target,
		Ops:      ops,
		Volatile: master.Volatile,
	}, nil
}

// SharedFormulaGroup is a formula stored once at the top-left cell of
// Range and replicated over every member of the range. Host sheets own
// groups and cells refer to them by index.
type SharedFormulaGroup struct {
	Master *Program
	Range  CellRange
}

// NewSharedFormulaGroup validates that every member of rng can be
// rebased before the group is accepted.
func NewSharedFormulaGroup(master *Program, rng CellRange) (*SharedFormulaGroup, error) {
	g := &SharedFormulaGroup{Master: master, Range: rng}
	// offsets only grow away from the anchor, so the far corner is the
	// only member that can leave the sheet
	if _, err := g.ProgramAt(rng.LastRow, rng.LastCol); err != nil {
		return nil, err
	}
	return g, nil
}

// Anchor is the cell the master program was written at.
func (g *SharedFormulaGroup) Anchor() Address {
	return g.Range.TopLeft()
}

// ProgramAt returns the effective program of a member cell.
func (g *SharedFormulaGroup) ProgramAt(row, col int) (*Program, error) {
	if !g.Range.Contains(g.Range.Sheet, row, col) {
		return nil, newParseError(RenderFormulaText(g.Master), -1,
			ErrRebaseOutOfBounds.New(CellRef{Row: row, Col: col}.String(), row-g.Range.FirstRow, col-g.Range.FirstCol))
	}
	return RebaseSharedFormula(g.Master, g.Anchor(), Address{Sheet: g.Range.Sheet, Row: row, Col: col})
}

// ArrayFormulaGroup is a single array formula entered over Range. Every
// member evaluates the same program and picks its element of the result.
type ArrayFormulaGroup struct {
	Program *Program
	Range   CellRange
}

// Anchor is the top-left cell of the group.
func (g *ArrayFormulaGroup) Anchor() Address {
	return g.Range.TopLeft()
}
