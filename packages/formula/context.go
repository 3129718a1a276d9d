package formula

// Grid is the read-only view of a workbook the evaluator works against.
// Implementations must not change while an evaluation is in flight; the
// engine does no locking of its own.
type Grid interface {
	Workbook
	SheetCount() int
	SheetName(index int) string
	IsSheetDeleted(index int) bool
	// CellValue returns Blank for empty cells.
	CellValue(sheet, row, col int) Value
	// DefinedName returns the reference a workbook name stands for.
	DefinedName(name string) (Reference, bool)
}

// EvaluationContext is the cell being evaluated plus the grid snapshot.
// It is scoped to a single Evaluate call.
type EvaluationContext struct {
	Sheet int
	Row   int
	Col   int
	Grid  Grid
}

// NewEvaluationContext creates a context for the cell at addr.
func NewEvaluationContext(grid Grid, addr Address) *EvaluationContext {
	return &EvaluationContext{Sheet: addr.Sheet, Row: addr.Row, Col: addr.Col, Grid: grid}
}

// Address returns the position of the evaluated cell.
func (ctx *EvaluationContext) Address() Address {
	return Address{Sheet: ctx.Sheet, Row: ctx.Row, Col: ctx.Col}
}
