package formula

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// memGrid is a small in-memory workbook used by the tests.
type memGrid struct {
	sheets  []string
	deleted map[int]bool
	cells   map[Address]Value
	names   map[string]Reference
}

func newMemGrid(sheets ...string) *memGrid {
	if len(sheets) == 0 {
		sheets = []string{"Sheet1"}
	}
	return &memGrid{
		sheets:  sheets,
		deleted: map[int]bool{},
		cells:   map[Address]Value{},
		names:   map[string]Reference{},
	}
}

func (g *memGrid) SheetIndex(name string) (int, bool) {
	for i, s := range g.sheets {
		if strings.EqualFold(s, name) && !g.deleted[i] {
			return i, true
		}
	}
	return 0, false
}

func (g *memGrid) NameExists(name string) bool {
	_, ok := g.names[strings.ToUpper(name)]
	return ok
}

func (g *memGrid) SheetCount() int           { return len(g.sheets) }
func (g *memGrid) SheetName(i int) string    { return g.sheets[i] }
func (g *memGrid) IsSheetDeleted(i int) bool { return g.deleted[i] }

func (g *memGrid) CellValue(s, r, c int) Value {
	return g.cells[Address{Sheet: s, Row: r, Col: c}]
}

func (g *memGrid) DefinedName(n string) (Reference, bool) {
	ref, ok := g.names[strings.ToUpper(n)]
	return ref, ok
}

// set stores v at an A1 address on sheet 0, or on "Sheet!A1".
func (g *memGrid) set(t *testing.T, addr string, v Value) *memGrid {
	t.Helper()
	sheet := 0
	if i := strings.IndexByte(addr, '!'); i >= 0 {
		idx, ok := g.SheetIndex(addr[:i])
		require.True(t, ok, "unknown sheet in %s", addr)
		sheet, addr = idx, addr[i+1:]
	}
	ref, ok := ParseCellName(addr)
	require.True(t, ok, "bad address %s", addr)
	g.cells[Address{Sheet: sheet, Row: ref.Row, Col: ref.Col}] = v
	return g
}

func (g *memGrid) setNumbers(t *testing.T, column string, firstRow int, nums ...float64) *memGrid {
	t.Helper()
	for i, n := range nums {
		g.set(t, column+itoa(firstRow+i), NewNumber(n))
	}
	return g
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

// define binds name to a reference parsed as a named range.
func (g *memGrid) define(t *testing.T, name, text string) *memGrid {
	t.Helper()
	prog, err := Parse(text, Address{}, KindNamedRange, g)
	require.NoError(t, err)
	g.names[strings.ToUpper(name)] = prog.Ops[0].Ref
	return g
}

// eval parses and evaluates text at addr on sheet 0.
func (g *memGrid) eval(t *testing.T, addr, text string) Value {
	t.Helper()
	ref, ok := ParseCellName(addr)
	require.True(t, ok)
	at := Address{Sheet: 0, Row: ref.Row, Col: ref.Col}
	prog, err := Parse(text, at, KindCell, g)
	require.NoError(t, err, text)
	return Evaluate(prog, NewEvaluationContext(g, at))
}
