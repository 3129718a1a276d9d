package formula

import (
	"strconv"
	"strings"
)

// Sheet bounds of the OOXML grid.
const (
	MaxRows    = 1048576
	MaxColumns = 16384
)

// SheetCurrent marks a reference without a sheet qualifier. It resolves to
// the sheet of the evaluation context.
const SheetCurrent = -1

// Address is a zero-based cell position on a sheet.
type Address struct {
	Sheet int
	Row   int
	Col   int
}

// CellRef is one corner of a reference with its absolute markers.
type CellRef struct {
	Row    int
	Col    int
	RowAbs bool
	ColAbs bool
}

func (c CellRef) inBounds() bool {
	return c.Row >= 0 && c.Row < MaxRows && c.Col >= 0 && c.Col < MaxColumns
}

// offset moves the relative components of c.
func (c CellRef) offset(dRow, dCol int) CellRef {
	if !c.RowAbs {
		c.Row += dRow
	}
	if !c.ColAbs {
		c.Col += dCol
	}
	return c
}

// String renders c in A1 notation, e.g. $B$3.
func (c CellRef) String() string {
	var sb strings.Builder
	if c.ColAbs {
		sb.WriteByte('$')
	}
	sb.WriteString(ColumnName(c.Col))
	if c.RowAbs {
		sb.WriteByte('$')
	}
	sb.WriteString(strconv.Itoa(c.Row + 1))
	return sb.String()
}

// RefKind tells cell, area and name references apart.
type RefKind uint8

const (
	RefCell RefKind = iota
	RefArea
	RefName
)

// Reference is an unresolved operand created by the parser. Sheet and
// LastSheet differ only for 3-D references. Sheet names are kept as written
// so the reference renders without consulting the workbook.
type Reference struct {
	Kind          RefKind
	Sheet         int
	LastSheet     int
	SheetName     string
	LastSheetName string
	First         CellRef
	Last          CellRef
	Name          string
}

// Is3D reports whether the reference spans more than one sheet.
func (r Reference) Is3D() bool {
	return r.Kind != RefName && r.LastSheet != r.Sheet
}

// Offset returns r with every relative component moved by (dRow, dCol).
func (r Reference) Offset(dRow, dCol int) (Reference, bool) {
	if r.Kind == RefName {
		return r, true
	}
	r.First = r.First.offset(dRow, dCol)
	r.Last = r.Last.offset(dRow, dCol)
	return r, r.First.inBounds() && r.Last.inBounds()
}

// String renders the reference the way it would be written in a formula.
func (r Reference) String() string {
	if r.Kind == RefName {
		return r.Name
	}
	var sb strings.Builder
	if r.Sheet != SheetCurrent {
		name := r.SheetName
		if r.Is3D() {
			name += ":" + r.LastSheetName
		}
		sb.WriteString(quoteSheetName(name))
		sb.WriteByte('!')
	}
	sb.WriteString(r.First.String())
	if r.Kind == RefArea {
		sb.WriteByte(':')
		sb.WriteString(r.Last.String())
	}
	return sb.String()
}

// ColumnName converts a zero-based column index to letters, 0 -> A.
func ColumnName(col int) string {
	var buf [4]byte
	i := len(buf)
	for col >= 0 {
		i--
		buf[i] = byte('A' + col%26)
		col = col/26 - 1
	}
	return string(buf[i:])
}

// ParseCellName converts A1 notation (with optional $ markers) into a
// CellRef. Coordinates outside the sheet bounds are rejected.
func ParseCellName(s string) (CellRef, bool) {
	var ref CellRef
	i := 0
	if i < len(s) && s[i] == '$' {
		ref.ColAbs = true
		i++
	}
	colStart := i
	col := 0
	for i < len(s) && isASCIILetter(rune(s[i])) {
		col = col*26 + int(toUpperASCII(s[i])-'A'+1)
		i++
		if i-colStart > 3 {
			return CellRef{}, false
		}
	}
	if i == colStart {
		return CellRef{}, false
	}
	if i < len(s) && s[i] == '$' {
		ref.RowAbs = true
		i++
	}
	rowStart := i
	row := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		row = row*10 + int(s[i]-'0')
		i++
		if i-rowStart > 7 {
			return CellRef{}, false
		}
	}
	if i == rowStart || i != len(s) || s[rowStart] == '0' {
		return CellRef{}, false
	}
	ref.Row = row - 1
	ref.Col = col - 1
	if !ref.inBounds() {
		return CellRef{}, false
	}
	return ref, true
}

// quoteSheetName wraps sheet names that are not plain identifiers in single
// quotes, doubling embedded quotes.
func quoteSheetName(name string) string {
	plain := name != ""
	for i, ch := range name {
		if isIdentRune(ch) && ch != '$' && (i > 0 || !isDigit(ch)) {
			continue
		}
		if ch == ':' {
			continue
		}
		plain = false
		break
	}
	if plain {
		// names that read as a cell reference need quotes too
		for _, part := range strings.Split(name, ":") {
			if _, isCell := ParseCellName(part); isCell || part == "" {
				plain = false
			}
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func isASCIILetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func toUpperASCII(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 32
	}
	return b
}
