package spreadsheet

import (
	"github.com/vogtb/go-spreadsheet/packages/formula"
)

var _ formula.Grid = (*Spreadsheet)(nil)

// SheetIndex binds a sheet name written in a formula to its index.
// Removed sheets no longer bind.
func (s *Spreadsheet) SheetIndex(name string) (int, bool) {
	ws, ok := s.sheets.Lookup(name)
	if !ok {
		return 0, false
	}
	return ws.Index(), true
}

func (s *Spreadsheet) NameExists(name string) bool {
	_, ok := s.names.Lookup(name)
	return ok
}

func (s *Spreadsheet) SheetCount() int {
	return s.sheets.Len()
}

func (s *Spreadsheet) SheetName(index int) string {
	if ws, ok := s.sheets.At(index); ok {
		return ws.Name()
	}
	return ""
}

func (s *Spreadsheet) IsSheetDeleted(index int) bool {
	ws, ok := s.sheets.At(index)
	return !ok || ws.IsDeleted()
}

// CellValue reads the stored value, or last result, of a cell.
func (s *Spreadsheet) CellValue(sheet, row, col int) formula.Value {
	ws, ok := s.sheets.At(sheet)
	if !ok {
		return formula.Blank
	}
	return ws.Value(row, col)
}

func (s *Spreadsheet) DefinedName(name string) (formula.Reference, bool) {
	dn, ok := s.names.Lookup(name)
	return dn.Reference, ok
}
