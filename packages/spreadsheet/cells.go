package spreadsheet

import (
	"math"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// toValue converts a Primitive into a cell value.
func toValue(value Primitive) (formula.Value, error) {
	switch v := value.(type) {
	case nil:
		return formula.Blank, nil
	case formula.Value:
		return v, nil
	case formula.ErrorCode:
		if v == formula.ErrorCodeNone {
			return formula.Blank, NewApplicationError(InvalidArgument, "error code is empty")
		}
		return formula.NewError(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return formula.NewError(formula.ErrorCodeNum), nil
		}
		return formula.NewNumber(v), nil
	case float32:
		return toValue(float64(v))
	case int:
		return formula.NewNumber(float64(v)), nil
	case int64:
		return formula.NewNumber(float64(v)), nil
	case int32:
		return formula.NewNumber(float64(v)), nil
	case uint32:
		return formula.NewNumber(float64(v)), nil
	case bool:
		return formula.NewBoolean(v), nil
	case string:
		return formula.NewText(v), nil
	default:
		return formula.Blank, newApplicationErrorf(InvalidArgument, nil, "unsupported cell value of type %T", value)
	}
}

// Get returns the value of a cell. Formula cells return their last
// calculated result.
func (s *Spreadsheet) Get(address string) (formula.Value, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return formula.Blank, err
	}
	ws, err := s.sheetAt(addr)
	if err != nil {
		return formula.Blank, err
	}
	return ws.Value(addr.Row, addr.Col), nil
}

// Set stores a value. Strings starting with '=' are formulas; a formula
// that does not parse is returned as an error and nothing is stored.
func (s *Spreadsheet) Set(address string, value Primitive) error {
	if text, ok := value.(string); ok && len(text) > 1 && text[0] == '=' {
		return s.SetFormula(address, text)
	}
	v, err := toValue(value)
	if err != nil {
		return err
	}
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	ws, err := s.sheetAt(addr)
	if err != nil {
		return err
	}
	if err := s.checkNotInArray(ws, addr, address); err != nil {
		return err
	}

	ws.setFormulaRef(addr.Row, addr.Col, formulaRef{})
	s.graph.RemoveNode(addr)
	ws.SetValue(addr.Row, addr.Col, v)
	s.graph.MarkAffected(addr)
	return nil
}

// SetFormula stores a single-cell formula.
func (s *Spreadsheet) SetFormula(address, text string) error {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	ws, err := s.sheetAt(addr)
	if err != nil {
		return err
	}
	if err := s.checkNotInArray(ws, addr, address); err != nil {
		return err
	}
	prog, err := s.engine.Parse(text, addr, formula.KindCell, s)
	if err != nil {
		return newApplicationErrorf(InvalidArgument, err, "cannot set %s", address)
	}

	ws.setFormulaRef(addr.Row, addr.Col, ws.addProgram(prog))
	ws.SetValue(addr.Row, addr.Col, formula.Blank)
	s.track(addr, prog)
	return nil
}

// SetSharedFormula writes text at the top-left cell of rng and replicates
// it over the whole range, relative references moving with each cell.
func (s *Spreadsheet) SetSharedFormula(rng, text string) error {
	cells, err := s.resolveRange(rng)
	if err != nil {
		return err
	}
	ws, err := s.sheetAt(cells.TopLeft())
	if err != nil {
		return err
	}
	if err := s.checkNoArrayOverlap(ws, cells, rng); err != nil {
		return err
	}
	master, err := s.engine.Parse(text, cells.TopLeft(), formula.KindShared, s)
	if err != nil {
		return newApplicationErrorf(InvalidArgument, err, "cannot set %s", rng)
	}
	group, err := formula.NewSharedFormulaGroup(master, cells)
	if err != nil {
		return newApplicationErrorf(OutOfRange, err, "cannot share formula over %s", rng)
	}

	ref := ws.addSharedGroup(group)
	for row := cells.FirstRow; row <= cells.LastRow; row++ {
		for col := cells.FirstCol; col <= cells.LastCol; col++ {
			prog, err := group.ProgramAt(row, col)
			if err != nil {
				return newApplicationErrorf(Internal, err, "rebasing shared formula")
			}
			ws.setFormulaRef(row, col, ref)
			ws.SetValue(row, col, formula.Blank)
			s.track(formula.Address{Sheet: cells.Sheet, Row: row, Col: col}, prog)
		}
	}
	return nil
}

// SetArrayFormula enters one formula over rng. Each member shows the
// element of the result at its offset from the top-left cell. An existing
// array group can only be replaced as a whole.
func (s *Spreadsheet) SetArrayFormula(rng, text string) error {
	cells, err := s.resolveRange(rng)
	if err != nil {
		return err
	}
	ws, err := s.sheetAt(cells.TopLeft())
	if err != nil {
		return err
	}
	if err := s.checkNoArrayOverlap(ws, cells, rng); err != nil {
		return err
	}
	prog, err := s.engine.Parse(text, cells.TopLeft(), formula.KindArray, s)
	if err != nil {
		return newApplicationErrorf(InvalidArgument, err, "cannot set %s", rng)
	}

	ref := ws.addArrayGroup(&formula.ArrayFormulaGroup{Program: prog, Range: cells})
	for row := cells.FirstRow; row <= cells.LastRow; row++ {
		for col := cells.FirstCol; col <= cells.LastCol; col++ {
			ws.setFormulaRef(row, col, ref)
			ws.SetValue(row, col, formula.Blank)
			s.track(formula.Address{Sheet: cells.Sheet, Row: row, Col: col}, prog)
		}
	}
	return nil
}

// SetCachedResult overwrites the stored result of a formula cell without
// scheduling anything. Loaders use it to keep the values a file was saved
// with.
func (s *Spreadsheet) SetCachedResult(address string, value Primitive) error {
	v, err := toValue(value)
	if err != nil {
		return err
	}
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	ws, err := s.sheetAt(addr)
	if err != nil {
		return err
	}
	if ws.formulaAt(addr.Row, addr.Col).kind == formulaNone {
		return newApplicationErrorf(FailedPrecondition, nil, "%s does not hold a formula", address)
	}
	ws.SetValue(addr.Row, addr.Col, v)
	return nil
}

// Formula returns the formula text of a cell with a leading '=', or "" for
// cells without one. Members of a shared formula show their rebased text.
func (s *Spreadsheet) Formula(address string) (string, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return "", err
	}
	ws, err := s.sheetAt(addr)
	if err != nil {
		return "", err
	}
	prog, err := ws.programAt(addr.Row, addr.Col)
	if err != nil {
		return "", newApplicationErrorf(Internal, err, "rebasing shared formula at %s", address)
	}
	if prog == nil {
		return "", nil
	}
	return "=" + s.engine.Render(s.withCurrentSheetNames(prog)), nil
}

// Remove empties a cell. Removing any member of an array formula removes
// the whole group.
func (s *Spreadsheet) Remove(address string) error {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	ws, err := s.sheetAt(addr)
	if err != nil {
		return err
	}
	if group, ok := ws.arrayGroupAt(addr.Row, addr.Col); ok {
		rng := group.Range
		for row := rng.FirstRow; row <= rng.LastRow; row++ {
			for col := rng.FirstCol; col <= rng.LastCol; col++ {
				s.clearCell(ws, formula.Address{Sheet: rng.Sheet, Row: row, Col: col})
			}
		}
		return nil
	}
	s.clearCell(ws, addr)
	return nil
}

func (s *Spreadsheet) clearCell(ws *Worksheet, addr formula.Address) {
	ws.Clear(addr.Row, addr.Col)
	s.graph.RemoveNode(addr)
	s.graph.MarkAffected(addr)
}

func (s *Spreadsheet) checkNotInArray(ws *Worksheet, addr formula.Address, address string) error {
	if group, ok := ws.arrayGroupAt(addr.Row, addr.Col); ok {
		return newApplicationErrorf(FailedPrecondition, nil, "%s is part of the array formula over %s", address, group.Range)
	}
	return nil
}

// checkNoArrayOverlap rejects ranges that cut through an array group.
// Groups lying entirely inside cells are replaced.
func (s *Spreadsheet) checkNoArrayOverlap(ws *Worksheet, cells formula.CellRange, rng string) error {
	for row := cells.FirstRow; row <= cells.LastRow; row++ {
		for col := cells.FirstCol; col <= cells.LastCol; col++ {
			group, ok := ws.arrayGroupAt(row, col)
			if !ok {
				continue
			}
			inner := group.Range
			if !cells.Contains(inner.Sheet, inner.FirstRow, inner.FirstCol) ||
				!cells.Contains(inner.Sheet, inner.LastRow, inner.LastCol) {
				return newApplicationErrorf(FailedPrecondition, nil, "%s overlaps the array formula over %s", rng, inner)
			}
		}
	}
	return nil
}

// withCurrentSheetNames returns prog with the sheet names of its references
// refreshed, so renamed sheets render with their new names.
func (s *Spreadsheet) withCurrentSheetNames(prog *formula.Program) *formula.Program {
	ops := make([]formula.Op, len(prog.Ops))
	copy(ops, prog.Ops)
	for i := range ops {
		ref := &ops[i].Ref
		if ops[i].Code != formula.OpRef || ref.Kind == formula.RefName || ref.Sheet == formula.SheetCurrent {
			continue
		}
		if ws, ok := s.sheets.At(ref.Sheet); ok {
			ref.SheetName = ws.Name()
		}
		if ws, ok := s.sheets.At(ref.LastSheet); ok {
			ref.LastSheetName = ws.Name()
		}
	}
	clone := *prog
	clone.Ops = ops
	return &clone
}
