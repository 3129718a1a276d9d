package spreadsheet

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// CalculationStack tracks the cells being calculated in one Calculate pass.
// A cell met again while it is still on the stack closes a cycle; every
// cell from that point up to the top is on the cycle.
type CalculationStack struct {
	items      []formula.Address
	processing map[formula.Address]int // position in items
	completed  map[formula.Address]struct{}
	cyclic     map[formula.Address]struct{}
}

// NewCalculationStack creates a new calculation stack
func NewCalculationStack() *CalculationStack {
	return &CalculationStack{
		processing: make(map[formula.Address]int),
		completed:  make(map[formula.Address]struct{}),
		cyclic:     make(map[formula.Address]struct{}),
	}
}

func (cs *CalculationStack) push(addr formula.Address) {
	cs.processing[addr] = len(cs.items)
	cs.items = append(cs.items, addr)
}

func (cs *CalculationStack) pop() {
	top := cs.items[len(cs.items)-1]
	cs.items = cs.items[:len(cs.items)-1]
	delete(cs.processing, top)
	cs.completed[top] = struct{}{}
}

// markCycle flags every cell from addr to the top of the stack.
func (cs *CalculationStack) markCycle(addr formula.Address) {
	for _, item := range cs.items[cs.processing[addr]:] {
		cs.cyclic[item] = struct{}{}
	}
}

func (cs *CalculationStack) isProcessing(addr formula.Address) bool {
	_, exists := cs.processing[addr]
	return exists
}

func (cs *CalculationStack) isCompleted(addr formula.Address) bool {
	_, exists := cs.completed[addr]
	return exists
}

func (cs *CalculationStack) isCyclic(addr formula.Address) bool {
	_, exists := cs.cyclic[addr]
	return exists
}

func (cs *CalculationStack) reset() {
	cs.items = cs.items[:0]
	clear(cs.processing)
	clear(cs.completed)
	clear(cs.cyclic)
}

// track registers a formula cell with the dependency graph and schedules
// it and everything that reads it.
func (s *Spreadsheet) track(addr formula.Address, prog *formula.Program) {
	s.graph.SetPrecedents(addr, s.precedentRanges(addr, prog), prog.Volatile)
	s.graph.MarkAffected(addr)
}

// precedentRanges lists the ranges prog reads when evaluated at addr.
// Names are followed to their target; names that are missing or cyclic
// contribute nothing since they evaluate to an error.
func (s *Spreadsheet) precedentRanges(addr formula.Address, prog *formula.Program) []formula.CellRange {
	var ranges []formula.CellRange
	for _, ref := range prog.References() {
		ref, ok := s.followName(ref)
		if !ok {
			continue
		}
		first, last := ref.Sheet, ref.LastSheet
		if first == formula.SheetCurrent {
			first, last = addr.Sheet, addr.Sheet
		}
		for sheet := first; sheet <= last; sheet++ {
			ranges = append(ranges, formula.NewCellRange(sheet, ref.First.Row, ref.First.Col, ref.Last.Row, ref.Last.Col))
		}
	}
	return ranges
}

func (s *Spreadsheet) followName(ref formula.Reference) (formula.Reference, bool) {
	seen := make(map[string]struct{})
	for ref.Kind == formula.RefName {
		key := foldName(ref.Name)
		if _, cyclic := seen[key]; cyclic {
			return ref, false
		}
		seen[key] = struct{}{}
		dn, ok := s.names.Lookup(ref.Name)
		if !ok {
			return ref, false
		}
		ref = dn.Reference
	}
	return ref, true
}

// reindex recomputes the precedents of every formula cell and schedules
// all of them. Name and sheet changes can move what any formula reads.
func (s *Spreadsheet) reindex() {
	for addr := range s.graph.nodes {
		ws, ok := s.sheets.At(addr.Sheet)
		if !ok || ws.IsDeleted() {
			s.graph.RemoveNode(addr)
			continue
		}
		prog, err := ws.programAt(addr.Row, addr.Col)
		if err != nil || prog == nil {
			s.graph.RemoveNode(addr)
			continue
		}
		s.graph.SetPrecedents(addr, s.precedentRanges(addr, prog), prog.Volatile)
	}
	s.graph.MarkAllDirty()
}

// Calculate recalculates every dirty formula cell, precedents first.
// Volatile cells and the cells reading them are always recalculated.
// Cells on a reference cycle get #REF!.
func (s *Spreadsheet) Calculate() error {
	start := time.Now()
	s.graph.MarkAllVolatileDirty()
	s.stack.reset()

	for dirty := s.graph.DirtyCells(); len(dirty) > 0; dirty = s.graph.DirtyCells() {
		for _, addr := range dirty {
			if !s.graph.IsDirty(addr) {
				continue
			}
			if s.stack.isCompleted(addr) {
				s.graph.ClearDirty(addr)
				continue
			}
			s.calculateCell(addr)
		}
	}

	s.log.WithFields(logrus.Fields{
		"cells":    len(s.stack.completed),
		"cycles":   len(s.stack.cyclic),
		"duration": time.Since(start),
	}).Debug("calculated")
	return nil
}

// calculateCell calculates a single cell after its precedents.
func (s *Spreadsheet) calculateCell(addr formula.Address) {
	if s.stack.isCompleted(addr) {
		return
	}
	if s.stack.isProcessing(addr) {
		s.stack.markCycle(addr)
		return
	}

	s.stack.push(addr)
	defer s.stack.pop()
	defer s.graph.ClearDirty(addr)

	ws, ok := s.sheets.At(addr.Sheet)
	if !ok || ws.IsDeleted() {
		return
	}
	prog, err := ws.programAt(addr.Row, addr.Col)
	if err != nil {
		ws.SetValue(addr.Row, addr.Col, formula.NewError(formula.ErrorCodeRef))
		return
	}
	if prog == nil {
		return
	}

	for _, precedent := range s.graph.GetPrecedentCells(addr) {
		s.calculateCell(precedent)
	}
	if s.stack.isCyclic(addr) {
		ws.SetValue(addr.Row, addr.Col, formula.NewError(formula.ErrorCodeRef))
		return
	}

	result := s.engine.Evaluate(prog, formula.NewEvaluationContext(s, addr))
	ws.SetValue(addr.Row, addr.Col, result)
}

// EvaluateCell evaluates the formula of a cell against the stored values
// without writing the result back. It only reads the workbook, so several
// goroutines may call it at once as long as nothing writes meanwhile.
func (s *Spreadsheet) EvaluateCell(address string) (formula.Value, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return formula.Blank, err
	}
	ws, err := s.sheetAt(addr)
	if err != nil {
		return formula.Blank, err
	}
	prog, err := ws.programAt(addr.Row, addr.Col)
	if err != nil {
		return formula.Blank, newApplicationErrorf(Internal, err, "rebasing shared formula at %s", address)
	}
	if prog == nil {
		return formula.Blank, newApplicationErrorf(FailedPrecondition, nil, "%s does not hold a formula", address)
	}
	return s.engine.Evaluate(prog, formula.NewEvaluationContext(s, addr)), nil
}

// EvaluateFormula parses text as if it were written at address and
// evaluates it without storing anything.
func (s *Spreadsheet) EvaluateFormula(text, address string) (formula.Value, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return formula.Blank, err
	}
	v, err := s.engine.EvaluateFormula(text, formula.NewEvaluationContext(s, addr))
	if err != nil {
		return formula.Blank, newApplicationErrorf(InvalidArgument, err, "cannot evaluate at %s", address)
	}
	return v, nil
}
