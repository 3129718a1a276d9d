package spreadsheet

import (
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// Primitive is anything Set accepts: nil, numbers, bool, string (text, or a
// formula when it starts with '='), formula.Value and formula.ErrorCode.
type Primitive = any

// Options configure a Spreadsheet.
type Options struct {
	Logger logrus.FieldLogger
	Engine *formula.Engine
}

type Option func(*Options)

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithEngine shares one formula engine, and its program cache, between
// spreadsheets.
func WithEngine(e *formula.Engine) Option {
	return func(o *Options) { o.Engine = e }
}

// Spreadsheet is a workbook: sheets, defined names, cells and the
// dependency graph that drives recalculation.
type Spreadsheet struct {
	engine  *formula.Engine
	sheets  *WorksheetTable
	names   *NameTable
	strings *StringTable
	graph   *DependencyGraph
	stack   *CalculationStack
	log     logrus.FieldLogger
}

// NewSpreadsheet creates a workbook without sheets.
func NewSpreadsheet(options ...Option) *Spreadsheet {
	opts := Options{Logger: logrus.StandardLogger()}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Engine == nil {
		opts.Engine = formula.NewEngine(formula.WithLogger(opts.Logger))
	}
	return &Spreadsheet{
		engine:  opts.Engine,
		sheets:  NewWorksheetTable(),
		names:   NewNameTable(),
		strings: NewStringTable(),
		graph:   NewDependencyGraph(),
		stack:   NewCalculationStack(),
		log:     opts.Logger.WithField("component", "spreadsheet"),
	}
}

// Engine returns the formula engine used by the workbook.
func (s *Spreadsheet) Engine() *formula.Engine {
	return s.engine
}

// structureChanged drops programs parsed against the old sheet and name
// tables and rebuilds the dependency graph.
func (s *Spreadsheet) structureChanged() {
	s.engine.Purge()
	s.reindex()
}

// AddWorksheet adds a new worksheet
func (s *Spreadsheet) AddWorksheet(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewApplicationError(InvalidArgument, "worksheet name is empty")
	}
	index, ok := s.sheets.Define(name, s.strings)
	if !ok {
		return newApplicationErrorf(AlreadyExists, nil, "worksheet %q already exists", name)
	}
	s.log.WithFields(logrus.Fields{"sheet": name, "index": index}).Debug("worksheet added")
	s.structureChanged()
	return nil
}

// RemoveWorksheet removes a worksheet. References to it evaluate to #REF!
// from now on.
func (s *Spreadsheet) RemoveWorksheet(name string) error {
	ws, ok := s.sheets.Undefine(name)
	if !ok {
		return newApplicationErrorf(NotFound, nil, "worksheet %q not found", name)
	}
	s.graph.RemoveSheet(ws.Index())
	s.log.WithField("sheet", name).Debug("worksheet removed")
	s.structureChanged()
	return nil
}

// RenameWorksheet renames a worksheet. Formulas keep pointing at it and
// render with the new name.
func (s *Spreadsheet) RenameWorksheet(oldName, newName string) error {
	if _, ok := s.sheets.Lookup(oldName); !ok {
		return newApplicationErrorf(NotFound, nil, "worksheet %q not found", oldName)
	}
	if strings.TrimSpace(newName) == "" {
		return NewApplicationError(InvalidArgument, "worksheet name is empty")
	}
	if !s.sheets.Rename(oldName, newName) {
		return newApplicationErrorf(AlreadyExists, nil, "worksheet %q already exists", newName)
	}
	s.structureChanged()
	return nil
}

// DoesWorksheetExist checks if a worksheet exists
func (s *Spreadsheet) DoesWorksheetExist(name string) bool {
	_, ok := s.sheets.Lookup(name)
	return ok
}

// ListWorksheets returns the live worksheet names in creation order.
func (s *Spreadsheet) ListWorksheets() []string {
	var result []string
	for ws := range s.sheets.Live() {
		result = append(result, ws.Name())
	}
	return result
}

// Worksheet returns a live worksheet by name.
func (s *Spreadsheet) Worksheet(name string) (*Worksheet, bool) {
	return s.sheets.Lookup(name)
}

// DefineName binds name to a single cell or area reference written as a
// formula, e.g. "=Sheet1!$A$1:$A$10". Redefining a name replaces it.
func (s *Spreadsheet) DefineName(name, text string) error {
	if !isValidName(name) {
		return newApplicationErrorf(InvalidArgument, nil, "%q is not a valid name", name)
	}
	prog, err := s.engine.Parse(text, formula.Address{}, formula.KindNamedRange, s)
	if err != nil {
		return newApplicationErrorf(InvalidArgument, err, "cannot define %s", name)
	}
	s.names.Define(name, prog.Ops[0].Ref)
	s.structureChanged()
	return nil
}

// RemoveName deletes a defined name. Formulas using it evaluate to #NAME?.
func (s *Spreadsheet) RemoveName(name string) error {
	if !s.names.Undefine(name) {
		return newApplicationErrorf(NotFound, nil, "name %q not found", name)
	}
	s.structureChanged()
	return nil
}

// ListNames returns the defined names, sorted.
func (s *Spreadsheet) ListNames() []string {
	return s.names.Names()
}

// isValidName accepts identifiers that cannot be mistaken for a cell
// reference or a boolean.
func isValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, ch := range name {
		switch {
		case ch == '_' || ch == '\\':
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch > 0x7f:
		case i > 0 && (ch == '.' || (ch >= '0' && ch <= '9')):
		default:
			return false
		}
	}
	if _, isCell := formula.ParseCellName(name); isCell {
		return false
	}
	upper := strings.ToUpper(name)
	return upper != "TRUE" && upper != "FALSE"
}

// resolveAddress turns "A1", "Sheet1!B2" or "'My Sheet'!C3" into a cell
// position. Unqualified addresses refer to the first worksheet.
func (s *Spreadsheet) resolveAddress(address string) (formula.Address, error) {
	ref, err := s.parseReference(address)
	if err != nil {
		return formula.Address{}, err
	}
	if ref.Kind != formula.RefCell {
		return formula.Address{}, newApplicationErrorf(InvalidArgument, nil, "%q is not a cell address", address)
	}
	return formula.Address{Sheet: ref.Sheet, Row: ref.First.Row, Col: ref.First.Col}, nil
}

// resolveRange is resolveAddress for "A1:B3" style ranges. A single cell is
// a one-cell range.
func (s *Spreadsheet) resolveRange(address string) (formula.CellRange, error) {
	ref, err := s.parseReference(address)
	if err != nil {
		return formula.CellRange{}, err
	}
	return formula.NewCellRange(ref.Sheet, ref.First.Row, ref.First.Col, ref.Last.Row, ref.Last.Col), nil
}

func (s *Spreadsheet) parseReference(address string) (formula.Reference, error) {
	prog, err := s.engine.Parse(address, formula.Address{}, formula.KindNamedRange, s)
	if err != nil {
		return formula.Reference{}, newApplicationErrorf(InvalidArgument, err, "invalid address %q", address)
	}
	ref := prog.Ops[0].Ref
	if ref.Kind == formula.RefName || ref.Is3D() {
		return formula.Reference{}, newApplicationErrorf(InvalidArgument, nil, "%q is not a cell address", address)
	}
	if ref.Sheet == formula.SheetCurrent {
		first, ok := s.firstSheet()
		if !ok {
			return formula.Reference{}, NewApplicationError(FailedPrecondition, "workbook has no worksheets")
		}
		ref.Sheet, ref.LastSheet = first, first
	}
	return ref, nil
}

func (s *Spreadsheet) firstSheet() (int, bool) {
	for ws := range s.sheets.Live() {
		return ws.Index(), true
	}
	return 0, false
}

// sheetAt returns the live sheet holding addr.
func (s *Spreadsheet) sheetAt(addr formula.Address) (*Worksheet, error) {
	ws, ok := s.sheets.At(addr.Sheet)
	if !ok || ws.IsDeleted() {
		return nil, newApplicationErrorf(NotFound, nil, "worksheet %d not found", addr.Sheet)
	}
	return ws, nil
}

// FormatAddress renders a sheet-qualified A1 address that resolveAddress
// accepts, quoting the sheet name when needed. An empty sheet name gives a
// bare address.
func FormatAddress(sheet string, row, col int) string {
	cell := formula.CellRef{Row: row, Col: col}
	ref := formula.Reference{
		Kind:      formula.RefCell,
		SheetName: sheet,
		First:     cell,
		Last:      cell,
	}
	if sheet == "" {
		ref.Sheet, ref.LastSheet = formula.SheetCurrent, formula.SheetCurrent
	}
	return ref.String()
}

// formatAddress renders addr against the current sheet names.
func (s *Spreadsheet) formatAddress(addr formula.Address) string {
	name := ""
	if ws, ok := s.sheets.At(addr.Sheet); ok {
		name = ws.Name()
	}
	return FormatAddress(name, addr.Row, addr.Col)
}

// FormulaCells returns the addresses of every formula cell, ordered by
// sheet, row and column.
func (s *Spreadsheet) FormulaCells() []string {
	order := make([]formula.Address, 0, s.graph.NodeCount())
	for addr := range s.graph.nodes {
		order = append(order, addr)
	}
	slices.SortFunc(order, compareAddress)
	result := make([]string, len(order))
	for i, addr := range order {
		result[i] = s.formatAddress(addr)
	}
	return result
}
