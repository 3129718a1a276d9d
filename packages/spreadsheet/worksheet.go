package spreadsheet

import (
	"iter"
	"maps"
	"math/bits"
	"slices"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"golang.org/x/text/cases"
)

// WorksheetTable maps sheet names to stable indices. Removing a sheet
// leaves a tombstone behind so the indices stored in parsed programs keep
// pointing at the same slot and resolve to #REF!.
type WorksheetTable struct {
	sheets []*Worksheet
	byName map[string]int // folded name -> index, live sheets only
}

// NewWorksheetTable creates an empty table.
func NewWorksheetTable() *WorksheetTable {
	return &WorksheetTable{
		byName: make(map[string]int),
	}
}

func foldName(name string) string {
	return cases.Fold().String(name)
}

// Define appends a new sheet and returns its index.
func (wt *WorksheetTable) Define(name string, strings *StringTable) (int, bool) {
	key := foldName(name)
	if _, exists := wt.byName[key]; exists {
		return 0, false
	}
	index := len(wt.sheets)
	wt.sheets = append(wt.sheets, NewWorksheet(name, index, strings))
	wt.byName[key] = index
	return index, true
}

// Undefine turns the sheet into a tombstone. Its cells are released.
func (wt *WorksheetTable) Undefine(name string) (*Worksheet, bool) {
	key := foldName(name)
	index, exists := wt.byName[key]
	if !exists {
		return nil, false
	}
	delete(wt.byName, key)
	ws := wt.sheets[index]
	ws.release()
	ws.deleted = true
	return ws, true
}

// Rename gives a live sheet a new name. The index does not change.
func (wt *WorksheetTable) Rename(oldName, newName string) bool {
	oldKey, newKey := foldName(oldName), foldName(newName)
	index, exists := wt.byName[oldKey]
	if !exists {
		return false
	}
	if other, taken := wt.byName[newKey]; taken && other != index {
		return false
	}
	delete(wt.byName, oldKey)
	wt.byName[newKey] = index
	wt.sheets[index].name = newName
	return true
}

// Lookup returns the live sheet called name.
func (wt *WorksheetTable) Lookup(name string) (*Worksheet, bool) {
	index, exists := wt.byName[foldName(name)]
	if !exists {
		return nil, false
	}
	return wt.sheets[index], true
}

// At returns the sheet at index, tombstones included.
func (wt *WorksheetTable) At(index int) (*Worksheet, bool) {
	if index < 0 || index >= len(wt.sheets) {
		return nil, false
	}
	return wt.sheets[index], true
}

// Live iterates the sheets that have not been removed, in index order.
func (wt *WorksheetTable) Live() iter.Seq[*Worksheet] {
	return func(yield func(*Worksheet) bool) {
		for _, ws := range wt.sheets {
			if ws.deleted {
				continue
			}
			if !yield(ws) {
				return
			}
		}
	}
}

// Len counts all slots, tombstones included.
func (wt *WorksheetTable) Len() int {
	return len(wt.sheets)
}

// ChunkKey represents the key for indexing chunks in Worksheet
type ChunkKey struct {
	ChunkRow int
	ChunkCol int
}

const (
	ChunkRows = 256                   // rows per chunk - power of 2 for efficient modulo
	ChunkCols = 256                   // columns per chunk - matches typical viewport size
	ChunkSize = ChunkRows * ChunkCols // 65536 cells per chunk
)

// Chunk is a 256x256 region of cells in structure-of-arrays layout. Only
// Kinds and the occupancy bitmap exist up front; the payload arrays are
// allocated the first time a cell needs them.
type Chunk struct {
	Kinds          []formula.ValueKind
	NonEmptyCount  int
	OccupiedBitmap []uint64

	Numbers   []float64    // numbers, booleans as 0/1, error codes (lazy)
	StringIDs []uint32     // interned text (lazy)
	Formulas  []formulaRef // formula slot of the cell (lazy)
}

func newChunk() *Chunk {
	return &Chunk{
		Kinds:          make([]formula.ValueKind, ChunkSize),
		OccupiedBitmap: make([]uint64, (ChunkSize+63)/64),
	}
}

// column-first indexing for better cache locality on column scans
func chunkIndex(row, col int) (ChunkKey, int) {
	key := ChunkKey{ChunkRow: row / ChunkRows, ChunkCol: col / ChunkCols}
	return key, (col%ChunkCols)*ChunkRows + row%ChunkRows
}

func (c *Chunk) occupied(idx int) bool {
	return c.OccupiedBitmap[idx/64]&(1<<(idx%64)) != 0
}

func (c *Chunk) setOccupied(idx int, on bool) {
	was := c.occupied(idx)
	if on {
		c.OccupiedBitmap[idx/64] |= 1 << (idx % 64)
	} else {
		c.OccupiedBitmap[idx/64] &^= 1 << (idx % 64)
	}
	switch {
	case on && !was:
		c.NonEmptyCount++
	case !on && was:
		c.NonEmptyCount--
	}
}

type formulaKind uint8

const (
	formulaNone formulaKind = iota
	formulaSingle
	formulaShared
	formulaArray
)

// formulaRef points a cell at its program or at the group arena entry it
// belongs to.
type formulaRef struct {
	kind formulaKind
	id   uint32
}

type sharedEntry struct {
	group   *formula.SharedFormulaGroup
	members int
}

type arrayEntry struct {
	group   *formula.ArrayFormulaGroup
	members int
}

// Worksheet is sparse cell storage for one sheet. Formula cells keep their
// last computed result in the value arrays.
type Worksheet struct {
	name    string
	index   int
	deleted bool

	chunks      map[ChunkKey]*Chunk
	totalCells  int
	cellsByKind [5]int
	strings     *StringTable

	programs map[uint32]*formula.Program
	shared   map[uint32]*sharedEntry
	arrays   map[uint32]*arrayEntry
	nextID   uint32
}

// NewWorksheet creates an empty sheet.
func NewWorksheet(name string, index int, strings *StringTable) *Worksheet {
	return &Worksheet{
		name:     name,
		index:    index,
		chunks:   make(map[ChunkKey]*Chunk),
		strings:  strings,
		programs: make(map[uint32]*formula.Program),
		shared:   make(map[uint32]*sharedEntry),
		arrays:   make(map[uint32]*arrayEntry),
		nextID:   1,
	}
}

func (w *Worksheet) Name() string    { return w.name }
func (w *Worksheet) Index() int      { return w.index }
func (w *Worksheet) IsDeleted() bool { return w.deleted }

func (w *Worksheet) getChunk(key ChunkKey) *Chunk {
	chunk, exists := w.chunks[key]
	if !exists {
		chunk = newChunk()
		w.chunks[key] = chunk
	}
	return chunk
}

// Value returns the stored value (or last result) of a cell.
func (w *Worksheet) Value(row, col int) formula.Value {
	key, idx := chunkIndex(row, col)
	chunk, exists := w.chunks[key]
	if !exists {
		return formula.Blank
	}
	return w.valueAt(chunk, idx)
}

func (w *Worksheet) valueAt(chunk *Chunk, idx int) formula.Value {
	switch chunk.Kinds[idx] {
	case formula.KindNumber:
		return formula.NewNumber(chunk.Numbers[idx])
	case formula.KindBoolean:
		return formula.NewBoolean(chunk.Numbers[idx] != 0)
	case formula.KindError:
		return formula.NewError(formula.ErrorCode(chunk.Numbers[idx]))
	case formula.KindText:
		s, _ := w.strings.Lookup(chunk.StringIDs[idx])
		return formula.NewText(s)
	default:
		return formula.Blank
	}
}

// SetValue stores v without touching the formula slot of the cell.
func (w *Worksheet) SetValue(row, col int, v formula.Value) {
	key, idx := chunkIndex(row, col)
	chunk, exists := w.chunks[key]
	if !exists {
		if v.IsBlank() {
			return
		}
		chunk = w.getChunk(key)
	}
	w.clearValue(chunk, idx)

	kind := v.Kind()
	chunk.Kinds[idx] = kind
	if kind != formula.KindBlank {
		w.cellsByKind[kind]++
	}
	switch kind {
	case formula.KindNumber, formula.KindBoolean, formula.KindError:
		if chunk.Numbers == nil {
			chunk.Numbers = make([]float64, ChunkSize)
		}
		if kind == formula.KindError {
			chunk.Numbers[idx] = float64(v.Code())
		} else {
			chunk.Numbers[idx] = v.Number()
		}
	case formula.KindText:
		if chunk.StringIDs == nil {
			chunk.StringIDs = make([]uint32, ChunkSize)
		}
		chunk.StringIDs[idx] = w.strings.Intern(v.Text())
	}
	w.updateOccupancy(key, chunk, idx)
}

func (w *Worksheet) clearValue(chunk *Chunk, idx int) {
	kind := chunk.Kinds[idx]
	if kind == formula.KindBlank {
		return
	}
	if kind == formula.KindText {
		w.strings.Release(chunk.StringIDs[idx])
		chunk.StringIDs[idx] = 0
	}
	w.cellsByKind[kind]--
	chunk.Kinds[idx] = formula.KindBlank
}

func (w *Worksheet) updateOccupancy(key ChunkKey, chunk *Chunk, idx int) {
	before := chunk.NonEmptyCount
	hasFormula := chunk.Formulas != nil && chunk.Formulas[idx].kind != formulaNone
	chunk.setOccupied(idx, chunk.Kinds[idx] != formula.KindBlank || hasFormula)
	w.totalCells += chunk.NonEmptyCount - before
	if chunk.NonEmptyCount == 0 {
		delete(w.chunks, key)
	}
}

func (w *Worksheet) formulaAt(row, col int) formulaRef {
	key, idx := chunkIndex(row, col)
	chunk, exists := w.chunks[key]
	if !exists || chunk.Formulas == nil {
		return formulaRef{}
	}
	return chunk.Formulas[idx]
}

// setFormulaRef replaces the formula slot of a cell, releasing whatever it
// pointed at before.
func (w *Worksheet) setFormulaRef(row, col int, ref formulaRef) {
	key, idx := chunkIndex(row, col)
	chunk, exists := w.chunks[key]
	if !exists {
		if ref.kind == formulaNone {
			return
		}
		chunk = w.getChunk(key)
	}
	if chunk.Formulas == nil {
		if ref.kind == formulaNone {
			return
		}
		chunk.Formulas = make([]formulaRef, ChunkSize)
	}
	w.releaseFormula(chunk.Formulas[idx])
	chunk.Formulas[idx] = ref
	switch ref.kind {
	case formulaShared:
		w.shared[ref.id].members++
	case formulaArray:
		w.arrays[ref.id].members++
	}
	w.updateOccupancy(key, chunk, idx)
}

func (w *Worksheet) releaseFormula(ref formulaRef) {
	switch ref.kind {
	case formulaSingle:
		delete(w.programs, ref.id)
	case formulaShared:
		if entry := w.shared[ref.id]; entry != nil {
			if entry.members--; entry.members <= 0 {
				delete(w.shared, ref.id)
			}
		}
	case formulaArray:
		if entry := w.arrays[ref.id]; entry != nil {
			if entry.members--; entry.members <= 0 {
				delete(w.arrays, ref.id)
			}
		}
	}
}

func (w *Worksheet) addProgram(prog *formula.Program) formulaRef {
	id := w.nextID
	w.nextID++
	w.programs[id] = prog
	return formulaRef{kind: formulaSingle, id: id}
}

func (w *Worksheet) addSharedGroup(g *formula.SharedFormulaGroup) formulaRef {
	id := w.nextID
	w.nextID++
	w.shared[id] = &sharedEntry{group: g}
	return formulaRef{kind: formulaShared, id: id}
}

func (w *Worksheet) addArrayGroup(g *formula.ArrayFormulaGroup) formulaRef {
	id := w.nextID
	w.nextID++
	w.arrays[id] = &arrayEntry{group: g}
	return formulaRef{kind: formulaArray, id: id}
}

// arrayGroupAt returns the array group covering a cell, if any.
func (w *Worksheet) arrayGroupAt(row, col int) (*formula.ArrayFormulaGroup, bool) {
	ref := w.formulaAt(row, col)
	if ref.kind != formulaArray {
		return nil, false
	}
	entry, ok := w.arrays[ref.id]
	if !ok {
		return nil, false
	}
	return entry.group, true
}

// programAt returns the effective program of a formula cell. Shared members
// get the master rebased onto their position.
func (w *Worksheet) programAt(row, col int) (*formula.Program, error) {
	ref := w.formulaAt(row, col)
	switch ref.kind {
	case formulaSingle:
		return w.programs[ref.id], nil
	case formulaShared:
		return w.shared[ref.id].group.ProgramAt(row, col)
	case formulaArray:
		return w.arrays[ref.id].group.Program, nil
	default:
		return nil, nil
	}
}

// Clear empties a cell, value and formula slot both.
func (w *Worksheet) Clear(row, col int) {
	w.setFormulaRef(row, col, formulaRef{})
	key, idx := chunkIndex(row, col)
	if chunk, exists := w.chunks[key]; exists {
		w.clearValue(chunk, idx)
		w.updateOccupancy(key, chunk, idx)
	}
}

// Cell is one occupied position as reported by Cells.
type Cell struct {
	Row        int
	Col        int
	Value      formula.Value
	HasFormula bool
}

// Cells iterates occupied cells chunk by chunk, each chunk ordered by row,
// then column.
func (w *Worksheet) Cells() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		keys := slices.SortedFunc(maps.Keys(w.chunks), func(a, b ChunkKey) int {
			if a.ChunkRow != b.ChunkRow {
				return a.ChunkRow - b.ChunkRow
			}
			return a.ChunkCol - b.ChunkCol
		})
		var cells []Cell
		for _, key := range keys {
			chunk := w.chunks[key]
			cells = cells[:0]
			for word, bitsSet := range chunk.OccupiedBitmap {
				for bitsSet != 0 {
					idx := word*64 + bits.TrailingZeros64(bitsSet)
					bitsSet &= bitsSet - 1
					cells = append(cells, Cell{
						Row:        key.ChunkRow*ChunkRows + idx%ChunkRows,
						Col:        key.ChunkCol*ChunkCols + idx/ChunkRows,
						Value:      w.valueAt(chunk, idx),
						HasFormula: chunk.Formulas != nil && chunk.Formulas[idx].kind != formulaNone,
					})
				}
			}
			slices.SortFunc(cells, func(a, b Cell) int {
				if a.Row != b.Row {
					return a.Row - b.Row
				}
				return a.Col - b.Col
			})
			for _, c := range cells {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// release drops every string reference held by the sheet.
func (w *Worksheet) release() {
	for _, chunk := range w.chunks {
		if chunk.StringIDs == nil {
			continue
		}
		for idx, kind := range chunk.Kinds {
			if kind == formula.KindText {
				w.strings.Release(chunk.StringIDs[idx])
			}
		}
	}
	w.chunks = make(map[ChunkKey]*Chunk)
	w.programs = make(map[uint32]*formula.Program)
	w.shared = make(map[uint32]*sharedEntry)
	w.arrays = make(map[uint32]*arrayEntry)
	w.totalCells = 0
	w.cellsByKind = [5]int{}
}

// CellCount returns the number of occupied cells.
func (w *Worksheet) CellCount() int {
	return w.totalCells
}

// CellsOfKind counts stored values of one kind. Formula cells count under
// the kind of their last result.
func (w *Worksheet) CellsOfKind(kind formula.ValueKind) int {
	if int(kind) >= len(w.cellsByKind) {
		return 0
	}
	return w.cellsByKind[kind]
}
