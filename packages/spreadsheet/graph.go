package spreadsheet

import (
	"cmp"
	"maps"
	"slices"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// DependencyNode is a formula cell in the dependency graph.
type DependencyNode struct {
	Address formula.Address

	// ranges this cell reads; single cells are 1x1 ranges
	Precedents []formula.CellRange

	Volatile bool
	IsDirty  bool
}

// DependencyGraph tracks which formula cells read which ranges so that a
// change can be pushed to the cells that observe it, and so that Calculate
// can evaluate precedents first.
type DependencyGraph struct {
	nodes          map[formula.Address]*DependencyNode
	rangeObservers map[formula.CellRange]map[formula.Address]struct{}
	dirtySet       map[formula.Address]struct{}
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:          make(map[formula.Address]*DependencyNode),
		rangeObservers: make(map[formula.CellRange]map[formula.Address]struct{}),
		dirtySet:       make(map[formula.Address]struct{}),
	}
}

// SetPrecedents registers addr as a formula cell reading ranges, replacing
// whatever it read before. The cell is marked dirty.
func (dg *DependencyGraph) SetPrecedents(addr formula.Address, ranges []formula.CellRange, volatile bool) {
	dg.clearPrecedents(addr)

	node, exists := dg.nodes[addr]
	if !exists {
		node = &DependencyNode{Address: addr}
		dg.nodes[addr] = node
	}
	node.Precedents = ranges
	node.Volatile = volatile
	for _, rng := range ranges {
		if dg.rangeObservers[rng] == nil {
			dg.rangeObservers[rng] = make(map[formula.Address]struct{})
		}
		dg.rangeObservers[rng][addr] = struct{}{}
	}
	dg.MarkDirty(addr)
}

func (dg *DependencyGraph) clearPrecedents(addr formula.Address) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	for _, rng := range node.Precedents {
		if observers, exists := dg.rangeObservers[rng]; exists {
			delete(observers, addr)
			if len(observers) == 0 {
				delete(dg.rangeObservers, rng)
			}
		}
	}
	node.Precedents = nil
}

// RemoveNode forgets a formula cell. Cells observing it are not touched;
// callers mark them with MarkAffected.
func (dg *DependencyGraph) RemoveNode(addr formula.Address) bool {
	if _, exists := dg.nodes[addr]; !exists {
		return false
	}
	dg.clearPrecedents(addr)
	delete(dg.dirtySet, addr)
	delete(dg.nodes, addr)
	return true
}

// RemoveSheet drops every node on sheet and marks the cells that read
// from it dirty.
func (dg *DependencyGraph) RemoveSheet(sheet int) {
	for addr := range dg.nodes {
		if addr.Sheet == sheet {
			dg.RemoveNode(addr)
		}
	}
	for rng, observers := range dg.rangeObservers {
		if rng.Sheet != sheet {
			continue
		}
		for addr := range observers {
			dg.MarkDirty(addr)
		}
	}
}

// GetNode retrieves a node if it exists
func (dg *DependencyGraph) GetNode(addr formula.Address) (*DependencyNode, bool) {
	node, exists := dg.nodes[addr]
	return node, exists
}

// MarkDirty marks a formula cell as needing recalculation.
func (dg *DependencyGraph) MarkDirty(addr formula.Address) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	node.IsDirty = true
	dg.dirtySet[addr] = struct{}{}
}

// MarkAffected marks every formula cell that directly or transitively
// reads addr.
func (dg *DependencyGraph) MarkAffected(addr formula.Address) {
	for _, dep := range dg.GetAffectedCells(addr) {
		dg.MarkDirty(dep)
	}
}

// MarkAllDirty schedules every formula cell. Structural changes such as
// removing a sheet or redefining a name use it.
func (dg *DependencyGraph) MarkAllDirty() {
	for addr := range dg.nodes {
		dg.MarkDirty(addr)
	}
}

// MarkAllVolatileDirty marks all volatile cells, and the cells reading
// them, as dirty for recalculation
func (dg *DependencyGraph) MarkAllVolatileDirty() {
	for addr, node := range dg.nodes {
		if node.Volatile {
			dg.MarkDirty(addr)
			dg.MarkAffected(addr)
		}
	}
}

// ClearDirty clears the dirty flag for a cell
func (dg *DependencyGraph) ClearDirty(addr formula.Address) {
	delete(dg.dirtySet, addr)
	if node, exists := dg.nodes[addr]; exists {
		node.IsDirty = false
	}
}

func (dg *DependencyGraph) IsDirty(addr formula.Address) bool {
	_, dirty := dg.dirtySet[addr]
	return dirty
}

// DirtyCells returns the dirty set ordered by sheet, row, then column.
func (dg *DependencyGraph) DirtyCells() []formula.Address {
	return slices.SortedFunc(maps.Keys(dg.dirtySet), compareAddress)
}

func compareAddress(a, b formula.Address) int {
	if c := cmp.Compare(a.Sheet, b.Sheet); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Row, b.Row); c != 0 {
		return c
	}
	return cmp.Compare(a.Col, b.Col)
}

// GetDirectDependents returns the formula cells reading addr.
func (dg *DependencyGraph) GetDirectDependents(addr formula.Address) []formula.Address {
	seen := make(map[formula.Address]struct{})
	for rng, observers := range dg.rangeObservers {
		if !rng.Contains(addr.Sheet, addr.Row, addr.Col) {
			continue
		}
		for observer := range observers {
			seen[observer] = struct{}{}
		}
	}
	return slices.SortedFunc(maps.Keys(seen), compareAddress)
}

// GetAffectedCells returns the transitive closure of GetDirectDependents.
func (dg *DependencyGraph) GetAffectedCells(addr formula.Address) []formula.Address {
	visited := make(map[formula.Address]struct{})
	queue := []formula.Address{addr}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, dep := range dg.GetDirectDependents(next) {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}
	return slices.SortedFunc(maps.Keys(visited), compareAddress)
}

// GetPrecedentCells returns the formula cells inside the ranges addr
// reads, in a deterministic order.
func (dg *DependencyGraph) GetPrecedentCells(addr formula.Address) []formula.Address {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	seen := make(map[formula.Address]struct{})
	for _, rng := range node.Precedents {
		// walk whichever side is smaller: the range or the node set
		if rng.Rows()*rng.Cols() <= len(dg.nodes) {
			for row := rng.FirstRow; row <= rng.LastRow; row++ {
				for col := rng.FirstCol; col <= rng.LastCol; col++ {
					cell := formula.Address{Sheet: rng.Sheet, Row: row, Col: col}
					if _, isFormula := dg.nodes[cell]; isFormula {
						seen[cell] = struct{}{}
					}
				}
			}
			continue
		}
		for cell := range dg.nodes {
			if rng.Contains(cell.Sheet, cell.Row, cell.Col) {
				seen[cell] = struct{}{}
			}
		}
	}
	return slices.SortedFunc(maps.Keys(seen), compareAddress)
}

// calculationOrder returns all formula cells with precedents before
// dependents, and whether a cycle was found.
func (dg *DependencyGraph) calculationOrder() ([]formula.Address, bool) {
	// three states: unvisited (not in map), visiting (false), visited (true)
	state := make(map[formula.Address]bool)
	var order []formula.Address
	cyclic := false

	var visit func(addr formula.Address)
	visit = func(addr formula.Address) {
		if completed, exists := state[addr]; exists {
			if !completed {
				cyclic = true
			}
			return
		}
		state[addr] = false
		for _, precedent := range dg.GetPrecedentCells(addr) {
			visit(precedent)
		}
		state[addr] = true
		order = append(order, addr)
	}

	for _, addr := range slices.SortedFunc(maps.Keys(dg.nodes), compareAddress) {
		visit(addr)
	}
	return order, cyclic
}

// hasCycle checks if there are circular dependencies
func (dg *DependencyGraph) hasCycle() bool {
	_, cyclic := dg.calculationOrder()
	return cyclic
}

// NodeCount returns the number of formula cells in the graph.
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.nodes)
}

// rangeObserverCount returns the number of observed ranges
func (dg *DependencyGraph) rangeObserverCount() int {
	return len(dg.rangeObservers)
}
