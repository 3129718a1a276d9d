package spreadsheet

// StringTable interns the text of cell values. Every stored text cell holds
// one reference to its entry; entries are dropped when the last cell lets go.
type StringTable struct {
	ids       map[string]uint32
	values    map[uint32]string
	refCounts map[uint32]int
	nextID    uint32
}

// NewStringTable creates an empty table. ID 0 is reserved for "no string".
func NewStringTable() *StringTable {
	return &StringTable{
		ids:       make(map[string]uint32),
		values:    make(map[uint32]string),
		refCounts: make(map[uint32]int),
		nextID:    1,
	}
}

// Intern returns the ID of s, adding it or taking another reference.
func (st *StringTable) Intern(s string) uint32 {
	if id, exists := st.ids[s]; exists {
		st.refCounts[id]++
		return id
	}

	id := st.nextID
	st.ids[s] = id
	st.values[id] = s
	st.refCounts[id] = 1
	st.nextID++
	return id
}

// Lookup returns the string stored under id.
func (st *StringTable) Lookup(id uint32) (string, bool) {
	s, exists := st.values[id]
	return s, exists
}

// Release drops one reference to id and reports whether the entry was
// removed.
func (st *StringTable) Release(id uint32) bool {
	s, exists := st.values[id]
	if !exists {
		return false
	}

	st.refCounts[id]--
	if st.refCounts[id] > 0 {
		return false
	}
	delete(st.ids, s)
	delete(st.values, id)
	delete(st.refCounts, id)
	return true
}

// References returns how many cells hold id.
func (st *StringTable) References(id uint32) int {
	return st.refCounts[id]
}

// Count returns the number of distinct strings.
func (st *StringTable) Count() int {
	return len(st.ids)
}
