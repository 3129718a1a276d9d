package spreadsheet

import (
	"maps"
	"slices"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// DefinedName is a workbook-level name bound to a single reference.
type DefinedName struct {
	Name      string
	Reference formula.Reference
}

// NameTable holds the defined names of a workbook, keyed case-insensitively.
type NameTable struct {
	names map[string]DefinedName
}

// NewNameTable creates an empty table.
func NewNameTable() *NameTable {
	return &NameTable{
		names: make(map[string]DefinedName),
	}
}

// Define binds name to ref, replacing any previous binding. It reports
// whether the name is new.
func (nt *NameTable) Define(name string, ref formula.Reference) bool {
	key := foldName(name)
	_, existed := nt.names[key]
	nt.names[key] = DefinedName{Name: name, Reference: ref}
	return !existed
}

// Undefine removes name and reports whether it was defined.
func (nt *NameTable) Undefine(name string) bool {
	key := foldName(name)
	if _, exists := nt.names[key]; !exists {
		return false
	}
	delete(nt.names, key)
	return true
}

// Lookup returns the binding of name.
func (nt *NameTable) Lookup(name string) (DefinedName, bool) {
	dn, exists := nt.names[foldName(name)]
	return dn, exists
}

// Names returns the defined names in the spelling they were defined with,
// sorted.
func (nt *NameTable) Names() []string {
	result := make([]string, 0, len(nt.names))
	for _, key := range slices.Sorted(maps.Keys(nt.names)) {
		result = append(result, nt.names[key].Name)
	}
	return result
}

func (nt *NameTable) Len() int {
	return len(nt.names)
}
