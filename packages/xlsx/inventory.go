package xlsx

import (
	"cmp"
	"slices"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/xuri/efp"
)

// FunctionCount is one line of a function inventory.
type FunctionCount struct {
	Name      string
	Count     int
	Supported bool
}

var functionPrefixes = []string{"_XLFN._XLWS.", "_XLFN.", "_XLWS."}

func normalizeFunction(name string) string {
	upper := strings.ToUpper(name)
	for _, prefix := range functionPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return upper[len(prefix):]
		}
	}
	return upper
}

// functionNames lists the functions called in text, in order of
// appearance. The text is tokenized with efp so that formulas the engine
// rejects can still be inspected.
func functionNames(text string) []string {
	ps := efp.ExcelParser()
	var names []string
	for _, token := range ps.Parse(text) {
		if token.TType != efp.TokenTypeFunction || token.TSubType != efp.TokenSubTypeStart {
			continue
		}
		// efp opens array constants as pseudo functions
		if token.TValue == "ARRAY" || token.TValue == "ARRAYROW" {
			continue
		}
		names = append(names, normalizeFunction(token.TValue))
	}
	return names
}

func unsupportedFunctions(text string, funcs *formula.BuiltInFunctions) []string {
	var missing []string
	for _, name := range functionNames(text) {
		if _, ok := funcs.Lookup(name); !ok && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// FunctionInventory counts the function calls in formulas, most used
// first.
func FunctionInventory(formulas []string, funcs *formula.BuiltInFunctions) []FunctionCount {
	counts := make(map[string]int)
	for _, text := range formulas {
		for _, name := range functionNames(strings.TrimPrefix(text, "=")) {
			counts[name]++
		}
	}

	inventory := make([]FunctionCount, 0, len(counts))
	for name, count := range counts {
		_, supported := funcs.Lookup(name)
		inventory = append(inventory, FunctionCount{Name: name, Count: count, Supported: supported})
	}
	slices.SortFunc(inventory, func(a, b FunctionCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return inventory
}

// Inventory counts the functions of every formula in the file, skipped
// ones included.
func (w *Workbook) Inventory() []FunctionCount {
	texts := make([]string, 0, len(w.Formulas)+len(w.Skipped))
	for _, fc := range w.Formulas {
		texts = append(texts, fc.Formula)
	}
	for _, skip := range w.Skipped {
		texts = append(texts, skip.Text)
	}
	return FunctionInventory(texts, w.Engine().Functions())
}
