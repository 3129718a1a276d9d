package formula

import "testing"

// Sheets are deliberately not in name order: flattening follows the sheet
// index, so Zed comes before Alpha.
func TestModeThreeDimensionalOrder(t *testing.T) {
	g := newMemGrid("Sheet1", "Zed", "Alpha", "Mid")
	g.set(t, "Zed!A1", NewNumber(5))
	g.set(t, "Zed!A2", NewNumber(7))
	g.set(t, "Alpha!A1", NewNumber(7))
	g.set(t, "Alpha!A2", NewNumber(5))
	g.set(t, "Mid!A1", NewNumber(9))
	g.set(t, "Mid!A2", NewNumber(1))

	tests := []struct {
		formula string
		want    Value
	}{
		{"=MODE(Zed:Mid!A1:A2)", NewNumber(5)},
		{"=MODE(Mid:Zed!A1:A2)", NewNumber(5)},
		{"=MODE(Alpha:Mid!A1:A2)", NewError(ErrorCodeNA)},
		{"=MODE(Alpha:Mid!A1:A2,Zed!A2)", NewNumber(7)},
		{"=MODE(Alpha:Mid!A1:A2,Zed!A1)", NewNumber(5)},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			assertValue(t, tt.want, g.eval(t, "H1", tt.formula))
		})
	}
}
