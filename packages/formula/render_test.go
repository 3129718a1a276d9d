package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderFormulaText(t *testing.T) {
	g := newMemGrid("Sheet1", "My Data", "Jan", "Mar")
	g.names["RATE"] = Reference{Kind: RefCell}

	tests := []struct {
		formula string
		want    string
	}{
		{"=1+2*3", "1+2*3"},
		{"= ( 1 + 2 ) * 3", "(1+2)*3"},
		{"=-A1%", "-A1%"},
		{"=$A$1+B$2+$C3", "$A$1+B$2+$C3"},
		{`="say ""hi"""&A1`, `="say ""hi"""&A1`[1:]},
		{"='My Data'!A1:B2", "'My Data'!A1:B2"},
		{"=SUM(Jan:Mar!B2)", "SUM(Jan:Mar!B2)"},
		{"=IF(A1,,2)", "IF(A1,,2)"},
		{"=PI()", "PI()"},
		{"=#N/A", "#N/A"},
		{"=TRUE<>FALSE", "TRUE<>FALSE"},
		{"=rate*0.5", "rate*0.5"},
		{"=_xlfn.MINIFS(A1:A3;B1:B3;\">1\")", `MINIFS(A1:A3,B1:B3,">1")`},
		{"=1E+25", "1E+25"},
		{"=A1 :B2", "A1:B2"},
		{"=SUM(A1: B2)", "SUM(A1:B2)"},
		{"=SUM(A1 : B2)", "SUM(A1:B2)"},
		{"=A1 :B2:C3", "A1:B2:C3"},
		{"=Mar!A1 : B2", "Mar!A1:B2"},
		{"=A1:Mar!B2", "A1:Mar!B2"},
		{"=Jan!A1:Mar!B2", "Jan!A1:Mar!B2"},
		{"=Jan!A1:Sheet1!B2", "Jan!A1:Sheet1!B2"},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			prog := mustParse(t, g, tt.formula)
			text := RenderFormulaText(prog)
			assert.Equal(t, tt.want, text)

			// rendering is stable under re-parsing
			again := mustParse(t, g, "="+text)
			assert.True(t, prog.Equal(again), "%s re-parsed differently", text)
		})
	}

	assert.Equal(t, "", RenderFormulaText(nil))
}

func TestProgramReferences(t *testing.T) {
	prog := mustParse(t, nil, "=SUM(A1:B2)+C3*MAX(D4,1)")
	refs := prog.References()
	require.Len(t, refs, 3)
	assert.Equal(t, "A1:B2", refs[0].String())
	assert.Equal(t, "C3", refs[1].String())
	assert.Equal(t, "D4", refs[2].String())
	assert.Equal(t, []string{"SUM", "MAX"}, prog.Functions())
}
