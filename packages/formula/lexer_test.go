package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, 0, len(tokens))
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	return types
}

func TestLexerTokenSequences(t *testing.T) {
	tests := []struct {
		formula string
		want    []TokenType
	}{
		{"=1+2", []TokenType{TokenEquals, TokenNumber, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"1+2", []TokenType{TokenNumber, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"=-A1", []TokenType{TokenEquals, TokenUnaryPrefixOp, TokenCell, TokenEOF}},
		{"=A1-1", []TokenType{TokenEquals, TokenCell, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"=SUM(A1:B2)", []TokenType{TokenEquals, TokenFunction, TokenLeftParen, TokenRange, TokenRightParen, TokenEOF}},
		{"=A1*10%", []TokenType{TokenEquals, TokenCell, TokenBinaryOp, TokenNumber, TokenUnaryPostfixOp, TokenEOF}},
		{`="a""b"`, []TokenType{TokenEquals, TokenString, TokenEOF}},
		{"=#N/A", []TokenType{TokenEquals, TokenErrorValue, TokenEOF}},
		{"=true", []TokenType{TokenEquals, TokenBoolean, TokenEOF}},
		{"=Rate*2", []TokenType{TokenEquals, TokenName, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"=IF(A1;1;2)", []TokenType{
			TokenEquals, TokenFunction, TokenLeftParen, TokenCell, TokenComma,
			TokenNumber, TokenComma, TokenNumber, TokenRightParen, TokenEOF,
		}},
		{"=A1 = B1", []TokenType{TokenEquals, TokenCell, TokenBinaryOp, TokenCell, TokenEOF}},
		{"=A1 :B2", []TokenType{TokenEquals, TokenRange, TokenEOF}},
		{"=SUM(A1 : $B$2)", []TokenType{TokenEquals, TokenFunction, TokenLeftParen, TokenRange, TokenRightParen, TokenEOF}},
		{"=A1:Data!B2", []TokenType{TokenEquals, TokenCell, TokenBinaryOp, TokenCell, TokenEOF}},
		{"=A1 +B2", []TokenType{TokenEquals, TokenCell, TokenBinaryOp, TokenCell, TokenEOF}},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			tokens, err := NewLexer(tt.formula).Tokenize()
			require.NoError(t, err)
			assert.Equal(t, tt.want, tokenTypes(tokens))
		})
	}
}

func TestLexerReferences(t *testing.T) {
	t.Run("absolute markers", func(t *testing.T) {
		tokens, err := NewLexer("=$B$3").Tokenize()
		require.NoError(t, err)
		ref := tokens[1].Ref
		require.NotNil(t, ref)
		assert.Equal(t, CellRef{Row: 2, Col: 1, RowAbs: true, ColAbs: true}, ref.First)
		assert.False(t, ref.Qualified)
	})

	t.Run("quoted sheet", func(t *testing.T) {
		tokens, err := NewLexer("='My ''Data'''!A1:B2").Tokenize()
		require.NoError(t, err)
		ref := tokens[1].Ref
		assert.Equal(t, TokenRange, tokens[1].Type)
		assert.Equal(t, "My 'Data'", ref.Sheet)
		assert.True(t, ref.Area)
	})

	t.Run("three dimensional", func(t *testing.T) {
		tokens, err := NewLexer("=SUM(Jan:Mar!B2)").Tokenize()
		require.NoError(t, err)
		ref := tokens[3].Ref
		assert.Equal(t, "Jan", ref.Sheet)
		assert.Equal(t, "Mar", ref.LastSheet)
	})

	t.Run("spaced colon", func(t *testing.T) {
		tokens, err := NewLexer("=Data!A1 :  B2").Tokenize()
		require.NoError(t, err)
		ref := tokens[1].Ref
		assert.Equal(t, TokenRange, tokens[1].Type)
		assert.Equal(t, "Data", ref.Sheet)
		assert.Equal(t, CellRef{Row: 1, Col: 1}, ref.Last)
	})

	t.Run("cell before a qualified cell", func(t *testing.T) {
		tokens, err := NewLexer("=A1:Data!B2").Tokenize()
		require.NoError(t, err)
		assert.False(t, tokens[1].Ref.Qualified)
		assert.Equal(t, "Data", tokens[3].Ref.Sheet)
	})

	t.Run("function prefixes are stripped", func(t *testing.T) {
		tokens, err := NewLexer("=_xlfn.MINIFS(A1:A2,B1:B2,1)").Tokenize()
		require.NoError(t, err)
		assert.Equal(t, "MINIFS", tokens[1].Value)
	})
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		formula string
		kind    string
	}{
		{`="open`, "syntax"},
		{"=(1+2", "parens"},
		{"=1+2)", "parens"},
		{"=1 2", "syntax"},
		{"=#BOGUS", "syntax"},
		{"=Sheet1!XFE1", "bounds"},
		{"=A1:XFE1", "bounds"},
		{"=A1 : XFE1", "bounds"},
		{"=1+", "syntax"},
		{"=@", "syntax"},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			_, err := NewLexer(tt.formula).Tokenize()
			require.Error(t, err)
			require.True(t, IsParseError(err))
			switch tt.kind {
			case "parens":
				assert.True(t, IsParseErrorKind(err, ErrUnbalancedParens), err.Error())
			case "bounds":
				assert.True(t, IsParseErrorKind(err, ErrReferenceOutOfBounds), err.Error())
			default:
				assert.True(t, IsParseErrorKind(err, ErrSyntax), err.Error())
			}
		})
	}
}
