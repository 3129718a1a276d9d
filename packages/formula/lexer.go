package formula

import (
	"strings"
	"unicode"

	goerrors "gopkg.in/src-d/go-errors.v1"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenEquals
	TokenNumber
	TokenString
	TokenBoolean
	TokenErrorValue
	TokenCell
	TokenRange
	TokenName
	TokenFunction
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenLeftParen
	TokenRightParen
	TokenWhitespace
	TokenError
)

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charApostrophe = '\''
	charPercent    = '%'
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charSemicolon  = ';'
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charExclaim    = '!'
	charDollar     = '$'
	charHash       = '#'
	charBackslash  = '\\'
)

// functionPrefixes are written by newer Excel versions in front of
// functions that older readers do not know.
var functionPrefixes = []string{"_xlfn._xlws.", "_xlfn.", "_xlws."}

// TokenState represents the lexer state for validation
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterEquals
	StateAfterValue
	StateAfterOperator
	StateAfterFunction
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
)

var operandTokens = map[TokenType]bool{
	TokenNumber:        true,
	TokenString:        true,
	TokenBoolean:       true,
	TokenErrorValue:    true,
	TokenCell:          true,
	TokenRange:         true,
	TokenName:          true,
	TokenFunction:      true,
	TokenLeftParen:     true,
	TokenUnaryPrefixOp: true,
}

// tokenTransitions maps the current state to valid next token types
var tokenTransitions = map[TokenState]map[TokenType]bool{
	StateStart:         withOperands(TokenEquals),
	StateAfterEquals:   withOperands(),
	StateAfterOperator: withOperands(),
	StateAfterValue: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenComma:          true,
		TokenEOF:            true,
	},
	StateAfterFunction: {
		TokenLeftParen: true,
	},
	// empty arguments are legal, so a separator or a closing paren may
	// directly follow an opening paren or another separator
	StateAfterLeftParen:  withOperands(TokenRightParen, TokenComma),
	StateAfterComma:      withOperands(TokenRightParen, TokenComma),
	StateAfterRightParen: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenComma:          true,
		TokenEOF:            true,
	},
}

func withOperands(extra ...TokenType) map[TokenType]bool {
	m := make(map[TokenType]bool, len(operandTokens)+len(extra))
	for t := range operandTokens {
		m[t] = true
	}
	for _, t := range extra {
		m[t] = true
	}
	return m
}

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune position in input
	Ref   *refText
	kind  *goerrors.Kind // failure kind of TokenError, ErrSyntax when nil
}

// refText is a reference as written, before sheet names are resolved.
type refText struct {
	Sheet     string
	LastSheet string
	Qualified bool
	First     CellRef
	Last      CellRef
	Area      bool
}

// Lexer tokenizes spreadsheet formula expressions
type Lexer struct {
	input      string
	runes      []rune
	pos        int
	state      TokenState
	parenDepth int
	tokens     []Token
}

// NewLexer creates a new lexer for the given formula input. A leading '='
// is optional.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		runes:  []rune(input),
		state:  StateStart,
		tokens: []Token{},
	}
}

// Tokenize tokenizes the entire input. The returned error is a
// *FormulaParseError.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		tok := l.nextToken()
		if tok.Type == TokenError {
			kind := ErrSyntax
			if tok.kind != nil {
				kind = tok.kind
			}
			return nil, newParseError(l.input, tok.Pos, kind.New(tok.Value))
		}
		if tok.Type == TokenWhitespace {
			continue
		}
		if !l.validateTransition(tok.Type) {
			if tok.Type == TokenEOF {
				return nil, newParseError(l.input, tok.Pos, ErrSyntax.New("unexpected end of formula"))
			}
			return nil, newParseError(l.input, tok.Pos, ErrSyntax.New("unexpected token: "+tok.Value))
		}
		if tok.Type == TokenRightParen && l.parenDepth < 0 {
			return nil, newParseError(l.input, tok.Pos, ErrUnbalancedParens.New("too many closing parentheses"))
		}
		l.tokens = append(l.tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
		l.updateState(tok.Type)
	}

	if l.parenDepth > 0 {
		return nil, newParseError(l.input, l.pos, ErrUnbalancedParens.New("missing closing parenthesis"))
	}
	return l.tokens, nil
}

// validateTransition checks if the token type is valid in current state
func (l *Lexer) validateTransition(tokenType TokenType) bool {
	validTokens, exists := tokenTransitions[l.state]
	if !exists {
		return false
	}
	return validTokens[tokenType]
}

// updateState updates the lexer state based on the token type
func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenEquals:
		l.state = StateAfterEquals
	case TokenNumber, TokenString, TokenBoolean, TokenErrorValue, TokenCell, TokenRange, TokenName:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenUnaryPostfixOp:
		l.state = StateAfterValue
	case TokenFunction:
		l.state = StateAfterFunction
	case TokenLeftParen:
		l.state = StateAfterLeftParen
	case TokenRightParen:
		l.state = StateAfterRightParen
	case TokenComma:
		l.state = StateAfterComma
	}
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() Token {
	if l.skipWhitespace() {
		return Token{Type: TokenWhitespace, Pos: l.pos}
	}

	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	startPos := l.pos
	ch := l.current()

	if ch == charQuote {
		return l.scanString()
	}

	if ch == charApostrophe {
		return l.scanQuotedSheetRef()
	}

	if ch == charHash {
		return l.scanErrorLiteral()
	}

	if isDigit(ch) || (ch == charPeriod && isDigit(l.peek(1))) {
		// 1:3 style row ranges are not supported, a digit always starts a number
		return l.scanNumber()
	}

	switch ch {
	case charLParen:
		l.pos++
		l.parenDepth++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}
	case charRParen:
		l.pos++
		l.parenDepth--
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}
	case charComma, charSemicolon:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos}
	case charColon:
		// range operator between two reference expressions
		l.pos++
		return Token{Type: TokenBinaryOp, Value: ":", Pos: startPos}
	case charPlus, charMinus:
		return l.scanUnaryPrefixOrBinaryOp()
	case charAsterisk, charSlash, charCaret, charAmpersand, charLess, charGreater:
		return l.scanBinaryOp()
	case charPercent:
		l.pos++
		return Token{Type: TokenUnaryPostfixOp, Value: "%", Pos: startPos}
	case charEqual:
		l.pos++
		// distinguish between formula prefix = and comparison operator =
		if l.state == StateStart {
			return Token{Type: TokenEquals, Value: "=", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: "=", Pos: startPos}
	}

	if isIdentRune(ch) || ch == charDollar {
		return l.scanWord()
	}

	l.pos++
	return Token{Type: TokenError, Value: "unexpected character: " + string(ch), Pos: startPos}
}

// helper methods for character navigation and classification

func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() bool {
	start := l.pos
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charSpace || ch == charTab || ch == charNewline || ch == charReturn {
			l.pos++
		} else {
			break
		}
	}
	return l.pos > start
}

func isIdentRune(ch rune) bool {
	return unicode.IsLetter(ch) || isDigit(ch) || ch == charUnderscore || ch == charPeriod || ch == charBackslash
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	for isDigit(l.current()) {
		l.pos++
	}

	if l.current() == charPeriod {
		l.pos++
		for isDigit(l.current()) {
			l.pos++
		}
	}

	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++
		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}
		if !isDigit(l.current()) {
			// not scientific notation, restore position
			l.pos = savedPos
		} else {
			for isDigit(l.current()) {
				l.pos++
			}
		}
	}

	return Token{Type: TokenNumber, Value: l.substring(startPos, l.pos), Pos: startPos}
}

// scanString scans a string literal with support for double-quote escapes
func (l *Lexer) scanString() Token {
	startPos := l.pos
	l.pos++ // consume opening quote

	var result []rune
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charQuote {
			if l.peek(1) == charQuote {
				result = append(result, charQuote)
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TokenString, Value: string(result), Pos: startPos}
		}
		result = append(result, ch)
		l.pos++
	}
	return Token{Type: TokenError, Value: "unclosed string literal", Pos: startPos}
}

// scanErrorLiteral scans #DIV/0! and friends.
func (l *Lexer) scanErrorLiteral() Token {
	startPos := l.pos
	code, n := matchErrorLiteral(l.substring(l.pos, min(l.pos+8, len(l.runes))))
	if code == ErrorCodeNone {
		l.pos++
		return Token{Type: TokenError, Value: "unknown error literal", Pos: startPos}
	}
	l.pos += n
	return Token{Type: TokenErrorValue, Value: ErrorMapper[code], Pos: startPos}
}

// scanRawWord consumes identifier runes and $ markers.
func (l *Lexer) scanRawWord() string {
	start := l.pos
	for isIdentRune(l.current()) || l.current() == charDollar {
		l.pos++
	}
	return l.substring(start, l.pos)
}

// scanWord scans names, functions, booleans and unquoted references.
func (l *Lexer) scanWord() Token {
	startPos := l.pos
	word := l.scanRawWord()

	// Sheet1!A1
	if l.current() == charExclaim {
		if strings.ContainsRune(word, charDollar) {
			return Token{Type: TokenError, Value: "invalid sheet name: " + word, Pos: startPos}
		}
		l.pos++
		return l.scanQualifiedRef(startPos, word, word)
	}

	// Sheet1:Sheet3!A1, only when a second word is followed by '!'. A1:Other!B2
	// is a range between two cells, unquoted sheet names never read as cells.
	_, isCell := ParseCellName(word)
	if l.current() == charColon && !isCell && !strings.ContainsRune(word, charDollar) {
		saved := l.pos
		l.pos++
		second := l.scanRawWord()
		if second != "" && l.current() == charExclaim && !strings.ContainsRune(second, charDollar) {
			l.pos++
			return l.scanQualifiedRef(startPos, word, second)
		}
		l.pos = saved
	}

	if first, ok := ParseCellName(word); ok && l.current() != charLParen {
		return l.finishRef(startPos, &refText{First: first, Last: first})
	}

	upper := strings.ToUpper(word)
	if l.current() == charLParen {
		for _, prefix := range functionPrefixes {
			if strings.HasPrefix(upper, strings.ToUpper(prefix)) {
				upper = upper[len(prefix):]
				break
			}
		}
		return Token{Type: TokenFunction, Value: upper, Pos: startPos}
	}

	if upper == "TRUE" || upper == "FALSE" {
		return Token{Type: TokenBoolean, Value: upper, Pos: startPos}
	}

	if strings.ContainsRune(word, charDollar) || isDigit([]rune(word)[0]) {
		return Token{Type: TokenError, Value: "invalid reference: " + word, Pos: startPos}
	}
	return Token{Type: TokenName, Value: word, Pos: startPos}
}

// scanQuotedSheetRef scans 'My Sheet'!A1 and 'First:Last'!A1:B2.
func (l *Lexer) scanQuotedSheetRef() Token {
	startPos := l.pos
	l.pos++ // consume opening quote

	var name []rune
	for {
		if l.pos >= len(l.runes) {
			return Token{Type: TokenError, Value: "unclosed sheet name", Pos: startPos}
		}
		ch := l.current()
		if ch == charApostrophe {
			if l.peek(1) == charApostrophe {
				name = append(name, charApostrophe)
				l.pos += 2
				continue
			}
			l.pos++
			break
		}
		name = append(name, ch)
		l.pos++
	}

	if l.current() != charExclaim {
		return Token{Type: TokenError, Value: "expected ! after sheet name", Pos: startPos}
	}
	l.pos++

	first, last := string(name), string(name)
	if i := strings.IndexRune(first, charColon); i >= 0 {
		first, last = first[:i], first[i+1:]
	}
	return l.scanQualifiedRef(startPos, first, last)
}

// scanQualifiedRef scans the cell part after "sheet!".
func (l *Lexer) scanQualifiedRef(startPos int, sheet, lastSheet string) Token {
	if sheet == "" || lastSheet == "" {
		return Token{Type: TokenError, Value: "empty sheet name", Pos: startPos}
	}
	cellStart := l.pos
	word := l.scanRawWord()
	first, ok := ParseCellName(word)
	if !ok {
		if looksLikeCell(word) {
			return Token{Type: TokenError, Value: word, Pos: cellStart, kind: ErrReferenceOutOfBounds}
		}
		if l.current() == charHash {
			return Token{Type: TokenError, Value: "reference to a deleted area", Pos: cellStart}
		}
		return Token{Type: TokenError, Value: "invalid cell reference after sheet: " + word, Pos: cellStart}
	}
	return l.finishRef(startPos, &refText{
		Sheet:     sheet,
		LastSheet: lastSheet,
		Qualified: true,
		First:     first,
		Last:      first,
	})
}

// finishRef extends a cell reference into an area when ':' and a second
// unqualified cell follow. Whitespace around the colon is dropped, so
// "A1 : B2" is the same area as "A1:B2".
func (l *Lexer) finishRef(startPos int, ref *refText) Token {
	end := l.pos
	l.skipWhitespace()
	if l.current() == charColon {
		l.pos++
		l.skipWhitespace()
		wordStart := l.pos
		word := l.scanRawWord()
		// Other!B2 and B2(...) are not the second corner
		if l.current() != charExclaim && l.current() != charLParen {
			if last, ok := ParseCellName(word); ok {
				ref.Last = last
				ref.Area = true
				return Token{Type: TokenRange, Value: l.substring(startPos, l.pos), Pos: startPos, Ref: ref}
			}
			if looksLikeCell(word) {
				return Token{Type: TokenError, Value: word, Pos: wordStart, kind: ErrReferenceOutOfBounds}
			}
		}
	}
	l.pos = end
	return Token{Type: TokenCell, Value: l.substring(startPos, l.pos), Pos: startPos, Ref: ref}
}

// scanUnaryPrefixOrBinaryOp scans + and - which can be either unary
// prefix or binary
func (l *Lexer) scanUnaryPrefixOrBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	if l.isUnaryContext() {
		return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: startPos}
	}
	return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
}

// scanBinaryOp scans binary operators
func (l *Lexer) scanBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	switch ch {
	case charLess:
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<=", Pos: startPos}
		}
		if l.current() == charGreater {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<>", Pos: startPos}
		}
	case charGreater:
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: ">=", Pos: startPos}
		}
	}
	return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
}

// isUnaryContext checks if the current context allows for unary operators
func (l *Lexer) isUnaryContext() bool {
	switch l.state {
	case StateStart, StateAfterEquals, StateAfterOperator, StateAfterLeftParen, StateAfterComma:
		return true
	default:
		return false
	}
}

// looksLikeCell reports whether s has the letters-then-digits shape of a
// cell reference, regardless of bounds.
func looksLikeCell(s string) bool {
	s = strings.TrimPrefix(s, "$")
	i := 0
	for i < len(s) && isASCIILetter(rune(s[i])) {
		i++
	}
	if i == 0 {
		return false
	}
	if i < len(s) && s[i] == '$' {
		i++
	}
	j := i
	for j < len(s) && isDigit(rune(s[j])) {
		j++
	}
	return j > i && j == len(s)
}
