package formula

import (
	"errors"
	"fmt"
	"strings"

	goerrors "gopkg.in/src-d/go-errors.v1"
)

// ErrorCode represents standard spreadsheet error codes following
// Excel conventions. The zero value means "no error".
type ErrorCode uint8

const (
	ErrorCodeNone  ErrorCode = 0
	ErrorCodeNull  ErrorCode = 1 // #NULL! - no cells in common between ranges
	ErrorCodeDiv0  ErrorCode = 2 // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 3 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 4 // #REF! - invalid cell reference
	ErrorCodeName  ErrorCode = 5 // #NAME? - unrecognized name
	ErrorCodeNum   ErrorCode = 6 // #NUM! - number too large or small to be represented
	ErrorCodeNA    ErrorCode = 7 // #N/A - value not available
)

// ErrorMapper maps error codes to their literal representations
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeNull:  "#NULL!",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
}

// errorLiterals lists literals longest first so prefix scanning is greedy.
var errorLiterals = []ErrorCode{
	ErrorCodeValue,
	ErrorCodeNull,
	ErrorCodeDiv0,
	ErrorCodeName,
	ErrorCodeNum,
	ErrorCodeRef,
	ErrorCodeNA,
}

func (c ErrorCode) String() string {
	if s, ok := ErrorMapper[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", uint8(c))
}

// ParseErrorCode converts an error literal such as "#DIV/0!" into its code.
func ParseErrorCode(s string) (ErrorCode, bool) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for _, code := range errorLiterals {
		if ErrorMapper[code] == upper {
			return code, true
		}
	}
	return ErrorCodeNone, false
}

// matchErrorLiteral returns the error literal that prefixes s, if any.
func matchErrorLiteral(s string) (ErrorCode, int) {
	upper := strings.ToUpper(s)
	for _, code := range errorLiterals {
		lit := ErrorMapper[code]
		if strings.HasPrefix(upper, lit) {
			return code, len(lit)
		}
	}
	return ErrorCodeNone, 0
}

// Parse failure kinds. Every error returned from Parse, Rebase and friends
// is a *FormulaParseError whose cause is one of these.
var (
	ErrSyntax               = goerrors.NewKind("syntax error: %s")
	ErrUnbalancedParens     = goerrors.NewKind("unbalanced parentheses: %s")
	ErrUnknownFunction      = goerrors.NewKind("unknown function %s%s")
	ErrUnknownName          = goerrors.NewKind("unknown name %q")
	ErrUnknownSheet         = goerrors.NewKind("unknown sheet %q")
	ErrArgumentCount        = goerrors.NewKind("%s expects %s, got %d")
	ErrNestingTooDeep       = goerrors.NewKind("formula nests deeper than %d levels")
	ErrReferenceOutOfBounds = goerrors.NewKind("reference %s is outside the sheet bounds")
	ErrRebaseOutOfBounds    = goerrors.NewKind("moving %s by (%d, %d) leaves the sheet bounds")
	ErrInvalidFormulaKind   = goerrors.NewKind("formula is not valid as a %s formula")
)

// FormulaParseError is the fatal error channel of the engine. It is never
// produced during evaluation.
type FormulaParseError struct {
	Formula string
	Pos     int // rune offset into Formula, -1 when unknown
	Err     error
}

func (e *FormulaParseError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("formula %q, position %d: %s", e.Formula, e.Pos, e.Err)
	}
	return fmt.Sprintf("formula %q: %s", e.Formula, e.Err)
}

func (e *FormulaParseError) Unwrap() error {
	return e.Err
}

// Cause lets github.com/pkg/errors walk into the underlying kind.
func (e *FormulaParseError) Cause() error {
	return e.Err
}

func newParseError(formula string, pos int, err error) *FormulaParseError {
	return &FormulaParseError{Formula: formula, Pos: pos, Err: err}
}

// IsParseError reports whether err is, or wraps, a *FormulaParseError.
func IsParseError(err error) bool {
	var pe *FormulaParseError
	return errors.As(err, &pe)
}

// IsParseErrorKind reports whether err is a parse error caused by kind.
func IsParseErrorKind(err error, kind *goerrors.Kind) bool {
	var pe *FormulaParseError
	if !errors.As(err, &pe) {
		return false
	}
	return kind.Is(pe.Err)
}
