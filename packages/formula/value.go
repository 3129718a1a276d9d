package formula

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ValueKind discriminates the variants of Value.
type ValueKind uint8

const (
	KindBlank ValueKind = iota
	KindNumber
	KindText
	KindBoolean
	KindError
)

func (k ValueKind) String() string {
	switch k {
	case KindBlank:
		return "Blank"
	case KindNumber:
		return "Number"
	case KindText:
		return "Text"
	case KindBoolean:
		return "Boolean"
	case KindError:
		return "Error"
	default:
		return "ValueKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single spreadsheet value. The zero Value is Blank.
type Value struct {
	kind ValueKind
	num  float64 // number payload, 1/0 for booleans
	text string
	code ErrorCode
}

// Blank is the value of an empty cell.
var Blank = Value{}

func NewNumber(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

func NewText(s string) Value {
	return Value{kind: KindText, text: s}
}

func NewBoolean(b bool) Value {
	if b {
		return Value{kind: KindBoolean, num: 1}
	}
	return Value{kind: KindBoolean}
}

func NewError(code ErrorCode) Value {
	return Value{kind: KindError, code: code}
}

// checkNumber turns NaN and infinities into #NUM!
func checkNumber(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NewError(ErrorCodeNum)
	}
	return NewNumber(f)
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsBlank() bool   { return v.kind == KindBlank }
func (v Value) IsError() bool   { return v.kind == KindError }
func (v Value) IsNumber() bool  { return v.kind == KindNumber }
func (v Value) IsText() bool    { return v.kind == KindText }
func (v Value) IsBoolean() bool { return v.kind == KindBoolean }

// Number returns the numeric payload. Only meaningful for KindNumber.
func (v Value) Number() float64 { return v.num }

// Text returns the text payload. Only meaningful for KindText.
func (v Value) Text() string { return v.text }

// Bool returns the boolean payload. Only meaningful for KindBoolean.
func (v Value) Bool() bool { return v.num != 0 }

// Code returns the error code, or ErrorCodeNone if v is not an error.
func (v Value) Code() ErrorCode {
	if v.kind != KindError {
		return ErrorCodeNone
	}
	return v.code
}

// Equal reports bit-identical equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber, KindBoolean:
		return math.Float64bits(v.num) == math.Float64bits(o.num)
	case KindText:
		return v.text == o.text
	case KindError:
		return v.code == o.code
	default:
		return true
	}
}

// String renders the value the way a cell displays it.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return formatNumber(v.num)
	case KindText:
		return v.text
	case KindBoolean:
		if v.Bool() {
			return "TRUE"
		}
		return "FALSE"
	case KindError:
		return v.code.String()
	default:
		return ""
	}
}

// ToNumber coerces v for a numeric context.
func (v Value) ToNumber() (float64, ErrorCode) {
	switch v.kind {
	case KindNumber, KindBoolean:
		return v.num, ErrorCodeNone
	case KindBlank:
		return 0, ErrorCodeNone
	case KindText:
		if f, ok := parseNumber(v.text); ok {
			return f, ErrorCodeNone
		}
		return 0, ErrorCodeValue
	case KindError:
		return 0, v.code
	}
	return 0, ErrorCodeValue
}

// ToText coerces v for a text context.
func (v Value) ToText() (string, ErrorCode) {
	if v.kind == KindError {
		return "", v.code
	}
	return v.String(), ErrorCodeNone
}

// ToBoolean coerces v for a logical context.
func (v Value) ToBoolean() (bool, ErrorCode) {
	switch v.kind {
	case KindNumber, KindBoolean:
		return v.num != 0, ErrorCodeNone
	case KindBlank:
		return false, ErrorCodeNone
	case KindText:
		switch strings.ToUpper(strings.TrimSpace(v.text)) {
		case "TRUE":
			return true, ErrorCodeNone
		case "FALSE":
			return false, ErrorCodeNone
		}
		return false, ErrorCodeValue
	case KindError:
		return false, v.code
	}
	return false, ErrorCodeValue
}

// parseNumber is a locale-invariant decimal parse. Hex, underscores,
// "Inf" and "NaN" are rejected even though strconv would accept them.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	digits := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '.' || c == '+' || c == '-' || c == 'e' || c == 'E':
		default:
			return 0, false
		}
	}
	if !digits {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// formatNumber renders the shortest decimal form that round-trips.
func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrorCodeNum.String()
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-9 {
		return strconv.FormatFloat(f, 'E', -1, 64)
	}
	return decimal.NewFromFloat(f).String()
}
