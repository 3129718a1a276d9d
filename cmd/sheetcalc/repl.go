package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

const replHelp = `  A1 = 10        store a value (numbers, TRUE/FALSE, "text")
  B1 = =A1*2     store a formula
  =SUM(A1:B1)    evaluate a formula at the current cell
  :calc          recalculate the workbook
  :get A1        show the value and formula of a cell
  :at B5         evaluate later formulas as if written in B5
  :sheets        list worksheets
  :names         list defined names
  :quit          leave`

// session is the state of one REPL run, kept apart from the terminal so
// that it can be driven line by line.
type session struct {
	book *spreadsheet.Spreadsheet
	at   string
}

func newSession(book *spreadsheet.Spreadsheet) *session {
	return &session{book: book, at: "A1"}
}

func (s *session) prompt() string {
	return s.at + "> "
}

// handle runs one line and returns what to print, and whether to stop.
func (s *session) handle(line string) (string, bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return "", false
	case strings.HasPrefix(line, ":"):
		return s.command(strings.Fields(line))
	case strings.HasPrefix(line, "="):
		return s.evaluate(line), false
	}

	if target, value, ok := strings.Cut(line, "="); ok {
		target = strings.TrimSpace(target)
		if _, err := s.book.Get(target); err == nil {
			if err := s.book.Set(target, parseLiteral(strings.TrimSpace(value))); err != nil {
				return errorColor.Sprintf("error: %v", err), false
			}
			return "", false
		}
	}
	return s.evaluate(line), false
}

func (s *session) command(fields []string) (string, bool) {
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch fields[0] {
	case ":q", ":quit", ":exit":
		return "", true
	case ":help", ":h":
		return replHelp, false
	case ":calc":
		if err := s.book.Calculate(); err != nil {
			return errorColor.Sprintf("error: %v", err), false
		}
		return dimColor.Sprintf("%d formula cells", len(s.book.FormulaCells())), false
	case ":get":
		v, err := s.book.Get(arg)
		if err != nil {
			return errorColor.Sprintf("error: %v", err), false
		}
		text, _ := s.book.Formula(arg)
		if text == "" {
			return formatValue(v), false
		}
		return fmt.Sprintf("%s  %s", formatValue(v), dimColor.Sprint(text)), false
	case ":at":
		if _, err := s.book.Get(arg); err != nil {
			return errorColor.Sprintf("error: %v", err), false
		}
		s.at = arg
		return "", false
	case ":sheets":
		return strings.Join(s.book.ListWorksheets(), "\n"), false
	case ":names":
		return strings.Join(s.book.ListNames(), "\n"), false
	default:
		return errorColor.Sprintf("unknown command %s, try :help", fields[0]), false
	}
}

func (s *session) evaluate(text string) string {
	v, err := s.book.EvaluateFormula(text, s.at)
	if err != nil {
		return errorColor.Sprintf("error: %v", errors.Cause(err))
	}
	return formatValue(v)
}

// complete offers function names for the identifier at the end of line.
func (s *session) complete(line string) []string {
	start := len(line)
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}
	prefix := strings.ToUpper(line[start:])
	if prefix == "" {
		return nil
	}
	var out []string
	for _, name := range s.book.Engine().Functions().Names() {
		if strings.HasPrefix(name, prefix) {
			out = append(out, line[:start]+name+"(")
		}
	}
	return out
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '.' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// parseLiteral reads the right-hand side of an assignment.
func parseLiteral(text string) spreadsheet.Primitive {
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "=") {
		return text
	}
	switch strings.ToUpper(text) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	if code, ok := formula.ParseErrorCode(text); ok {
		return code
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	if unquoted, err := strconv.Unquote(text); err == nil {
		return unquoted
	}
	return text
}

func runRepl(s *session, out io.Writer, historyPath string) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(s.complete)

	if f, err := os.Open(historyPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	fmt.Fprintln(out, dimColor.Sprint("type :help for commands"))
	for {
		line, err := ln.Prompt(s.prompt())
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading input")
		}

		result, quit := s.handle(line)
		if result != "" {
			fmt.Fprintln(out, result)
		}
		if quit {
			break
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
	}

	if historyPath == "" {
		return nil
	}
	f, err := os.Create(historyPath)
	if err != nil {
		return errors.Wrap(err, "saving history")
	}
	defer f.Close()
	_, err = ln.WriteHistory(f)
	return errors.Wrap(err, "saving history")
}
