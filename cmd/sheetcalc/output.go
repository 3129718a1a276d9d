package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/xlsx"
)

var (
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	successColor = color.New(color.FgGreen)
	dimColor     = color.New(color.Faint)
)

// formatValue renders a value for the terminal. Text is quoted so that it
// cannot be mistaken for a number, and error values are red.
func formatValue(v formula.Value) string {
	switch v.Kind() {
	case formula.KindText:
		return strconv.Quote(v.Text())
	case formula.KindError:
		return errorColor.Sprint(v.String())
	case formula.KindBlank:
		return dimColor.Sprint("(blank)")
	default:
		return v.String()
	}
}

func printError(w io.Writer, err error) {
	errorColor.Fprintf(w, "error: %v\n", err)
}

func printReport(w io.Writer, r *Report) {
	for _, m := range r.Mismatches {
		fmt.Fprintf(w, "%s %s =%s\n    cached %s, computed %s\n",
			errorColor.Sprint("mismatch"), m.Address, m.Formula, formatValue(m.Cached), formatValue(m.Computed))
	}
	for _, skip := range r.Skipped {
		fmt.Fprintf(w, "%s %s %s: %s\n", warnColor.Sprint("skipped"), skip.Target, skip.Text, skip.Reason)
	}

	if len(r.Inventory) > 0 {
		fmt.Fprintln(w, "functions:")
		for _, fc := range r.Inventory {
			name := fc.Name
			if !fc.Supported {
				name = warnColor.Sprint(name)
			}
			fmt.Fprintf(w, "  %-12s %s\n", name, humanize.Comma(int64(fc.Count)))
		}
	}

	summary := fmt.Sprintf("checked %s formulas (%s without cached results) in %s: %s mismatched, %s skipped",
		humanize.Comma(int64(r.Checked)),
		humanize.Comma(int64(r.Uncached)),
		r.Duration.Round(time.Millisecond),
		humanize.Comma(int64(len(r.Mismatches))),
		humanize.Comma(int64(len(r.Skipped))))
	if len(r.Mismatches) == 0 {
		successColor.Fprintln(w, summary)
	} else {
		errorColor.Fprintln(w, summary)
	}
}

func printInventory(w io.Writer, inventory []xlsx.FunctionCount) {
	for _, fc := range inventory {
		state := "supported"
		if !fc.Supported {
			state = warnColor.Sprint("unsupported")
		}
		fmt.Fprintf(w, "%-12s %8s  %s\n", fc.Name, humanize.Comma(int64(fc.Count)), state)
	}
}
