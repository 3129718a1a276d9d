package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"
	"github.com/vogtb/go-spreadsheet/packages/formula"
)

func evalCommand(app *kingpin.Application, e *env) (*kingpin.CmdClause, handler) {
	cmd := app.Command("eval", "Evaluate a formula, optionally against a workbook.")
	text := cmd.Arg("formula", "formula text, the leading '=' is optional").Required().String()
	workbook := cmd.Flag("workbook", "xlsx file to evaluate against").Short('w').ExistingFile()
	sheet := cmd.Flag("sheet", "sheet the formula is written on").String()
	cell := cmd.Flag("cell", "cell the formula is written in").Default("A1").String()
	calculate := cmd.Flag("calculate", "recalculate the workbook first instead of using its saved results").Bool()

	return cmd, func(string) int {
		book, err := e.openBook(*workbook)
		if err != nil {
			printError(e.errOut, err)
			return 1
		}
		if *calculate {
			if err := book.Calculate(); err != nil {
				printError(e.errOut, err)
				return 1
			}
		}

		address := *cell
		if *sheet != "" {
			address = "'" + strings.ReplaceAll(*sheet, "'", "''") + "'!" + address
		}
		v, err := book.EvaluateFormula(*text, address)
		if err != nil {
			printError(e.errOut, errors.Cause(err))
			return 1
		}
		fmt.Fprintln(e.out, formatValue(v))
		return 0
	}
}

var formulaKinds = map[string]formula.FormulaKind{
	"cell":   formula.KindCell,
	"array":  formula.KindArray,
	"shared": formula.KindShared,
	"name":   formula.KindNamedRange,
}

func renderCommand(app *kingpin.Application, e *env) (*kingpin.CmdClause, handler) {
	cmd := app.Command("render", "Parse a formula and print it in canonical form.")
	text := cmd.Arg("formula", "formula text").Required().String()
	kind := cmd.Flag("kind", "where the formula lives").Default("cell").Enum("cell", "array", "shared", "name")

	return cmd, func(string) int {
		prog, err := e.engine().Parse(*text, formula.Address{}, formulaKinds[*kind], newLooseBook())
		if err != nil {
			printError(e.errOut, err)
			return 1
		}
		fmt.Fprintln(e.out, "="+formula.RenderFormulaText(prog))
		return 0
	}
}

// looseBook accepts every sheet and name, so that formulas can be
// rendered without the workbook they came from.
type looseBook struct {
	sheets map[string]int
}

func newLooseBook() *looseBook {
	return &looseBook{sheets: make(map[string]int)}
}

func (b *looseBook) SheetIndex(name string) (int, bool) {
	key := strings.ToUpper(name)
	i, ok := b.sheets[key]
	if !ok {
		i = len(b.sheets)
		b.sheets[key] = i
	}
	return i, true
}

func (b *looseBook) NameExists(string) bool {
	return true
}

func checkCommand(app *kingpin.Application, e *env) (*kingpin.CmdClause, handler) {
	cmd := app.Command("check", "Recompute every formula of a workbook and compare with the saved results.")
	path := cmd.Arg("workbook", "xlsx file").Required().ExistingFile()
	parallel := cmd.Flag("parallel", "formulas evaluated at once, defaults to the configuration").Short('p').Int()
	tolerance := cmd.Flag("tolerance", "relative difference allowed between numbers").Default("1e-9").Float64()
	functions := cmd.Flag("functions", "also list the functions the workbook uses").Bool()

	return cmd, func(string) int {
		wb, err := e.loadWorkbook(*path)
		if err != nil {
			printError(e.errOut, err)
			return 1
		}
		n := e.cfg.Parallelism
		if *parallel > 0 {
			n = *parallel
		}

		report, err := checkWorkbook(context.Background(), wb, n, *tolerance, e.log)
		if err != nil {
			printError(e.errOut, err)
			return 1
		}
		if *functions {
			report.Inventory = wb.Inventory()
		}
		printReport(e.out, report)
		if len(report.Mismatches) > 0 {
			return 1
		}
		return 0
	}
}

func inventoryCommand(app *kingpin.Application, e *env) (*kingpin.CmdClause, handler) {
	cmd := app.Command("inventory", "List the functions a workbook calls and whether they are supported.")
	path := cmd.Arg("workbook", "xlsx file").Required().ExistingFile()

	return cmd, func(string) int {
		wb, err := e.loadWorkbook(*path)
		if err != nil {
			printError(e.errOut, err)
			return 1
		}
		printInventory(e.out, wb.Inventory())
		return 0
	}
}

func replCommand(app *kingpin.Application, e *env) (*kingpin.CmdClause, handler) {
	cmd := app.Command("repl", "Start an interactive prompt.")
	workbook := cmd.Flag("workbook", "xlsx file to open").Short('w').ExistingFile()

	return cmd, func(string) int {
		book, err := e.openBook(*workbook)
		if err != nil {
			printError(e.errOut, err)
			return 1
		}
		if err := runRepl(newSession(book), e.out, e.cfg.historyPath()); err != nil {
			printError(e.errOut, err)
			return 1
		}
		return 0
	}
}
