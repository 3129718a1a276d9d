// Command sheetcalc evaluates spreadsheet formulas from the command line,
// checks workbooks against the results saved in them, and offers an
// interactive prompt.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sirupsen/logrus"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/xlsx"
)

type handler func(input string) (exitCode int)

type command func(app *kingpin.Application, e *env) (*kingpin.CmdClause, handler)

var commands = []command{
	evalCommand,
	renderCommand,
	checkCommand,
	inventoryCommand,
	replCommand,
}

// env is shared by every command. It is filled in once the command line
// has been parsed.
type env struct {
	cfg    Config
	log    *logrus.Logger
	out    io.Writer
	errOut io.Writer
}

func (e *env) engine() *formula.Engine {
	return e.cfg.Engine(e.log)
}

// openBook loads the workbook at path, or starts an empty one with a
// single sheet when path is empty.
func (e *env) openBook(path string) (*spreadsheet.Spreadsheet, error) {
	if path == "" {
		book := spreadsheet.NewSpreadsheet(spreadsheet.WithLogger(e.log), spreadsheet.WithEngine(e.engine()))
		if err := book.AddWorksheet("Sheet1"); err != nil {
			return nil, err
		}
		return book, nil
	}
	wb, err := e.loadWorkbook(path)
	if err != nil {
		return nil, err
	}
	return wb.Spreadsheet, nil
}

func (e *env) loadWorkbook(path string) (*xlsx.Workbook, error) {
	return xlsx.Load(path, xlsx.WithLogger(e.log), xlsx.WithEngine(e.engine()))
}

func run(args []string, out, errOut io.Writer) int {
	app := kingpin.New("sheetcalc", "Evaluate spreadsheet formulas and check workbooks.")
	app.UsageWriter(out)
	app.ErrorWriter(errOut)
	app.HelpFlag.Short('h')

	configPath := app.Flag("config", "YAML configuration file").Short('c').String()
	logLevel := app.Flag("log-level", "log level, overrides the configuration").Enum("trace", "debug", "info", "warn", "error")
	logFormat := app.Flag("log-format", "log format, overrides the configuration").Enum("text", "json")
	verbose := app.Flag("verbose", "log at debug level").Short('v').Bool()

	e := &env{out: out, errOut: errOut}
	handlers := map[string]handler{}
	for _, cmdFunction := range commands {
		cmd, h := cmdFunction(app, e)
		handlers[cmd.FullCommand()] = h
	}

	input, err := app.Parse(args)
	if err != nil {
		printError(errOut, err)
		return 2
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		printError(errOut, err)
		return 2
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	log, err := cfg.Logger(errOut)
	if err != nil {
		printError(errOut, err)
		return 2
	}
	e.cfg, e.log = cfg, log

	h := handlers[strings.Split(input, " ")[0]]
	if h == nil {
		fmt.Fprintf(errOut, "unknown command %q\n", input)
		return 2
	}
	return h(input)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
