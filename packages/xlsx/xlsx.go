// Package xlsx loads Office Open XML workbooks into a spreadsheet.
package xlsx

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/xuri/excelize/v2"
)

type Options struct {
	Logger logrus.FieldLogger
	Engine *formula.Engine
}

type Option func(*Options)

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithEngine(e *formula.Engine) Option {
	return func(o *Options) { o.Engine = e }
}

// FormulaCell is a formula read from the file together with the result the
// file was saved with.
type FormulaCell struct {
	Address string
	Formula string
	Cached  formula.Value
}

// Skip records a formula or defined name that could not be loaded. Skipped
// formula cells keep their cached value as a plain value.
type Skip struct {
	Target string
	Text   string
	Reason string
}

// Workbook is a loaded file.
type Workbook struct {
	*spreadsheet.Spreadsheet

	Path     string
	Formulas []FormulaCell
	Skipped  []Skip
}

type loader struct {
	file  *excelize.File
	book  *Workbook
	funcs *formula.BuiltInFunctions
	log   logrus.FieldLogger
}

// Load reads the sheets, values, defined names and formulas of an .xlsx
// file. Formula cells start out holding their cached results; call
// Calculate to recompute them.
func Load(path string, options ...Option) (*Workbook, error) {
	opts := Options{Logger: logrus.StandardLogger()}
	for _, opt := range options {
		opt(&opts)
	}
	sheetOpts := []spreadsheet.Option{spreadsheet.WithLogger(opts.Logger)}
	if opts.Engine != nil {
		sheetOpts = append(sheetOpts, spreadsheet.WithEngine(opts.Engine))
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	s := spreadsheet.NewSpreadsheet(sheetOpts...)
	l := &loader{
		file:  f,
		book:  &Workbook{Spreadsheet: s, Path: path},
		funcs: s.Engine().Functions(),
		log:   opts.Logger.WithFields(logrus.Fields{"component": "xlsx", "path": path}),
	}

	sheets := f.GetSheetList()
	for _, name := range sheets {
		if err := s.AddWorksheet(name); err != nil {
			return nil, errors.Wrapf(err, "adding sheet %q", name)
		}
	}
	l.loadNames()
	for _, name := range sheets {
		if err := l.loadSheet(name); err != nil {
			return nil, err
		}
	}

	l.log.WithFields(logrus.Fields{
		"sheets":   len(sheets),
		"formulas": len(l.book.Formulas),
		"skipped":  len(l.book.Skipped),
	}).Info("workbook loaded")
	return l.book, nil
}

func (l *loader) skip(target, text, reason string) {
	l.log.WithFields(logrus.Fields{"target": target, "text": text}).Debug("skipped: " + reason)
	l.book.Skipped = append(l.book.Skipped, Skip{Target: target, Text: text, Reason: reason})
}

// loadNames defines the workbook-scoped names. A name may refer to another
// name, so definitions are retried until a pass makes no progress.
func (l *loader) loadNames() {
	var pending []excelize.DefinedName
	for _, dn := range l.file.GetDefinedName() {
		switch {
		case strings.HasPrefix(dn.Name, "_xlnm."):
			continue
		case dn.Scope != "" && dn.Scope != "Workbook":
			l.skip(dn.Name, dn.RefersTo, "sheet-scoped names are not supported")
		default:
			pending = append(pending, dn)
		}
	}

	errs := make(map[string]error)
	for progress := true; progress && len(pending) > 0; {
		progress = false
		remaining := pending[:0]
		for _, dn := range pending {
			if err := l.book.DefineName(dn.Name, dn.RefersTo); err != nil {
				errs[dn.Name] = err
				remaining = append(remaining, dn)
				continue
			}
			progress = true
		}
		pending = remaining
	}
	for _, dn := range pending {
		l.skip(dn.Name, dn.RefersTo, errs[dn.Name].Error())
	}
}

func (l *loader) loadSheet(sheet string) error {
	rows, err := l.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return errors.Wrapf(err, "reading sheet %q", sheet)
	}
	for r, row := range rows {
		for c, raw := range row {
			cellName, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return errors.Wrapf(err, "sheet %q", sheet)
			}
			text, err := l.file.GetCellFormula(sheet, cellName)
			if err != nil {
				return errors.Wrapf(err, "reading formula at %s!%s", sheet, cellName)
			}
			typ, err := l.file.GetCellType(sheet, cellName)
			if err != nil {
				return errors.Wrapf(err, "reading type at %s!%s", sheet, cellName)
			}

			address := spreadsheet.FormatAddress(sheet, r, c)
			value := cellValue(typ, raw)
			if text != "" {
				l.loadFormula(address, text, value)
				continue
			}
			if value.IsBlank() {
				continue
			}
			if err := l.book.Set(address, value); err != nil {
				return errors.Wrapf(err, "setting %s", address)
			}
		}
	}
	return nil
}

func (l *loader) loadFormula(address, text string, cached formula.Value) {
	text = strings.TrimPrefix(text, "=")
	if missing := unsupportedFunctions(text, l.funcs); len(missing) > 0 {
		l.keepCached(address, text, "unsupported functions: "+strings.Join(missing, ", "), cached)
		return
	}
	if err := l.book.SetFormula(address, "="+text); err != nil {
		l.keepCached(address, text, err.Error(), cached)
		return
	}
	if !cached.IsBlank() {
		// the cell holds a formula now, so this cannot fail
		_ = l.book.SetCachedResult(address, cached)
	}
	l.book.Formulas = append(l.book.Formulas, FormulaCell{Address: address, Formula: text, Cached: cached})
}

func (l *loader) keepCached(address, text, reason string, cached formula.Value) {
	l.skip(address, text, reason)
	if cached.IsBlank() {
		return
	}
	if err := l.book.Set(address, cached); err != nil {
		l.log.WithError(err).WithField("target", address).Warn("cannot keep cached value")
	}
}

// cellValue converts a raw cell value as stored in the file.
func cellValue(typ excelize.CellType, raw string) formula.Value {
	if raw == "" {
		return formula.Blank
	}
	switch typ {
	case excelize.CellTypeBool:
		return formula.NewBoolean(raw == "1" || strings.EqualFold(raw, "TRUE"))
	case excelize.CellTypeError:
		if code, ok := formula.ParseErrorCode(raw); ok {
			return formula.NewError(code)
		}
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return formula.NewNumber(f)
		}
	}
	return formula.NewText(raw)
}
