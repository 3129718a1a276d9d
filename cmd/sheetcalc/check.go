package main

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/xlsx"
	"golang.org/x/sync/errgroup"
)

// Mismatch is a formula whose result differs from the one saved in the
// file.
type Mismatch struct {
	Address  string
	Formula  string
	Cached   formula.Value
	Computed formula.Value
}

type Report struct {
	Checked    int
	Uncached   int
	Mismatches []Mismatch
	Skipped    []xlsx.Skip
	Inventory  []xlsx.FunctionCount
	Duration   time.Duration
}

// checkWorkbook evaluates every loaded formula against the values the file
// was saved with and compares the results with the cached ones. The
// workbook is only read, so evaluations run in parallel.
func checkWorkbook(ctx context.Context, book *xlsx.Workbook, parallelism int, tolerance float64, log logrus.FieldLogger) (*Report, error) {
	start := time.Now()
	results := make([]formula.Value, len(book.Formulas))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, fc := range book.Formulas {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := book.EvaluateCell(fc.Address)
			if err != nil {
				return errors.Wrapf(err, "evaluating %s", fc.Address)
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Skipped: book.Skipped}
	for i, fc := range book.Formulas {
		report.Checked++
		if fc.Cached.IsBlank() {
			report.Uncached++
			continue
		}
		if !sameResult(fc.Cached, results[i], tolerance) {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Address:  fc.Address,
				Formula:  fc.Formula,
				Cached:   fc.Cached,
				Computed: results[i],
			})
		}
	}
	report.Duration = time.Since(start)

	log.WithFields(logrus.Fields{
		"checked":     report.Checked,
		"mismatches":  len(report.Mismatches),
		"parallelism": parallelism,
		"duration":    report.Duration,
	}).Debug("workbook checked")
	return report, nil
}

// sameResult compares numbers with a relative tolerance and everything
// else exactly.
func sameResult(cached, computed formula.Value, tolerance float64) bool {
	if cached.IsNumber() && computed.IsNumber() {
		diff := math.Abs(cached.Number() - computed.Number())
		return diff <= tolerance*math.Max(1, math.Abs(cached.Number()))
	}
	return cached.Equal(computed)
}
