package reimburse

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zombor/reimburse/internal/expense"
	"github.com/zombor/reimburse/internal/extract"
	"github.com/zombor/reimburse/internal/organize"
	"github.com/zombor/reimburse/internal/report"
	"github.com/zombor/reimburse/internal/scanning"
)

// DefaultOutputName is the output directory created next to the input
// when none is given.
const DefaultOutputName = "报销结果"

// DirectoryResult is the outcome of organizing or rescanning a directory
type DirectoryResult struct {
	Files      int
	Plan       *organize.Plan
	Summary    organize.Summary
	ReportPath string
	Errors     []error
}

// ScanFiles lists the supported documents below dir in lexical order.
// Hidden entries and the skip directory are ignored.
func ScanFiles(dir, skip string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if skip != "" && path == skip {
				return filepath.SkipDir
			}
			return nil
		}
		if expense.Supported(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking input: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// OrganizeDirectory scans every document below input, organizes them into
// output and writes the report there.
func OrganizeDirectory(ctx context.Context, scanner scanning.Scanner, input, output string, mode organize.Mode) (*DirectoryResult, error) {
	input, err := filepath.Abs(input)
	if err != nil {
		return nil, fmt.Errorf("resolving input: %w", err)
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return nil, fmt.Errorf("resolving output: %w", err)
	}

	files, err := ScanFiles(input, output)
	if err != nil {
		return nil, err
	}
	result := &DirectoryResult{Files: len(files)}
	if len(files) == 0 {
		return result, nil
	}

	extractor := extract.New()
	records := make([]*expense.Record, 0, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := scanPath(ctx, scanner, extractor, path)
		if err != nil {
			result.Errors = append(result.Errors, err)
		}
		slog.Info("Scanned document",
			"progress", fmt.Sprintf("%d/%d", i+1, len(files)),
			"file", filepath.Base(path),
			"type", rec.Kind,
			"amount", rec.Amount.StringFixed(2),
			"invoice", rec.IsInvoice,
		)
		records = append(records, &rec)
	}

	store, err := NewLocalStorage(output)
	if err != nil {
		return nil, err
	}
	organizer := organize.NewOrganizer(mode, store.Exists)
	result.Plan = organizer.Plan(records)
	if err := organizer.Apply(ctx, result.Plan, store); err != nil {
		result.Errors = append(result.Errors, err)
	}

	result.Summary = organize.Summarize(result.Plan.Buckets)
	result.ReportPath = filepath.Join(output, report.FileName)
	if err := report.Write(result.ReportPath, result.Summary, time.Now()); err != nil {
		return result, err
	}
	return result, nil
}

// scanPath always returns a usable record; a scan failure yields an
// unrecognized one alongside the error.
func scanPath(ctx context.Context, scanner scanning.Scanner, extractor *extract.Extractor, path string) (expense.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		rec := scanning.Unrecognized(err)
		rec.FilePath = path
		return rec, fmt.Errorf("reading %s: %w", path, err)
	}

	rec, err := scanner.ScanDocument(ctx, data, expense.ContentType(path))
	if err != nil {
		slog.Error("Failed to scan document", "file", path, "error", err)
		rec = scanning.Unrecognized(err)
		err = fmt.Errorf("scanning %s: %w", path, err)
	}
	rec = extractor.Fill(rec.RawText, rec)
	rec.FilePath = path
	return rec, err
}

// ReportDirectory rebuilds the report of an already organized directory
// from its folder and file names alone.
func ReportDirectory(dir string) (*DirectoryResult, error) {
	buckets, err := organize.Rescan(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("rescanning %s: %w", dir, err)
	}

	result := &DirectoryResult{}
	for _, recs := range buckets {
		result.Files += len(recs)
	}
	if result.Files == 0 {
		return result, nil
	}

	result.Summary = organize.Summarize(buckets)
	result.ReportPath = filepath.Join(dir, report.FileName)
	if err := report.Write(result.ReportPath, result.Summary, time.Now()); err != nil {
		return nil, err
	}
	return result, nil
}

// Err joins the per-file errors of a run
func (r *DirectoryResult) Err() error {
	return errors.Join(r.Errors...)
}
