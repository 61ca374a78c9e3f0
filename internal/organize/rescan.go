package organize

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/reimburse/internal/expense"
)

var (
	nameDate   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	nameAmount = regexp.MustCompile(`(\d+\.?\d*)元`)
	digitsOnly = regexp.MustCompile(`^\d+$`)

	nameMarkers = map[string]bool{
		"发票": true, "凭证": true, "行程单": true,
		"01": true, "02": true, "03": true,
	}
)

// Rescan rebuilds records from a tree previously laid out by Plan and
// Apply, reading everything from folder and file names. Top-level
// folders are mapped to buckets through expense.BucketFromFolder;
// unrecognized folders are counted as other.
func Rescan(fsys fs.FS) (map[expense.Bucket][]*expense.Record, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading organized directory: %w", err)
	}

	buckets := make(map[expense.Bucket][]*expense.Record)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		bucket, known := expense.BucketFromFolder(entry.Name())
		if !known {
			slog.Warn("Unrecognized category folder", "folder", entry.Name(), "bucket", bucket)
		}

		err := fs.WalkDir(fsys, entry.Name(), func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !expense.Supported(p) {
				return nil
			}
			rec := ParseName(path.Base(p), path.Base(path.Dir(p)), bucket)
			rec.FilePath = p
			buckets[bucket] = append(buckets[bucket], rec)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", entry.Name(), err)
		}
	}
	return buckets, nil
}

// ParseName recovers what it can from a generated file name and its
// group folder. The file name is consulted before the folder so that
// each member of a pair keeps its own date and amount.
func ParseName(filename, folder string, bucket expense.Bucket) *expense.Record {
	stem := strings.TrimSuffix(filename, path.Ext(filename))
	rec := &expense.Record{
		Kind:      bucket.Kind(),
		IsInvoice: true,
	}

	for _, text := range []string{stem, folder} {
		if rec.Date == "" {
			rec.Date = nameDate.FindString(text)
		}
		if rec.Amount.IsZero() {
			if m := nameAmount.FindStringSubmatch(text); m != nil {
				if v, err := decimal.NewFromString(strings.TrimSuffix(m[1], ".")); err == nil {
					rec.Amount = v
				}
			}
		}
	}
	rec.ServiceDate = rec.Date

	if strings.Contains(stem, "凭证") || strings.Contains(stem, "行程单") {
		rec.IsInvoice = false
	}

	for _, part := range strings.Split(folder+"_"+stem, "_") {
		if isMerchantPart(part) {
			rec.Merchant = part
			rec.Subtype = part
			break
		}
	}
	return rec
}

func isMerchantPart(part string) bool {
	if part == "" || nameMarkers[part] {
		return false
	}
	if nameDate.MatchString(part) || strings.Contains(part, "元") || digitsOnly.MatchString(part) {
		return false
	}
	return len([]rune(part)) >= 2
}
