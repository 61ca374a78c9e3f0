// Package naming builds deterministic folder and file names for grouped
// records and resolves destination collisions.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zombor/reimburse/internal/expense"
)

const (
	maxFolderLabel  = 20
	maxFileLabel    = 12
	maxTrip         = 15
	maxTripFallback = 20

	unknownLabel = "未知"
	invoiceMark  = "发票"
	voucherMark  = "凭证"
)

var (
	illegal    = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace = regexp.MustCompile(`\s+`)

	tripPatterns = []*regexp.Regexp{
		regexp.MustCompile(`从(.+?)到(.+?)(?:的|$)`),
		regexp.MustCompile(`(.+?)[至到\-→](.+?)(?:的|$)`),
		regexp.MustCompile(`(.+?)出发`),
	}
)

// Sanitize removes filesystem-illegal characters, collapses whitespace
// and then truncates to max runes. A non-positive max disables truncation.
func Sanitize(s string, max int) string {
	s = illegal.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if max > 0 {
		s = strings.TrimSpace(truncate(s, max))
	}
	return s
}

// TripExcerpt pulls a "from-to" summary out of a description, or returns
// its first characters when no route is recognizable.
func TripExcerpt(desc string) string {
	if desc == "" {
		return ""
	}
	for _, p := range tripPatterns {
		m := p.FindStringSubmatch(desc)
		if m == nil {
			continue
		}
		if len(m) >= 3 {
			return strings.TrimSpace(m[1]) + "-" + strings.TrimSpace(m[2])
		}
		return strings.TrimSpace(m[1])
	}
	return truncate(desc, maxTripFallback)
}

// FolderName names the shared folder of a group, using the invoice when
// present and the voucher otherwise.
func FolderName(g expense.Group, date string) string {
	parts := make([]string, 0, 3)
	if date != "" {
		parts = append(parts, date)
	}

	main := g.Main()
	label := ""
	if main != nil {
		label = Sanitize(main.Label(), maxFolderLabel)
	}
	if label == "" {
		label = unknownLabel
	}
	parts = append(parts, label)

	if main != nil && main.Amount.IsPositive() {
		parts = append(parts, main.Amount.StringFixed(2)+"元")
	}
	return strings.Join(parts, "_")
}

// FileName names one member of a group. index is 1-based; the index
// prefix only appears when the group has more than one member. date is
// the group date and falls back to the record's own effective date.
func FileName(rec *expense.Record, index, total int, date string) string {
	parts := make([]string, 0, 6)
	if total > 1 {
		parts = append(parts, fmt.Sprintf("%02d", index))
	}

	if date == "" {
		date = rec.EffectiveDate()
	}
	if date != "" {
		parts = append(parts, date)
	}

	if rec.IsInvoice {
		parts = append(parts, invoiceMark)
	} else {
		parts = append(parts, voucherMark)
	}

	if label := Sanitize(rec.Label(), maxFileLabel); label != "" {
		parts = append(parts, label)
	}
	if rec.Amount.IsPositive() {
		parts = append(parts, rec.Amount.StringFixed(2)+"元")
	}

	tripSource := rec.TripRef
	if tripSource == "" {
		tripSource = rec.Description
	}
	if trip := Sanitize(TripExcerpt(tripSource), maxTrip); trip != "" {
		parts = append(parts, trip)
	}

	return strings.Join(parts, "_") + filepath.Ext(rec.FilePath)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
