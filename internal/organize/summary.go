package organize

import (
	"github.com/shopspring/decimal"

	"github.com/zombor/reimburse/internal/expense"
)

// Line is one bucket's totals. Only formal invoices are counted.
type Line struct {
	Bucket   expense.Bucket    `json:"bucket"`
	Count    int               `json:"count"`
	Amount   decimal.Decimal   `json:"amount"`
	Invoices []*expense.Record `json:"-"`
}

// Summary holds per-bucket totals in display order.
type Summary struct {
	Lines []Line          `json:"lines"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Summarize totals the formal invoices of every bucket. Every bucket gets
// a line, empty or not, in expense.Buckets order.
func Summarize(buckets map[expense.Bucket][]*expense.Record) Summary {
	s := Summary{Total: decimal.Zero}
	for _, b := range expense.Buckets() {
		line := Line{Bucket: b, Amount: decimal.Zero}
		for _, r := range buckets[b] {
			if !r.IsInvoice {
				continue
			}
			line.Count++
			line.Amount = line.Amount.Add(r.Amount)
			line.Invoices = append(line.Invoices, r)
		}
		s.Count += line.Count
		s.Total = s.Total.Add(line.Amount)
		s.Lines = append(s.Lines, line)
	}
	return s
}

// Line returns the totals for one bucket.
func (s Summary) Line(b expense.Bucket) Line {
	for _, l := range s.Lines {
		if l.Bucket == b {
			return l
		}
	}
	return Line{Bucket: b, Amount: decimal.Zero}
}
