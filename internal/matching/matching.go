// Package matching pairs vouchers with the formal invoices issued for the
// same expense.
package matching

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/reimburse/internal/expense"
)

// MinScore is the lowest score that still counts as a match.
const MinScore = 2

var (
	onePercent  = decimal.NewFromFloat(0.01)
	fivePercent = decimal.NewFromFloat(0.05)

	nameNoise = regexp.MustCompile(`[（）()【】\[\]]|有限责任公司|股份有限公司|有限公司|科技|股份`)
)

// Normalize strips brackets and legal-entity words and case-folds a name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(nameNoise.ReplaceAllString(name, "")))
}

// Score rates how likely invoice documents the same expense as voucher.
// Each signal is independent and additive. Names are compared after
// normalization, so two blank names are equal.
func Score(voucher, invoice *expense.Record) int {
	score := 0

	if Normalize(voucher.Subtype) == Normalize(invoice.Subtype) {
		score += 3
	} else if Normalize(voucher.Merchant) == Normalize(invoice.Merchant) {
		score += 2
	}

	invoiceDate := invoice.ServiceDate
	if invoiceDate == "" {
		invoiceDate = invoice.Date
	}
	if days, ok := dayDiff(voucher.EffectiveDate(), invoiceDate); ok {
		switch days {
		case 0:
			score += 2
		case 1:
			score += 1
		}
	}

	if voucher.Amount.IsPositive() && invoice.Amount.IsPositive() {
		diff := voucher.Amount.Sub(invoice.Amount).Abs()
		larger := decimal.Max(voucher.Amount, invoice.Amount)
		switch {
		case diff.LessThanOrEqual(larger.Mul(onePercent)):
			score += 3
		case diff.LessThanOrEqual(larger.Mul(fivePercent)):
			score += 1
		}
	}

	if voucher.Category() == invoice.Category() {
		score++
	}

	return score
}

func dayDiff(a, b string) (int, bool) {
	if a == "" || b == "" {
		return 0, false
	}
	da, err := time.Parse(time.DateOnly, a)
	if err != nil {
		return 0, false
	}
	db, err := time.Parse(time.DateOnly, b)
	if err != nil {
		return 0, false
	}
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days, true
}

// Match partitions records into groups. Vouchers are visited in input
// order and each claims the unclaimed invoice with the strictly highest
// score of at least MinScore; the earliest invoice wins a tie. Each
// voucher yields a pair or a singleton in that order, followed by every
// unclaimed invoice as a singleton.
func Match(records []*expense.Record) []expense.Group {
	var invoices, vouchers []*expense.Record
	for _, r := range records {
		if r.IsInvoice {
			invoices = append(invoices, r)
		} else {
			vouchers = append(vouchers, r)
		}
	}

	claimed := make([]bool, len(invoices))
	groups := make([]expense.Group, 0, len(records))

	for _, v := range vouchers {
		best, bestScore := -1, 0
		for i, inv := range invoices {
			if claimed[i] {
				continue
			}
			if s := Score(v, inv); s >= MinScore && s > bestScore {
				best, bestScore = i, s
			}
		}
		if best < 0 {
			groups = append(groups, expense.Group{Records: []*expense.Record{v}})
			continue
		}
		claimed[best] = true
		groups = append(groups, expense.Group{Records: []*expense.Record{v, invoices[best]}})
	}

	for i, inv := range invoices {
		if !claimed[i] {
			groups = append(groups, expense.Group{Records: []*expense.Record{inv}})
		}
	}
	return groups
}
