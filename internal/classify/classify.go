// Package classify decides the reporting bucket and naming date of a group.
package classify

import "github.com/zombor/reimburse/internal/expense"

// Decision is the outcome of classifying one group.
type Decision struct {
	Bucket expense.Bucket
	Kind   expense.Kind
	// Date is empty when no member carries a usable date; the caller
	// supplies a fallback.
	Date    string
	Pending bool
}

// Classify buckets a group. A lone formal invoice without a service
// date cannot be dated reliably and goes to the pending bucket.
func Classify(g expense.Group) Decision {
	d := Decision{
		Kind: Kind(g),
		Date: Date(g),
	}
	if IsPending(g) {
		d.Pending = true
		d.Bucket = expense.BucketPending
		return d
	}
	d.Bucket = expense.BucketFor(d.Kind)
	return d
}

// Date returns the voucher's effective date, else the invoice's.
func Date(g expense.Group) string {
	if v := g.Voucher(); v != nil && v.EffectiveDate() != "" {
		return v.EffectiveDate()
	}
	if inv := g.Invoice(); inv != nil {
		return inv.EffectiveDate()
	}
	return ""
}

// Kind prefers the invoice's category, then the voucher's.
func Kind(g expense.Group) expense.Kind {
	if inv := g.Invoice(); inv != nil && inv.Category() != expense.KindOther {
		return inv.Category()
	}
	if v := g.Voucher(); v != nil && v.Category() != expense.KindOther {
		return v.Category()
	}
	return expense.KindOther
}

// IsPending reports whether g is a single formal invoice with no service date.
func IsPending(g expense.Group) bool {
	return g.Len() == 1 && g.Records[0].IsInvoice && g.Records[0].ServiceDate == ""
}
